package contexts

import "fmt"

// CompletionThreshold is the success rate an execution session must exceed
// to mark a context complete.
const CompletionThreshold = 0.8

var validPhases = map[Phase]bool{
	PhasePlanning:  true,
	PhaseExecuting: true,
	PhaseReviewing: true,
	PhaseComplete:  true,
}

// ValidatePhase returns an error if p is not a known phase.
func ValidatePhase(p Phase) error {
	if !validPhases[p] {
		return fmt.Errorf("invalid phase %q: must be one of: planning, executing, reviewing, complete", p)
	}
	return nil
}

// PhaseAfterPlanning is the phase a context enters when a planning session
// is appended.
func PhaseAfterPlanning() Phase {
	return PhaseExecuting
}

// PhaseAfterExecution is the phase a context enters when an execution
// session with the given success rate is appended.
func PhaseAfterExecution(successRate float64) Phase {
	if successRate > CompletionThreshold {
		return PhaseComplete
	}
	return PhaseReviewing
}
