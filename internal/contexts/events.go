package contexts

// EventType names a change notification.
type EventType string

const (
	EventCreated EventType = "contextCreated"
	EventUpdated EventType = "contextUpdated"
)

// Patch is a partial update. Nil fields are left unchanged. Histories are
// not patchable; they only grow through the Add* operations.
type Patch struct {
	ProjectName  *string         `json:"projectName,omitempty"`
	Requirements *string         `json:"requirements,omitempty"`
	Constraints  *string         `json:"constraints,omitempty"`
	CurrentPhase *Phase          `json:"currentPhase,omitempty"`
	Artifacts    *[]CodeArtifact `json:"artifacts,omitempty"`
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool {
	return p.ProjectName == nil && p.Requirements == nil && p.Constraints == nil &&
		p.CurrentPhase == nil && p.Artifacts == nil
}

func (p Patch) apply(c *PlanningContext) {
	if p.ProjectName != nil {
		c.ProjectName = *p.ProjectName
	}
	if p.Requirements != nil {
		c.Requirements = *p.Requirements
	}
	if p.Constraints != nil {
		c.Constraints = *p.Constraints
	}
	if p.CurrentPhase != nil {
		c.CurrentPhase = *p.CurrentPhase
	}
	if p.Artifacts != nil {
		c.Artifacts = append([]CodeArtifact{}, (*p.Artifacts)...)
	}
}

// Delta describes what one mutation changed.
type Delta struct {
	Patch
	PlanningSession  *PlanningSession  `json:"planningSession,omitempty"`
	ExecutionSession *ExecutionSession `json:"executionSession,omitempty"`
	Feedback         *FeedbackItem     `json:"feedback,omitempty"`
}

// Event is delivered to observers after a mutation has been persisted.
// Context is the full resulting record, owned by the receiver.
type Event struct {
	Type      EventType       `json:"type"`
	ContextID string          `json:"contextId"`
	Delta     Delta           `json:"updates"`
	Context   PlanningContext `json:"fullContext"`
}

// Observer receives change events. It runs synchronously while the store
// holds its write lock, so it must not call back into mutating operations.
type Observer func(Event)

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T { return &v }
