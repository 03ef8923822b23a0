package contexts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/HendryAvila/gemini-planner/internal/logging"
	"github.com/HendryAvila/gemini-planner/internal/metrics"
)

// Store is the single owner of context records for a process. Reads go
// through an in-memory cache; every mutation writes through to the backend
// and replaces the cached copy before notifying observers.
//
// Mutations through one Store are serialized. Writes from other processes
// to the same id are not coordinated and the last write wins.
type Store struct {
	backend Backend
	logger  *slog.Logger
	metrics *metrics.Metrics

	// mu serializes read-modify-write sequences.
	mu sync.Mutex

	cacheMu sync.RWMutex
	cache   map[string]*PlanningContext

	obsMu     sync.RWMutex
	observers map[int]Observer
	nextObs   int
}

// NewStore wraps backend.
func NewStore(backend Backend, logger *slog.Logger, m *metrics.Metrics) *Store {
	return &Store{
		backend:   backend,
		logger:    logging.OrDefault(logger),
		metrics:   m,
		cache:     map[string]*PlanningContext{},
		observers: map[int]Observer{},
	}
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Subscribe registers obs and returns a function that removes it.
func (s *Store) Subscribe(obs Observer) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = obs
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// Create persists a new context in the planning phase. The id is derived
// from the project name and the current millisecond; on collision the
// millisecond component is bumped until the id is free.
func (s *Store) Create(ctx context.Context, projectName, requirements, constraints string) (*PlanningContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := timeNow().UTC()
	millis := now.UnixMilli()
	id := NewID(projectName, millis)
	for {
		taken, err := s.taken(ctx, id)
		if err != nil {
			return nil, err
		}
		if !taken {
			break
		}
		millis++
		id = NewID(projectName, millis)
	}

	c := &PlanningContext{
		ID:           id,
		ProjectName:  projectName,
		Requirements: requirements,
		Constraints:  constraints,
		CurrentPhase: PhasePlanning,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.normalize()

	if err := s.backend.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("saving new context: %w", err)
	}
	s.cachePut(c)
	s.emit(EventCreated, Delta{}, c)
	return clone(c), nil
}

// Get returns a copy of the context for id, loading it on a cache miss.
func (s *Store) Get(ctx context.Context, id string) (*PlanningContext, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return clone(c), nil
}

// Update applies a partial patch.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (*PlanningContext, error) {
	if patch.CurrentPhase != nil {
		if err := ValidatePhase(*patch.CurrentPhase); err != nil {
			return nil, err
		}
	}
	return s.mutate(ctx, id, Delta{Patch: patch}, func(c *PlanningContext) {
		patch.apply(c)
	})
}

// AddPlanningSession appends session and moves the context to executing.
func (s *Store) AddPlanningSession(ctx context.Context, id string, session PlanningSession) (*PlanningContext, error) {
	phase := PhaseAfterPlanning()
	delta := Delta{Patch: Patch{CurrentPhase: &phase}, PlanningSession: &session}
	return s.mutate(ctx, id, delta, func(c *PlanningContext) {
		c.PlanningHistory = append(c.PlanningHistory, session)
		c.CurrentPhase = phase
	})
}

// AddExecutionSession appends session and moves the context to complete or
// reviewing depending on its success rate.
func (s *Store) AddExecutionSession(ctx context.Context, id string, session ExecutionSession) (*PlanningContext, error) {
	phase := PhaseAfterExecution(session.SuccessRate)
	delta := Delta{Patch: Patch{CurrentPhase: &phase}, ExecutionSession: &session}
	return s.mutate(ctx, id, delta, func(c *PlanningContext) {
		c.ExecutionHistory = append(c.ExecutionHistory, session)
		c.CurrentPhase = phase
	})
}

// AddFeedback appends item.
func (s *Store) AddFeedback(ctx context.Context, id string, item FeedbackItem) (*PlanningContext, error) {
	return s.mutate(ctx, id, Delta{Feedback: &item}, func(c *PlanningContext) {
		c.Feedback = append(c.Feedback, item)
	})
}

// List returns summaries of every stored context, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	all, err := s.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(all))
	for i := range all {
		out = append(out, all[i].Summarize())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Invalidate drops id from the cache so the next Get reloads it.
func (s *Store) Invalidate(id string) {
	s.cacheMu.Lock()
	delete(s.cache, id)
	s.cacheMu.Unlock()
}

func (s *Store) mutate(ctx context.Context, id string, delta Delta, change func(*PlanningContext)) (*PlanningContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	next := clone(current)
	change(next)
	next.UpdatedAt = timeNow().UTC()

	if err := s.backend.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("saving context %s: %w", id, err)
	}
	s.cachePut(next)
	s.emit(EventUpdated, delta, next)
	return clone(next), nil
}

// load returns the cached record (not a copy) or reads it from the backend.
func (s *Store) load(ctx context.Context, id string) (*PlanningContext, error) {
	s.cacheMu.RLock()
	c, ok := s.cache[id]
	s.cacheMu.RUnlock()
	if ok {
		return c, nil
	}
	if !ValidID(id) {
		return nil, &NotFoundError{ID: id}
	}

	c, err := s.backend.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	s.cachePut(c)
	return c, nil
}

func (s *Store) taken(ctx context.Context, id string) (bool, error) {
	s.cacheMu.RLock()
	_, ok := s.cache[id]
	s.cacheMu.RUnlock()
	if ok {
		return true, nil
	}
	exists, err := s.backend.Exists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("checking context id %s: %w", id, err)
	}
	return exists, nil
}

func (s *Store) cachePut(c *PlanningContext) {
	s.cacheMu.Lock()
	s.cache[c.ID] = c
	s.cacheMu.Unlock()
}

func (s *Store) emit(typ EventType, delta Delta, c *PlanningContext) {
	s.metrics.ObserveStore(string(typ))

	s.obsMu.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, obs := range s.observers {
		observers = append(observers, obs)
	}
	s.obsMu.RUnlock()

	for _, obs := range observers {
		s.notify(obs, Event{Type: typ, ContextID: c.ID, Delta: delta, Context: *clone(c)})
	}
}

// notify isolates the store from a panicking observer.
func (s *Store) notify(obs Observer, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("context observer panicked", "event", ev.Type, "context", ev.ContextID, "panic", r)
		}
	}()
	obs(ev)
}

// clone deep-copies c through its JSON form, which is also its persisted form.
func clone(c *PlanningContext) *PlanningContext {
	data, err := json.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("contexts: clone: %v", err))
	}
	var out PlanningContext
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("contexts: clone: %v", err))
	}
	return &out
}
