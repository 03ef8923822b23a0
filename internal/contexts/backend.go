package contexts

import "context"

// Backend is durable storage for context records. Every Save is a full
// overwrite of the record. Load returns ErrNotFound for a missing id.
type Backend interface {
	Load(ctx context.Context, id string) (*PlanningContext, error)
	Save(ctx context.Context, c *PlanningContext) error
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]PlanningContext, error)
	Close() error
}

// Watchable is implemented by backends whose records live in a directory
// that other processes may write to.
type Watchable interface {
	Dir() string
}
