package contexts

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by backends for a missing record.
var ErrNotFound = errors.New("context not found")

// NotFoundError names the context id that does not exist.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("context %s not found", e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
