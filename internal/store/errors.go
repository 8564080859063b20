package store

import "fmt"

// OperationError wraps any insert/update/delete/select failure from the
// backing store. Causes are not distinguished: a network drop and a
// constraint violation surface identically to callers.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewOperationError wraps err as a store operation failure.
func NewOperationError(op string, err error) error {
	return &OperationError{Op: op, Err: err}
}
