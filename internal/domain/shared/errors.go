package shared

import "fmt"

// ErrStorageUnavailable indicates the ledger store could not be reached or failed mid-operation.
// It is fatal to the request and surfaced as a retry-later response.
type ErrStorageUnavailable struct {
	Op  string
	Err error
}

func (e ErrStorageUnavailable) Error() string {
	if e.Err == nil {
		return "storage unavailable: " + e.Op
	}
	return fmt.Sprintf("storage unavailable: %s: %v", e.Op, e.Err)
}

func (e ErrStorageUnavailable) Unwrap() error {
	return e.Err
}

// Is matches any ErrStorageUnavailable regardless of operation
func (e ErrStorageUnavailable) Is(target error) bool {
	_, ok := target.(ErrStorageUnavailable)
	return ok
}

// ErrForbidden indicates the actor lacks the capability for an action
type ErrForbidden struct {
	Action string
}

func (e ErrForbidden) Error() string {
	return "forbidden: " + e.Action
}

func (e ErrForbidden) Is(target error) bool {
	_, ok := target.(ErrForbidden)
	return ok
}
