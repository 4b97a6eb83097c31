package mutation

import "fmt"

// Error reports a mutation that failed or whose effect may not be visible in
// cached reads. Payload is the caller's payload, untouched, so the operation can
// be resubmitted.
type Error struct {
	Op       Op
	Resource string
	ID       string
	Payload  any
	Err      error

	// Committed is true when the server accepted the change but the version
	// counter could not be bumped: the data changed, cached pages may be stale.
	Committed bool
}

func (e *Error) Error() string {
	target := e.Resource
	if e.ID != "" {
		target += "/" + e.ID
	}
	if e.Committed {
		return fmt.Sprintf("%s %s committed but caches not invalidated: %v", e.Op, target, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
