package delegation

import "errors"

// These describe the caller's own roster and are safe to show to the caller.
var (
	ErrInvalidTransition   = errors.New("invalid delegation transition")
	ErrCapacityExceeded    = errors.New("delegation roster is at capacity")
	ErrAlreadyPresent      = errors.New("client already has an active entry in this roster")
	ErrAlreadyDelegated    = errors.New("client is already delegated to another transport manager")
	ErrNotFound            = errors.New("delegation entry not found")
	ErrCapacityBelowActive = errors.New("capacity cannot be lower than the number of active entries")
	ErrInvalidCapacity     = errors.New("capacity must be positive")
	ErrSelfDelegation      = errors.New("a manager cannot delegate to itself")
	ErrConcurrentUpdate    = errors.New("roster changed concurrently, retry the request")
	ErrSideNotAllowed      = errors.New("the other party must apply this transition")
)

// IsUserFacing reports whether err is one of the registry's descriptive failures.
func IsUserFacing(err error) bool {
	for _, e := range []error{
		ErrInvalidTransition, ErrCapacityExceeded, ErrAlreadyPresent, ErrAlreadyDelegated,
		ErrNotFound, ErrCapacityBelowActive, ErrInvalidCapacity, ErrSelfDelegation, ErrConcurrentUpdate,
		ErrSideNotAllowed,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
