package delegation

import "github.com/fleetward/fleetward/app/models"

// Side identifies which party of a relationship drives a transition.
type Side string

const (
	SideManager Side = "manager"
	SideClient  Side = "client"
)

// CanTransition reports whether the roster state machine has an edge from -> to.
// revoked is absorbing.
func CanTransition(from, to models.DelegationStatus) bool {
	switch from {
	case models.DelegationPending:
		return to == models.DelegationApproved || to == models.DelegationRevoked
	case models.DelegationApproved:
		return to == models.DelegationLeaveRequested || to == models.DelegationRemoveRequested
	case models.DelegationLeaveRequested, models.DelegationRemoveRequested:
		return to == models.DelegationRevoked
	default:
		return false
	}
}

// Transition returns to when the edge exists, otherwise from and ErrInvalidTransition.
func Transition(from, to models.DelegationStatus) (models.DelegationStatus, error) {
	if !CanTransition(from, to) {
		return from, ErrInvalidTransition
	}
	return to, nil
}

// MayApply reports whether side is allowed to drive the edge from -> to.
// Each edge belongs to exactly one side except withdrawing a pending request,
// which the client may do and the manager may do as a rejection.
func MayApply(side Side, from, to models.DelegationStatus) bool {
	if !CanTransition(from, to) {
		return false
	}
	switch side {
	case SideManager:
		switch {
		case from == models.DelegationPending:
			return true
		case from == models.DelegationApproved && to == models.DelegationRemoveRequested:
			return true
		case from == models.DelegationLeaveRequested:
			return true
		}
	case SideClient:
		switch {
		case from == models.DelegationPending && to == models.DelegationRevoked:
			return true
		case from == models.DelegationApproved && to == models.DelegationLeaveRequested:
			return true
		case from == models.DelegationRemoveRequested:
			return true
		}
	}
	return false
}
