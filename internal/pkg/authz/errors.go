package authz

import "errors"

// Internal causes. At the HTTP boundary every one of them becomes the same
// "not found or access denied" response.
var (
	ErrDelegateNotApproved = errors.New("target is not an approved delegate of the caller")
	ErrAccessDenied        = errors.New("record is not owned by the effective identity")
	ErrTargetNotAllowed    = errors.New("standalone users cannot act for another identity")
	ErrTargetRequired      = errors.New("transport managers must name a delegated client")
	ErrRoleNotPermitted    = errors.New("role may not access owned resources")
)

// IsDenied reports whether err is an authorization failure.
func IsDenied(err error) bool {
	return reason(err) != ""
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrDelegateNotApproved):
		return "delegate_not_approved"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrTargetNotAllowed):
		return "target_not_allowed"
	case errors.Is(err, ErrTargetRequired):
		return "target_required"
	case errors.Is(err, ErrRoleNotPermitted):
		return "role_not_permitted"
	}
	return ""
}
