package usercontext

// Locals keys set by the identity middleware.
const (
	KeyUserContext = "USER_CONTEXT"
	KeyUserID      = "user_id"
	KeyRole        = "role"
	KeyAuthMethod  = "auth_method"
)

const (
	AuthMethodAPIKey = "api_key"
	AuthMethodBearer = "bearer"
)

// TargetParam is the query parameter carrying the standalone account a caller acts for.
const TargetParam = "standAloneId"
