package middlewares

// gin context keys set by the middlewares in this package.
const (
	CtxRequestID = "request_id"
	CtxUserID    = "auth.user_id"
	CtxEmail     = "auth.email"
	CtxRole      = "auth.role"
	CtxJobID     = "job_id"
)
