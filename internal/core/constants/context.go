package constants

const (
	HeaderRequestID   = "X-Rama-Request-ID"
	HeaderForwardedBy = "X-Rama-Forwarded-By"

	DefaultMaxHeaderListSize = 64 * 1024
	DefaultStreamBufferSize  = 64 * 1024
)
