package examdate

import "errors"

var (
	ErrMissingEndpoint   = errors.New("examdate: no lookup endpoint configured")
	ErrInvalidConfig     = errors.New("examdate: invalid client configuration")
	ErrUnavailable       = errors.New("examdate: lookup service unavailable")
	ErrLookupRejected    = errors.New("examdate: lookup returned a non-success code")
	ErrMalformedResponse = errors.New("examdate: malformed lookup response")
)
