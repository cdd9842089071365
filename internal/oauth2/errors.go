package oauth2

import "errors"

var (
	// ErrUnauthenticated means no valid session exists.
	ErrUnauthenticated = errors.New("not authenticated")
	ErrNoUserID        = errors.New("no user id for session")

	// ErrRefreshFailed means the token endpoint could not be reached or
	// gave no usable answer. The session itself may still be valid.
	ErrRefreshFailed = errors.New("token refresh failed")
)
