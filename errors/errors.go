package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthenticated         = fmt.Errorf("unauthenticated")
	ErrAuthProviderUnavailable = fmt.Errorf("auth provider unavailable")
	ErrInvalidMessage          = fmt.Errorf("invalid message")
	ErrDeliveryDropped         = fmt.Errorf("delivery dropped")
	ErrFeedClosed              = fmt.Errorf("live feed closed")

	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)

// MapToHTTPStatus translates a relay error into the status code returned by the gateway.
// Unknown errors are reported as internal failures.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrUnauthenticated), stderrors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrAuthProviderUnavailable):
		return http.StatusServiceUnavailable
	case stderrors.Is(err, ErrInvalidMessage), stderrors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
