package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"unauthenticated", ErrUnauthenticated, http.StatusUnauthorized},
		{"wrapped unauthenticated", fmt.Errorf("%w: token expired", ErrUnauthenticated), http.StatusUnauthorized},
		{"provider down", fmt.Errorf("%w: dial tcp", ErrAuthProviderUnavailable), http.StatusServiceUnavailable},
		{"invalid message", ErrInvalidMessage, http.StatusBadRequest},
		{"bad login", ErrInvalidCredentials, http.StatusUnauthorized},
		{"duplicate user", ErrUserAlreadyExists, http.StatusConflict},
		{"unknown", fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, MapToHTTPStatus(tt.err))
		})
	}
}
