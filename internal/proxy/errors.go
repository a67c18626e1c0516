package proxy

import (
	"errors"
	"net/http"
	"strings"

	"mandoub-backend/internal/models"
	"mandoub-backend/internal/store"
)

// ErrTimeout is returned when a request misses its deadline, queued or in flight.
var ErrTimeout = errors.New("request timeout")

// TimeoutMessage is the error text sent with a 408.
const TimeoutMessage = "Request timeout"

// StatusFor maps an error to the response status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusRequestTimeout
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, store.ErrNetwork):
		return http.StatusServiceUnavailable
	case strings.Contains(strings.ToLower(err.Error()), "rate limit"):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ErrorFor maps a response status back to a store sentinel, for clients of the proxy.
func ErrorFor(status int) error {
	switch status {
	case http.StatusBadRequest:
		return models.ErrValidation
	case http.StatusRequestTimeout:
		return ErrTimeout
	case http.StatusNotFound:
		return store.ErrNotFound
	case http.StatusTooManyRequests:
		return store.ErrRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return store.ErrNetwork
	}
	return nil
}
