package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/TagLock/internal/exchange"
	"github.com/atinyakov/TagLock/internal/service"
)

// statusFor maps service and reader errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrProfileLocked),
		errors.Is(err, service.ErrNotEligible),
		errors.Is(err, exchange.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, exchange.ErrReadOnly),
		errors.Is(err, exchange.ErrNotSupported),
		errors.Is(err, exchange.ErrInsufficientCapacity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, exchange.ErrTimeout),
		errors.Is(err, exchange.ErrSessionInvalidated):
		return http.StatusGatewayTimeout
	case errors.Is(err, exchange.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrGateway),
		errors.Is(err, exchange.ErrConnection),
		errors.Is(err, exchange.ErrReadFailed),
		errors.Is(err, exchange.ErrWriteFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
