package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/iho/cbledger/internal/adapter/http/dto"
	"github.com/iho/cbledger/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError maps err to a status and writes it. Server errors are logged.
func writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := mapDomainError(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg(message)
	}

	writeError(w, status, message, err.Error())
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	// Settlement failures wrap their cause, so they are matched first.
	case errors.Is(err, domain.ErrSettlementFailed),
		errors.Is(err, domain.ErrStaleProposal),
		errors.Is(err, domain.ErrMemberAlreadyPooled),
		errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPoolNotFound),
		errors.Is(err, domain.ErrRouteNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoSurplus),
		errors.Is(err, domain.ErrInsufficientBankedCredit),
		errors.Is(err, domain.ErrEmptyPool),
		errors.Is(err, domain.ErrDuplicateMember),
		errors.Is(err, domain.ErrPoolInDeficit):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// parseYear reads the mandatory year query parameter.
func parseYear(r *http.Request) (int, error) {
	val := r.URL.Query().Get("year")
	if val == "" {
		return 0, fmt.Errorf("%w: year is required", domain.ErrInvalidInput)
	}

	year, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%w: year %q is not a number", domain.ErrInvalidInput, val)
	}

	return year, nil
}
