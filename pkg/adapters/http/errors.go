package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aretw0/strata/pkg/domain"
)

// errorBody is the JSON form of a rejected request.
type errorBody struct {
	Error   string          `json:"error"`
	Status  int             `json:"status"`
	Defects []domain.Defect `json:"defects,omitempty"`
	Current *domain.Plan    `json:"current,omitempty"`
}

// describe maps a command error to its HTTP status and body.
func describe(err error) errorBody {
	body := errorBody{Error: err.Error(), Status: http.StatusInternalServerError}

	var conflict *domain.VersionConflict
	var invalid *domain.ValidationError
	var merge *domain.MergeConflict
	switch {
	case errors.As(err, &conflict):
		body.Status = http.StatusConflict
		body.Current = conflict.Current
	case errors.As(err, &invalid):
		body.Status = http.StatusUnprocessableEntity
		body.Defects = invalid.Defects
	case errors.As(err, &merge):
		body.Status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidEdit):
		body.Status = http.StatusBadRequest
	case errors.Is(err, domain.ErrTargetExists):
		body.Status = http.StatusConflict
	case errors.Is(err, domain.ErrPlanNotFound),
		errors.Is(err, domain.ErrGraphNotFound),
		errors.Is(err, domain.ErrTargetNotFound):
		body.Status = http.StatusNotFound
	case errors.Is(err, domain.ErrActorStopped), errors.Is(err, domain.ErrCancelled):
		body.Status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		body.Status = http.StatusGatewayTimeout
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
