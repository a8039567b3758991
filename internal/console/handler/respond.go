package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError мапит доменные ошибки на HTTP-статусы в одном месте.
// Конфликт статусов (повторное решение) — это 409, а не 500.
func writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrActionNotFound), errors.Is(err, domain.ErrRuleNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyResolved), errors.Is(err, domain.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
