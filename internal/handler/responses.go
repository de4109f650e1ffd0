package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/avdeyev/techcard-service/internal/bitrix"
	"github.com/avdeyev/techcard-service/internal/domain"
)

// Standard response types for consistent API responses

// SuccessResponse represents a simple successful operation message
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondJSON sends a JSON response with the given status code and payload
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	buf := getBuffer()
	defer putBuffer(buf)

	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		// Headers are already sent; the best we can do is log
		slog.Error("Failed to encode JSON response", "error", err)
		return
	}

	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("Failed to write response buffer", "error", err)
	}
}

// respondError sends a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// User-facing error messages for service errors
const (
	ErrMsgInvalidRequestError = "Invalid request. Please check your inputs."
	ErrMsgRecipeNotFoundError = "Tech card not found"
	ErrMsgInvalidRecipeError  = "Tech card is invalid"
	ErrMsgCRMUnavailableError = "CRM is temporarily unavailable. Please try again later."
	ErrMsgGenericServerError  = "Something went wrong"

	ErrMsgInvalidJSON       = "Request body is not valid JSON"
	ErrMsgMissingDealID     = "Deal event is missing the deal ID"
	ErrMsgInvalidMultiplier = "Multiplier must be a positive integer"
	ErrMsgInvalidEvent      = "Invalid stage-change event"
	ErrMsgRecipeStoreDown   = "Tech card store is unavailable"
	ErrMsgDealLookup        = "Failed to load the deal from CRM"
	ErrMsgInternalError     = "Something went wrong"
)

// mapServiceErrorToUserMessage maps domain errors to user-friendly HTTP responses
func mapServiceErrorToUserMessage(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrRecipeNotFound):
		return http.StatusNotFound, ErrMsgRecipeNotFoundError
	case errors.Is(err, domain.ErrInvalidRecipe), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, ErrMsgInvalidRequestError
	case errors.Is(err, bitrix.ErrUnavailable), errors.Is(err, bitrix.ErrTimeout):
		return http.StatusServiceUnavailable, ErrMsgCRMUnavailableError
	default:
		return http.StatusInternalServerError, ErrMsgGenericServerError
	}
}
