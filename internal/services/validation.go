package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/banksim/backend/internal/store"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		errorResp.Details = make(map[string]string)
		for _, err := range validationErr.(validator.ValidationErrors) {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// SendBusinessError maps a service-layer error onto the HTTP status the
// partner API documents for it and writes the JSON error envelope.
// Infrastructure faults are not echoed back to the caller.
func SendBusinessError(w http.ResponseWriter, err error) {
	if !IsBusinessError(err) && !errors.Is(err, store.ErrNotFound) {
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	SendErrorResponse(w, err.Error(), businessErrorStatus(err), nil)
}

func businessErrorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, ErrPersonNotFound),
		errors.Is(err, ErrCardNotFound),
		errors.Is(err, ErrReservationNotFound),
		errors.Is(err, ErrFraudCaseNotFound),
		errors.Is(err, ErrUnknownChangeRequest):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTAN),
		errors.Is(err, ErrUnauthorizedChangeRequest):
		return http.StatusForbidden
	case errors.Is(err, ErrCardBlocked),
		errors.Is(err, ErrCardInactive),
		errors.Is(err, ErrCardNotActive),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrUnsupportedCurrency):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidDeliveryMethod):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
