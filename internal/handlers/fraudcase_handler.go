package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/banksim/backend/internal/services"
)

type FraudCaseHandler struct {
	watchdog  *services.FraudWatchdog
	validator *services.ValidationHelper
}

func NewFraudCaseHandler(watchdog *services.FraudWatchdog) *FraudCaseHandler {
	return &FraudCaseHandler{
		watchdog:  watchdog,
		validator: services.NewValidationHelper(),
	}
}

// Report flags an open reservation as suspected fraud
// @Summary Report fraud
// @Description Move an open reservation into the fraud pool and start the escalation deadline
// @Tags FraudCases
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param personId path string true "Person ID"
// @Param request body object{reservation_id=string} true "Reservation to flag"
// @Success 201 {object} models.FraudCase
// @Failure 404 {object} services.ErrorResponse
// @Router /persons/{personId}/fraud_cases [post]
func (h *FraudCaseHandler) Report(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "personId")

	var req struct {
		ReservationID string `json:"reservation_id" validate:"required"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	fraudCase, err := h.watchdog.ReportFraud(r.Context(), personID, req.ReservationID)
	if err != nil {
		services.SendBusinessError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, fraudCase)
}

// Whitelist clears a fraud case without touching the card
// @Summary Whitelist fraud case
// @Description Resolve a fraud case as legitimate, releasing the held reservation and leaving the card untouched
// @Tags FraudCases
// @Produce json
// @Security BearerAuth
// @Param personId path string true "Person ID"
// @Param id path string true "Fraud case ID"
// @Success 204 "resolved"
// @Failure 404 {object} services.ErrorResponse
// @Router /persons/{personId}/fraud_cases/{id}/whitelist [post]
func (h *FraudCaseHandler) Whitelist(w http.ResponseWriter, r *http.Request) {
	fraudCaseID := chi.URLParam(r, "id")

	if err := h.watchdog.WhitelistCard(r.Context(), fraudCaseID); err != nil {
		services.SendBusinessError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Confirm resolves a fraud case as genuine fraud
// @Summary Confirm fraud case
// @Description Resolve a fraud case as confirmed fraud and hard-block the card
// @Tags FraudCases
// @Produce json
// @Security BearerAuth
// @Param personId path string true "Person ID"
// @Param id path string true "Fraud case ID"
// @Success 204 "resolved"
// @Failure 404 {object} services.ErrorResponse
// @Router /persons/{personId}/fraud_cases/{id}/confirm [post]
func (h *FraudCaseHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	fraudCaseID := chi.URLParam(r, "id")

	if err := h.watchdog.ConfirmFraud(r.Context(), fraudCaseID); err != nil {
		services.SendBusinessError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
