package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/banksim/backend/internal/services"
)

type AuthorizationHandler struct {
	reservations *services.ReservationService
	sca          *services.SCAService
	validator    *services.ValidationHelper
}

func NewAuthorizationHandler(reservations *services.ReservationService, sca *services.SCAService) *AuthorizationHandler {
	return &AuthorizationHandler{
		reservations: reservations,
		sca:          sca,
		validator:    services.NewValidationHelper(),
	}
}

// CreateReservation opens a card-authorization hold
// @Summary Create card authorization
// @Description Run the decline/hold decision for a card authorization and open a reservation against the account
// @Tags Authorizations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param personId path string true "Person ID"
// @Param request body services.CreateReservationParams true "Authorization attempt"
// @Success 201 {object} models.Reservation
// @Success 200 {object} object{status=string}
// @Failure 404 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /persons/{personId}/accounts/{accountId}/authorizations [post]
func (h *AuthorizationHandler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "personId")

	var params services.CreateReservationParams
	if !decodeBody(w, r, &params) {
		return
	}

	if err := h.validator.ValidateStruct(&params); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	reservation, err := h.reservations.CreateReservation(r.Context(), personID, params)
	if err != nil {
		services.SendBusinessError(w, err)
		return
	}
	if reservation == nil {
		// Externally-forced decline: the webhook fired, no hold was opened.
		writeJSON(w, http.StatusOK, map[string]string{"status": "DECLINED"})
		return
	}

	writeJSON(w, http.StatusCreated, reservation)
}

// UpdateReservation resolves, books, or expires an open hold
// @Summary Update card authorization
// @Description Apply a RESOLVE, BOOK, or EXPIRE action to an open reservation
// @Tags Authorizations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param personId path string true "Person ID"
// @Param reservationId path string true "Reservation ID"
// @Param request body object{action=string} true "Resolution action"
// @Success 200 {object} models.Reservation
// @Failure 404 {object} services.ErrorResponse
// @Router /persons/{personId}/accounts/{accountId}/authorizations/{reservationId} [post]
func (h *AuthorizationHandler) UpdateReservation(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "personId")
	reservationID := chi.URLParam(r, "reservationId")

	var req struct {
		Action string `json:"action" validate:"required,oneof=RESOLVE BOOK EXPIRE"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	reservation, err := h.reservations.UpdateReservation(r.Context(), personID, reservationID, req.Action)
	if err != nil {
		services.SendBusinessError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reservation)
}

// CreditPresentment books an inbound credit directly
// @Summary Book credit presentment
// @Description Book an inbound card credit against the account without a prior hold
// @Tags Authorizations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param personId path string true "Person ID"
// @Param request body object{card_id=string,amount=int64,currency=string} true "Credit presentment"
// @Success 201 {object} models.Booking
// @Failure 404 {object} services.ErrorResponse
// @Router /persons/{personId}/accounts/{accountId}/credit_presentments [post]
func (h *AuthorizationHandler) CreditPresentment(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "personId")

	var req struct {
		CardID   string `json:"card_id" validate:"required"`
		Amount   int64  `json:"amount" validate:"required,gt=0"`
		Currency string `json:"currency" validate:"required,len=3"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	booking, err := h.reservations.BookCreditPresentment(r.Context(), personID, req.CardID, req.Amount, req.Currency)
	if err != nil {
		services.SendBusinessError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

// RequestSCAChallenge parks an authorization pending customer confirmation
// @Summary Request SCA challenge
// @Description Park a card authorization as pending and issue a step-up confirmation challenge to the customer
// @Tags Authorizations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param personId path string true "Person ID"
// @Param request body services.CreateReservationParams true "Authorization attempt"
// @Success 201 {object} services.SCAChallenge
// @Failure 422 {object} services.ErrorResponse
// @Router /persons/{personId}/accounts/{accountId}/authorizations/sca [post]
func (h *AuthorizationHandler) RequestSCAChallenge(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "personId")

	var params services.CreateReservationParams
	if !decodeBody(w, r, &params) {
		return
	}

	if err := h.validator.ValidateStruct(&params); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	challenge, err := h.sca.RequestChallenge(r.Context(), personID, params)
	if err != nil {
		services.SendBusinessError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, challenge)
}
