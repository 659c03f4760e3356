package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/banksim/backend/internal/models"
	"github.com/banksim/backend/internal/services"
)

type ChangeRequestHandler struct {
	service   *services.ChangeRequestService
	validator *services.ValidationHelper
}

func NewChangeRequestHandler(service *services.ChangeRequestService) *ChangeRequestHandler {
	return &ChangeRequestHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// Create opens a change request for any TAN-gated mutation
// @Summary Create change request
// @Description Open a two-phase change request wrapping a banking mutation
// @Tags ChangeRequests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param personId path string true "Person ID"
// @Param request body object{method=string,payload=object} true "Change request"
// @Success 202 {object} services.ChangeRequestResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /persons/{personId}/change_requests [post]
func (h *ChangeRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "personId")

	var req struct {
		Method  models.Method   `json:"method" validate:"required"`
		Payload json.RawMessage `json:"payload"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	response, err := h.service.Create(r.Context(), personID, req.Method, req.Payload)
	if err != nil {
		services.SendBusinessError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, response)
}

// Authorize mints the one-time code, or the signing challenge
// @Summary Authorize change request
// @Description Request TAN delivery or a device-signing challenge for a pending change request
// @Tags ChangeRequests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Change request ID"
// @Param request body object{delivery_method=string} false "Delivery method (mobile_number or device_signing)"
// @Success 201 {object} services.ChangeRequestResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /change_requests/{id}/authorize [post]
func (h *ChangeRequestHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	changeRequestID := chi.URLParam(r, "id")

	var req struct {
		DeliveryMethod string `json:"delivery_method"`
	}
	if r.ContentLength > 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}
	if req.DeliveryMethod == "" {
		req.DeliveryMethod = models.DeliveryMobileNumber
	}

	response, err := h.service.Authorize(r.Context(), changeRequestID, req.DeliveryMethod)
	if err != nil {
		services.SendBusinessError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, response)
}

// Confirm completes a change request with the one-time code
// @Summary Confirm change request
// @Description Confirm a change request with the delivered TAN (or device signature) and apply its side effect
// @Tags ChangeRequests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Change request ID"
// @Param request body object{tan=string} true "One-time code"
// @Success 202 {object} services.ChangeRequestResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /change_requests/{id}/confirm [post]
func (h *ChangeRequestHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	changeRequestID := chi.URLParam(r, "id")

	var req struct {
		TAN       string `json:"tan"`
		Signature string `json:"signature"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	token := req.TAN
	if token == "" {
		token = req.Signature
	}

	response, err := h.service.Confirm(r.Context(), changeRequestID, token)
	if err != nil {
		services.SendBusinessError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, response)
}

// QR renders the device-signing challenge as a QR code image
// @Summary Change request signing QR
// @Description Render the string_to_sign of a device-signing change request as a PNG QR code
// @Tags ChangeRequests
// @Produce png
// @Security BearerAuth
// @Param id path string true "Change request ID"
// @Success 200 {file} binary
// @Failure 404 {object} services.ErrorResponse
// @Router /change_requests/{id}/qr [get]
func (h *ChangeRequestHandler) QR(w http.ResponseWriter, r *http.Request) {
	changeRequestID := chi.URLParam(r, "id")

	stringToSign, err := h.service.StringToSign(r.Context(), changeRequestID)
	if err != nil {
		services.SendBusinessError(w, err)
		return
	}

	png, err := qrcode.Encode(stringToSign, qrcode.Medium, 256)
	if err != nil {
		services.SendErrorResponse(w, "Failed to render QR code", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// decodeBody enforces the shared request-body rules: size cap, no unknown
// fields, a single JSON object.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
