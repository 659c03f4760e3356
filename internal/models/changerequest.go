package models

import (
	"encoding/json"
	"time"
)

// ChangeRequest is the single-slot, TAN-gated wrapper around a pending
// business mutation. Creating a new one supersedes any previous one.
type ChangeRequest struct {
	ID             string          `json:"id"`
	Method         Method          `json:"method"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Token          string          `json:"token,omitempty"`
	StringToSign   string          `json:"string_to_sign,omitempty"`
	DeliveryMethod string          `json:"delivery_method,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Method identifies which workflow owns a change request. The set is closed;
// the confirm dispatcher switches exhaustively over it.
type Method string

const (
	MethodMobileNumberChange     Method = "MOBILE_NUMBER_CHANGE"
	MethodStandingOrderCreate    Method = "STANDING_ORDER_CREATE"
	MethodStandingOrderUpdate    Method = "STANDING_ORDER_UPDATE"
	MethodStandingOrderCancel    Method = "STANDING_ORDER_CANCEL"
	MethodSEPATransfer           Method = "SEPA_TRANSFER"
	MethodTimedOrder             Method = "TIMED_ORDER"
	MethodBatchTransfer          Method = "BATCH_TRANSFER"
	MethodCardPINChange          Method = "CARD_PIN_CHANGE"
	MethodPersonUpdate           Method = "PERSON_UPDATE"
	MethodCardTransactionConfirm Method = "CARD_TRANSACTION_CONFIRM"
)

// Change-request statuses as returned to the HTTP layer
const (
	ChangeRequestStatusAuthorizationRequired = "AUTHORIZATION_REQUIRED"
	ChangeRequestStatusConfirmationRequired  = "CONFIRMATION_REQUIRED"
	ChangeRequestStatusCompleted             = "COMPLETED"
	ChangeRequestStatusFailed                = "FAILED"
)

// Delivery methods for the one-time code
const (
	DeliveryMobileNumber  = "mobile_number"
	DeliveryDeviceSigning = "device_signing"
)

// MobileNumberChangePayload carries the new number to verify
type MobileNumberChangePayload struct {
	Number string `json:"number"`
}

// StandingOrderCreatePayload carries the order activated on confirm
type StandingOrderCreatePayload struct {
	StandingOrder StandingOrder `json:"standing_order"`
}

// StandingOrderUpdatePayload carries the delta merged on confirm
type StandingOrderUpdatePayload struct {
	StandingOrderID string          `json:"standing_order_id"`
	Delta           json.RawMessage `json:"delta"`
}

// StandingOrderCancelPayload names the order canceled on confirm
type StandingOrderCancelPayload struct {
	StandingOrderID string `json:"standing_order_id"`
}

// SEPATransferPayload carries the transfer booked on confirm
type SEPATransferPayload struct {
	Transfer SEPATransfer `json:"transfer"`
}

// TimedOrderPayload carries the order scheduled on confirm
type TimedOrderPayload struct {
	TimedOrder TimedOrder `json:"timed_order"`
}

// BatchTransferPayload carries the transfers booked together on confirm
type BatchTransferPayload struct {
	Transfers []SEPATransfer `json:"transfers"`
}

// CardPINChangePayload carries the new PIN set on confirm
type CardPINChangePayload struct {
	CardID string `json:"card_id"`
	PIN    string `json:"pin"`
}

// PersonUpdatePayload carries the attribute delta merged on confirm
type PersonUpdatePayload struct {
	Delta json.RawMessage `json:"delta"`
}

// CardTransactionPayload backs the dual-id SCA challenge on a card
// transaction. A single challenge can be confirmed through either id:
// the authenticate id opens the pending reservation, the decline id drops it.
type CardTransactionPayload struct {
	AuthenticateChangeRequestID string `json:"authenticate_change_request_id"`
	DeclineChangeRequestID      string `json:"decline_change_request_id"`
	ReservationID               string `json:"reservation_id"`
}

// Matches reports whether the given change-request id addresses this request,
// including the SCA alias ids carried in a CARD_TRANSACTION_CONFIRM payload.
func (cr *ChangeRequest) Matches(id string) bool {
	if cr.ID == id {
		return true
	}
	if cr.Method != MethodCardTransactionConfirm {
		return false
	}
	var p CardTransactionPayload
	if err := json.Unmarshal(cr.Payload, &p); err != nil {
		return false
	}
	return p.AuthenticateChangeRequestID == id || p.DeclineChangeRequestID == id
}
