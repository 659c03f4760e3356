package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/banksim/backend/internal/config"
	"github.com/banksim/backend/internal/lock"
	"github.com/banksim/backend/internal/models"
	"github.com/banksim/backend/internal/store"
	"github.com/banksim/backend/internal/webhook"
)

// ChangeRequestService implements the generic two-phase authorize/confirm
// workflow. Every mutating business operation goes through it: the caller
// supplies a method tag and a payload, the customer supplies the TAN.
type ChangeRequestService struct {
	store      store.PersonStore
	locker     lock.Locker
	dispatcher webhook.Dispatcher
	settlement *SettlementService
	config     *config.EngineConfig
}

// ChangeRequestResponse is the HTTP-facing shape of all three phases
type ChangeRequestResponse struct {
	ID           string      `json:"id"`
	Status       string      `json:"status"`
	UpdatedAt    time.Time   `json:"updated_at"`
	URL          string      `json:"url,omitempty"`
	StringToSign string      `json:"string_to_sign,omitempty"`
	ResponseCode int         `json:"response_code,omitempty"`
	ResponseBody interface{} `json:"response_body,omitempty"`
}

func NewChangeRequestService(personStore store.PersonStore, locker lock.Locker, dispatcher webhook.Dispatcher, settlement *SettlementService, cfg *config.EngineConfig) *ChangeRequestService {
	return &ChangeRequestService{
		store:      personStore,
		locker:     locker,
		dispatcher: dispatcher,
		settlement: settlement,
		config:     cfg,
	}
}

// Create stores a new change request on the person, superseding any previous
// one. The person must have a verified mobile number or a registered signing
// device; otherwise the request is rejected outright.
func (cs *ChangeRequestService) Create(ctx context.Context, personID string, method models.Method, payload interface{}) (*ChangeRequestResponse, error) {
	var response *ChangeRequestResponse

	err := cs.locker.WithLock(ctx, personID, cs.config.LockTTL, func() error {
		person, err := cs.store.Load(ctx, personID)
		if err != nil {
			return err
		}

		if !canAuthorize(person) {
			return ErrUnauthorizedChangeRequest
		}

		raw, err := marshalPayload(payload)
		if err != nil {
			return err
		}

		request := &models.ChangeRequest{
			ID:        uuid.New().String(),
			Method:    method,
			Payload:   raw,
			CreatedAt: time.Now(),
		}
		person.ChangeRequest = request

		if err := cs.store.Save(ctx, person); err != nil {
			return err
		}

		log.Printf("[CHANGE_REQUEST] Created %s request %s for person %s", method, request.ID, personID)
		response = &ChangeRequestResponse{
			ID:        request.ID,
			Status:    models.ChangeRequestStatusAuthorizationRequired,
			UpdatedAt: person.UpdatedAt,
			URL:       fmt.Sprintf("/v1/change_requests/%s/authorize", request.ID),
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return response, nil
}

// Authorize mints the one-time code for mobile delivery, or the signing
// challenge for device delivery, and moves the request to
// CONFIRMATION_REQUIRED.
func (cs *ChangeRequestService) Authorize(ctx context.Context, changeRequestID, deliveryMethod string) (*ChangeRequestResponse, error) {
	person, err := cs.store.FindByChangeRequestID(ctx, changeRequestID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, ErrUnknownChangeRequest
		}
		return nil, err
	}

	var response *ChangeRequestResponse

	err = cs.locker.WithLock(ctx, person.ID, cs.config.LockTTL, func() error {
		person, err := cs.store.Load(ctx, person.ID)
		if err != nil {
			return err
		}

		request := cs.currentRequest(person, changeRequestID)
		if request == nil {
			return ErrUnknownChangeRequest
		}

		switch deliveryMethod {
		case models.DeliveryMobileNumber:
			request.Token = mintTAN(cs.config.TANLength)
			request.DeliveryMethod = models.DeliveryMobileNumber
			log.Printf("[CHANGE_REQUEST] Authorized %s via mobile number, TAN minted", request.ID)
		case models.DeliveryDeviceSigning:
			request.StringToSign = uuid.New().String()
			request.DeliveryMethod = models.DeliveryDeviceSigning
			log.Printf("[CHANGE_REQUEST] Authorized %s via device signing", request.ID)
		default:
			return ErrInvalidDeliveryMethod
		}

		if err := cs.store.Save(ctx, person); err != nil {
			return err
		}

		response = &ChangeRequestResponse{
			ID:           changeRequestID,
			Status:       models.ChangeRequestStatusConfirmationRequired,
			UpdatedAt:    person.UpdatedAt,
			StringToSign: request.StringToSign,
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return response, nil
}

// StringToSign returns the device-signing challenge for a change request
// that was authorized via device signing.
func (cs *ChangeRequestService) StringToSign(ctx context.Context, changeRequestID string) (string, error) {
	person, err := cs.store.FindByChangeRequestID(ctx, changeRequestID)
	if err != nil {
		if err == store.ErrNotFound {
			return "", ErrUnknownChangeRequest
		}
		return "", err
	}

	request := cs.currentRequest(person, changeRequestID)
	if request == nil || request.StringToSign == "" {
		return "", ErrUnknownChangeRequest
	}
	return request.StringToSign, nil
}

// Confirm checks the TAN (or accepts the device signature, which is verified
// out of band), runs the per-method side effect, and deletes the change
// request. A wrong TAN deletes the request as well: the pending action is
// discarded rather than left open to further guesses.
func (cs *ChangeRequestService) Confirm(ctx context.Context, changeRequestID, tan string) (*ChangeRequestResponse, error) {
	person, err := cs.store.FindByChangeRequestID(ctx, changeRequestID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, ErrUnknownChangeRequest
		}
		return nil, err
	}

	var response *ChangeRequestResponse

	err = cs.locker.WithLock(ctx, person.ID, cs.config.LockTTL, func() error {
		person, err := cs.store.Load(ctx, person.ID)
		if err != nil {
			return err
		}

		request := cs.currentRequest(person, changeRequestID)
		if request == nil {
			return ErrUnknownChangeRequest
		}

		if request.DeliveryMethod == "" {
			// Confirm before authorize: no token was ever minted. Treated
			// like a wrong code, the pending action is discarded.
			person.ChangeRequest = nil
			if err := cs.store.Save(ctx, person); err != nil {
				return err
			}
			log.Printf("[CHANGE_REQUEST] Confirm before authorize for %s, request discarded", changeRequestID)
			return ErrInvalidTAN
		}
		if request.DeliveryMethod == models.DeliveryMobileNumber && tan != request.Token {
			// A wrong code invalidates the whole pending action.
			person.ChangeRequest = nil
			if err := cs.store.Save(ctx, person); err != nil {
				return err
			}
			log.Printf("[CHANGE_REQUEST] Wrong TAN for %s, request discarded", changeRequestID)
			return ErrInvalidTAN
		}
		if request.DeliveryMethod == models.DeliveryDeviceSigning && tan == "" {
			return ErrInvalidTAN
		}

		body, err := cs.applyMethod(ctx, person, request, changeRequestID)
		if err != nil {
			return err
		}

		person.ChangeRequest = nil
		if err := cs.store.Save(ctx, person); err != nil {
			return err
		}

		log.Printf("[CHANGE_REQUEST] Completed %s request %s for person %s", request.Method, changeRequestID, person.ID)
		response = &ChangeRequestResponse{
			ID:           changeRequestID,
			Status:       models.ChangeRequestStatusCompleted,
			UpdatedAt:    person.UpdatedAt,
			ResponseCode: 202,
			ResponseBody: body,
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return response, nil
}

// currentRequest returns the person's change request if it matches the id and
// is still inside the TTL. An aged request is indistinguishable from a
// missing one.
func (cs *ChangeRequestService) currentRequest(person *models.Person, changeRequestID string) *models.ChangeRequest {
	request := person.ChangeRequest
	if request == nil || !request.Matches(changeRequestID) {
		return nil
	}
	if time.Since(request.CreatedAt) > cs.config.ChangeRequestTTL {
		return nil
	}
	return request
}

// applyMethod dispatches to the handler owning the method tag. The switch is
// exhaustive over the closed method set.
func (cs *ChangeRequestService) applyMethod(ctx context.Context, person *models.Person, request *models.ChangeRequest, invokedID string) (interface{}, error) {
	switch request.Method {
	case models.MethodMobileNumberChange:
		return applyMobileNumberChange(person, request.Payload)
	case models.MethodStandingOrderCreate:
		return applyStandingOrderCreate(person, request.Payload)
	case models.MethodStandingOrderUpdate:
		return applyStandingOrderUpdate(person, request.Payload)
	case models.MethodStandingOrderCancel:
		return applyStandingOrderCancel(person, request.Payload)
	case models.MethodSEPATransfer:
		return cs.applySEPATransfer(person, request.Payload)
	case models.MethodTimedOrder:
		return applyTimedOrder(person, request.Payload)
	case models.MethodBatchTransfer:
		return cs.applyBatchTransfer(person, request.Payload)
	case models.MethodCardPINChange:
		return applyCardPINChange(person, request.Payload)
	case models.MethodPersonUpdate:
		return applyPersonUpdate(person, request.Payload)
	case models.MethodCardTransactionConfirm:
		return cs.applyCardTransaction(ctx, person, request.Payload, invokedID)
	default:
		return nil, fmt.Errorf("unhandled change request method %q", request.Method)
	}
}

func applyMobileNumberChange(person *models.Person, payload json.RawMessage) (interface{}, error) {
	var p models.MobileNumberChangePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("invalid mobile number payload: %w", err)
	}
	person.MobileNumber = &models.MobileNumber{Number: p.Number, Verified: true}
	return person.MobileNumber, nil
}

func applyStandingOrderCreate(person *models.Person, payload json.RawMessage) (interface{}, error) {
	var p models.StandingOrderCreatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("invalid standing order payload: %w", err)
	}
	order := p.StandingOrder
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	order.Status = models.StandingOrderStatusActive
	person.StandingOrders = append(person.StandingOrders, order)
	return order, nil
}

func applyStandingOrderUpdate(person *models.Person, payload json.RawMessage) (interface{}, error) {
	var p models.StandingOrderUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("invalid standing order payload: %w", err)
	}
	order := person.StandingOrderByID(p.StandingOrderID)
	if order == nil {
		return nil, fmt.Errorf("standing order %s: %w", p.StandingOrderID, ErrUnknownChangeRequest)
	}
	if err := json.Unmarshal(p.Delta, order); err != nil {
		return nil, fmt.Errorf("invalid standing order delta: %w", err)
	}
	return *order, nil
}

func applyStandingOrderCancel(person *models.Person, payload json.RawMessage) (interface{}, error) {
	var p models.StandingOrderCancelPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("invalid standing order payload: %w", err)
	}
	order := person.StandingOrderByID(p.StandingOrderID)
	if order == nil {
		return nil, fmt.Errorf("standing order %s: %w", p.StandingOrderID, ErrUnknownChangeRequest)
	}
	order.Status = models.StandingOrderStatusCanceled
	return *order, nil
}

func (cs *ChangeRequestService) applySEPATransfer(person *models.Person, payload json.RawMessage) (interface{}, error) {
	var p models.SEPATransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("invalid transfer payload: %w", err)
	}
	transfer, err := cs.bookTransfer(person, p.Transfer)
	if err != nil {
		return nil, err
	}
	if err := cs.settlement.SubmitTransfer(person, transfer); err != nil {
		return nil, err
	}
	return *transfer, nil
}

func (cs *ChangeRequestService) applyBatchTransfer(person *models.Person, payload json.RawMessage) (interface{}, error) {
	var p models.BatchTransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("invalid batch transfer payload: %w", err)
	}
	booked := make([]models.SEPATransfer, 0, len(p.Transfers))
	for _, transfer := range p.Transfers {
		result, err := cs.bookTransfer(person, transfer)
		if err != nil {
			return nil, err
		}
		booked = append(booked, *result)
	}
	if err := cs.settlement.SubmitBatch(person, booked); err != nil {
		return nil, err
	}
	return booked, nil
}

// bookTransfer debits the account and appends the booking for one confirmed
// outgoing transfer
func (cs *ChangeRequestService) bookTransfer(person *models.Person, transfer models.SEPATransfer) (*models.SEPATransfer, error) {
	if transfer.ID == "" {
		transfer.ID = uuid.New().String()
	}
	transfer.Status = models.TransferStatusBooked

	now := time.Now()
	person.Account.Balance -= transfer.Amount.Value
	person.Transactions = append(person.Transactions, models.Booking{
		ID:            uuid.New().String(),
		BookingType:   models.BookingTypeSEPACreditTransfer,
		Amount:        models.NewAmount(-transfer.Amount.Value, transfer.Amount.Currency),
		Description:   transfer.Reference,
		RecipientName: transfer.RecipientName,
		RecipientIBAN: transfer.RecipientIBAN,
		EndToEndID:    transfer.EndToEndID,
		Status:        "BOOKED",
		BookingDate:   now,
		ValutaDate:    now,
	})
	return &transfer, nil
}

func applyTimedOrder(person *models.Person, payload json.RawMessage) (interface{}, error) {
	var p models.TimedOrderPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("invalid timed order payload: %w", err)
	}
	order := p.TimedOrder
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	order.Status = models.TimedOrderStatusScheduled
	person.TimedOrders = append(person.TimedOrders, order)
	return order, nil
}

func applyCardPINChange(person *models.Person, payload json.RawMessage) (interface{}, error) {
	var p models.CardPINChangePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("invalid pin payload: %w", err)
	}
	card := person.CardByID(p.CardID)
	if card == nil {
		return nil, ErrCardNotFound
	}
	sum := sha256.Sum256([]byte(p.PIN))
	card.PINHash = hex.EncodeToString(sum[:])
	card.UpdatedAt = time.Now()
	return map[string]string{"card_id": card.ID, "status": "CHANGED"}, nil
}

func applyPersonUpdate(person *models.Person, payload json.RawMessage) (interface{}, error) {
	var p models.PersonUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("invalid person update payload: %w", err)
	}
	// json.Unmarshal into the existing struct merges: only fields present in
	// the delta are overwritten.
	if err := json.Unmarshal(p.Delta, person); err != nil {
		return nil, fmt.Errorf("invalid person update delta: %w", err)
	}
	return person, nil
}

// applyCardTransaction resolves the dual-id SCA challenge. The invoked id
// decides the branch: the authenticate id opens the pending reservation, the
// decline id drops it.
func (cs *ChangeRequestService) applyCardTransaction(ctx context.Context, person *models.Person, payload json.RawMessage, invokedID string) (interface{}, error) {
	var p models.CardTransactionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("invalid card transaction payload: %w", err)
	}

	pending := person.Account.PendingReservation
	if pending == nil || pending.ID != p.ReservationID {
		return nil, ErrReservationNotFound
	}

	switch invokedID {
	case p.AuthenticateChangeRequestID:
		pending.Status = models.ReservationStatusOpen
		person.Account.Reservations = append(person.Account.Reservations, *pending)
		person.Account.PendingReservation = nil
		cardID := ""
		if pending.MetaInfo.Cards != nil {
			cardID = pending.MetaInfo.Cards.CardID
		}
		if err := cs.dispatcher.Dispatch(ctx, webhook.EventCardAuthorization,
			cardAuthorizationPayload(pending, cardID, models.ReservationStatusOpen), person.ID); err != nil {
			return nil, err
		}
		return map[string]string{"reservation_id": pending.ID, "status": "AUTHENTICATED"}, nil

	case p.DeclineChangeRequestID:
		person.Account.PendingReservation = nil
		return map[string]string{"reservation_id": p.ReservationID, "status": "DECLINED"}, nil

	default:
		return nil, ErrUnknownChangeRequest
	}
}

// canAuthorize requires a verified mobile number or a registered signing device
func canAuthorize(person *models.Person) bool {
	if person.MobileNumber != nil && person.MobileNumber.Verified {
		return true
	}
	return len(person.Devices) > 0
}

func marshalPayload(payload interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode change request payload: %w", err)
	}
	return raw, nil
}

// mintTAN derives a numeric one-time code from the clock. Not secret-grade;
// the sandbox only needs plausibility.
func mintTAN(length int) string {
	mod := int64(1)
	for i := 0; i < length; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", length, time.Now().UnixNano()%mod)
}
