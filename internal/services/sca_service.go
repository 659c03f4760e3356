package services

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/banksim/backend/internal/config"
	"github.com/banksim/backend/internal/lock"
	"github.com/banksim/backend/internal/models"
	"github.com/banksim/backend/internal/store"
	"github.com/banksim/backend/internal/webhook"
)

// SCAService issues step-up authentication challenges on card transactions.
// The authorization is parked as the account's PendingReservation and a
// dual-id change request is minted: confirming through the authenticate id
// opens the hold, confirming through the decline id drops it.
type SCAService struct {
	store      store.PersonStore
	locker     lock.Locker
	dispatcher webhook.Dispatcher
	config     *config.EngineConfig
}

// SCAChallenge is returned to the card network side of the sandbox
type SCAChallenge struct {
	AuthenticateChangeRequestID string `json:"authenticate_change_request_id"`
	DeclineChangeRequestID      string `json:"decline_change_request_id"`
	ReservationID               string `json:"reservation_id"`
	Status                      string `json:"status"`
}

func NewSCAService(personStore store.PersonStore, locker lock.Locker, dispatcher webhook.Dispatcher, cfg *config.EngineConfig) *SCAService {
	return &SCAService{
		store:      personStore,
		locker:     locker,
		dispatcher: dispatcher,
		config:     cfg,
	}
}

// RequestChallenge validates the authorization attempt like the reservation
// engine would, then parks it pending the customer's confirmation instead of
// opening the hold directly.
func (ss *SCAService) RequestChallenge(ctx context.Context, personID string, params CreateReservationParams) (*SCAChallenge, error) {
	var challenge *SCAChallenge

	err := ss.locker.WithLock(ctx, personID, ss.config.LockTTL, func() error {
		person, err := ss.store.Load(ctx, personID)
		if err != nil {
			return err
		}

		amount, err := convertToSettlementCurrency(params.Amount, params.Currency)
		if err != nil {
			return err
		}

		card := person.CardByID(params.CardID)
		if card == nil {
			return ErrCardNotFound
		}
		if card.Status != models.CardStatusActive {
			return ErrCardNotActive
		}
		if person.Account.AvailableBalance < amount {
			return ErrInsufficientFunds
		}

		reservation := newCardReservation(person, params, amount)
		person.Account.PendingReservation = reservation

		payload := models.CardTransactionPayload{
			AuthenticateChangeRequestID: uuid.New().String(),
			DeclineChangeRequestID:      uuid.New().String(),
			ReservationID:               reservation.ID,
		}
		raw, err := marshalPayload(payload)
		if err != nil {
			return err
		}
		person.ChangeRequest = &models.ChangeRequest{
			ID:        payload.AuthenticateChangeRequestID,
			Method:    models.MethodCardTransactionConfirm,
			Payload:   raw,
			CreatedAt: reservation.CreatedAt,
		}

		if err := ss.store.Save(ctx, person); err != nil {
			return err
		}

		challenge = &SCAChallenge{
			AuthenticateChangeRequestID: payload.AuthenticateChangeRequestID,
			DeclineChangeRequestID:      payload.DeclineChangeRequestID,
			ReservationID:               reservation.ID,
			Status:                      models.ChangeRequestStatusAuthorizationRequired,
		}

		log.Printf("[SCA] Challenge issued for person %s, reservation %s", personID, reservation.ID)
		return ss.dispatcher.Dispatch(ctx, webhook.EventSCAChallenge, challenge, personID)
	})

	if err != nil {
		return nil, err
	}
	return challenge, nil
}
