package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banksim/backend/internal/audit"
	"github.com/banksim/backend/internal/config"
	"github.com/banksim/backend/internal/lock"
	"github.com/banksim/backend/internal/models"
	"github.com/banksim/backend/internal/store"
	"github.com/banksim/backend/internal/webhook"
)

// exchangeRates converts authorization amounts into the account's settlement
// currency (EUR). The table is static; unsupported currencies are rejected.
var exchangeRates = map[string]float64{
	"EUR": 1.0,
	"USD": 0.91,
	"GBP": 1.17,
	"CHF": 1.05,
	"PLN": 0.23,
	"SEK": 0.088,
	"DKK": 0.134,
	"NOK": 0.085,
}

// ReservationService decides whether a card authorization becomes a hold
// against the account and later converts holds into bookings or discards them
type ReservationService struct {
	store      store.PersonStore
	locker     lock.Locker
	dispatcher webhook.Dispatcher
	config     *config.EngineConfig
	audit      *audit.Logger
}

// CreateReservationParams describes an inbound card-authorization attempt
type CreateReservationParams struct {
	CardID        string `json:"card_id" validate:"required"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	Currency      string `json:"currency" validate:"required,len=3"`
	Type          string `json:"type"`
	Recipient     string `json:"recipient"`
	DeclineReason string `json:"decline_reason,omitempty"`
}

func NewReservationService(personStore store.PersonStore, locker lock.Locker, dispatcher webhook.Dispatcher, cfg *config.EngineConfig) *ReservationService {
	return &ReservationService{
		store:      personStore,
		locker:     locker,
		dispatcher: dispatcher,
		config:     cfg,
		audit:      audit.NewLogger(),
	}
}

// CreateReservation runs the decline/hold decision for a card authorization.
// The whole read-balance-then-write sequence holds the per-person lock. A nil
// reservation with a nil error means an externally-forced decline was emitted.
func (rs *ReservationService) CreateReservation(ctx context.Context, personID string, params CreateReservationParams) (*models.Reservation, error) {
	var reservation *models.Reservation

	err := rs.locker.WithLock(ctx, personID, rs.config.LockTTL, func() error {
		person, err := rs.store.Load(ctx, personID)
		if err != nil {
			return err
		}

		amount, err := convertToSettlementCurrency(params.Amount, params.Currency)
		if err != nil {
			return err
		}

		// Externally-forced decline from test/backoffice tooling: emit the
		// decline with the supplied reason, create nothing.
		if params.DeclineReason != "" {
			log.Printf("[RESERVATION] Forced decline for card %s: %s", params.CardID, params.DeclineReason)
			return rs.dispatchDecline(ctx, person, params, params.DeclineReason)
		}

		card := person.CardByID(params.CardID)
		if card == nil {
			return ErrCardNotFound
		}
		if card.Blocked() {
			if err := rs.dispatchDecline(ctx, person, params, DeclineReasonCardBlocked); err != nil {
				return err
			}
			return ErrCardBlocked
		}
		if card.Status == models.CardStatusInactive {
			if err := rs.dispatchDecline(ctx, person, params, DeclineReasonCardInactive); err != nil {
				return err
			}
			return ErrCardInactive
		}
		if card.Status != models.CardStatusActive {
			return ErrCardNotActive
		}
		if person.Account.AvailableBalance < amount {
			if err := rs.dispatchDecline(ctx, person, params, DeclineReasonInsufficientFunds); err != nil {
				return err
			}
			return ErrInsufficientFunds
		}

		reservation = newCardReservation(person, params, amount)
		person.Account.Reservations = append(person.Account.Reservations, *reservation)

		if err := rs.store.Save(ctx, person); err != nil {
			return err
		}

		log.Printf("[RESERVATION] Created reservation %s for person %s, amount %d %s",
			reservation.ID, personID, amount, person.Account.Currency)
		rs.audit.LogReservation(personID, reservation.ID, amount, models.ReservationStatusOpen)
		return rs.dispatcher.Dispatch(ctx, webhook.EventCardAuthorization,
			cardAuthorizationPayload(reservation, params.CardID, ""), personID)
	})

	if err != nil {
		rs.audit.LogError(personID, "", err)
		return nil, err
	}
	return reservation, nil
}

// UpdateReservation resolves an open hold. BOOK converts it into a booking,
// EXPIRE discards it, RESOLVE is an accepted no-op.
func (rs *ReservationService) UpdateReservation(ctx context.Context, personID, reservationID, action string) (*models.Reservation, error) {
	var result *models.Reservation

	err := rs.locker.WithLock(ctx, personID, rs.config.LockTTL, func() error {
		person, err := rs.store.Load(ctx, personID)
		if err != nil {
			return err
		}

		reservation := person.Account.ReservationByID(reservationID)
		if reservation == nil {
			return ErrReservationNotFound
		}

		switch action {
		case models.ReservationActionResolve:
			result = reservation
			return nil

		case models.ReservationActionBook:
			return rs.book(ctx, person, reservation, &result)

		case models.ReservationActionExpire:
			reservation.Status = models.ReservationStatusExpired
			expired := *reservation
			person.Account.RemoveReservation(reservationID)
			if err := rs.store.Save(ctx, person); err != nil {
				return err
			}
			result = &expired
			log.Printf("[RESERVATION] Expired reservation %s for person %s", reservationID, person.ID)
			rs.audit.LogReservation(person.ID, reservationID, expired.Amount.Value, models.ReservationStatusExpired)
			return rs.dispatcher.Dispatch(ctx, webhook.EventCardAuthorizationResolution,
				resolutionPayload(&expired), person.ID)

		default:
			return fmt.Errorf("unsupported reservation action %q", action)
		}
	})

	if err != nil {
		rs.audit.LogError(personID, reservationID, err)
		return nil, err
	}
	return result, nil
}

// BookCreditPresentment books an incoming card credit immediately, bypassing
// the hold/decline path. It still mutates the account, so it takes the lock.
func (rs *ReservationService) BookCreditPresentment(ctx context.Context, personID, cardID string, amount int64, currency string) (*models.Booking, error) {
	var booking *models.Booking

	err := rs.locker.WithLock(ctx, personID, rs.config.LockTTL, func() error {
		person, err := rs.store.Load(ctx, personID)
		if err != nil {
			return err
		}

		settled, err := convertToSettlementCurrency(amount, currency)
		if err != nil {
			return err
		}
		if person.CardByID(cardID) == nil {
			return ErrCardNotFound
		}

		now := time.Now()
		booking = &models.Booking{
			ID:          uuid.New().String(),
			BookingType: models.BookingTypeCardTransaction,
			// Incoming credit books with a positive sign
			Amount:      models.NewAmount(settled, person.Account.Currency),
			Status:      "BOOKED",
			BookingDate: now,
			ValutaDate:  now,
			MetaInfo: models.MetaInfo{Cards: &models.CardMetaInfo{
				CardID:          cardID,
				OriginalAmount:  &models.Amount{Value: amount, Unit: "cents", Currency: currency},
				TransactionType: "CREDIT_PRESENTMENT",
			}},
		}

		person.Account.Balance += settled
		person.Transactions = append(person.Transactions, *booking)

		if err := rs.store.Save(ctx, person); err != nil {
			return err
		}

		log.Printf("[RESERVATION] Booked credit presentment %s for person %s", booking.ID, personID)
		return rs.dispatcher.Dispatch(ctx, webhook.EventBooking, booking, personID)
	})

	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (rs *ReservationService) book(ctx context.Context, person *models.Person, reservation *models.Reservation, result **models.Reservation) error {
	now := time.Now()
	booking := models.Booking{
		ID:          uuid.New().String(),
		BookingType: models.BookingTypeCardTransaction,
		// Outgoing card spend books with a flipped sign
		Amount:      models.NewAmount(-reservation.Amount.Value, reservation.Amount.Currency),
		Description: reservation.Description,
		MetaInfo:    reservation.MetaInfo,
		Status:      "BOOKED",
		BookingDate: now,
		ValutaDate:  now,
	}

	reservation.Status = models.ReservationStatusResolved
	resolved := *reservation

	person.Account.Balance -= reservation.Amount.Value
	person.Account.RemoveReservation(reservation.ID)
	person.Transactions = append(person.Transactions, booking)

	if err := rs.store.Save(ctx, person); err != nil {
		return err
	}
	*result = &resolved

	log.Printf("[RESERVATION] Booked reservation %s for person %s", resolved.ID, person.ID)
	rs.audit.LogReservation(person.ID, resolved.ID, resolved.Amount.Value, models.ReservationStatusResolved)
	if err := rs.dispatcher.Dispatch(ctx, webhook.EventCardAuthorizationResolution,
		resolutionPayload(&resolved), person.ID); err != nil {
		return err
	}
	return rs.dispatcher.Dispatch(ctx, webhook.EventBooking, booking, person.ID)
}

func newCardReservation(person *models.Person, params CreateReservationParams, amount int64) *models.Reservation {
	now := time.Now()
	expires := now.Add(7 * 24 * time.Hour)
	return &models.Reservation{
		ID:          uuid.New().String(),
		Amount:      models.NewAmount(amount, person.Account.Currency),
		Type:        reservationType(params.Type),
		Status:      models.ReservationStatusOpen,
		Description: params.Recipient,
		ExpiresAt:   &expires,
		CreatedAt:   now,
		MetaInfo: models.MetaInfo{Cards: &models.CardMetaInfo{
			CardID:          params.CardID,
			Merchant:        &models.Merchant{Name: params.Recipient},
			OriginalAmount:  &models.Amount{Value: params.Amount, Unit: "cents", Currency: params.Currency},
			TransactionDate: now.Format("2006-01-02"),
			TransactionTime: now.Format(time.RFC3339),
		}},
	}
}

func (rs *ReservationService) dispatchDecline(ctx context.Context, person *models.Person, params CreateReservationParams, reason string) error {
	payload := map[string]interface{}{
		"card_id": params.CardID,
		"type":    reservationType(params.Type),
		"status":  "DECLINED",
		"reason":  reason,
		"amount":  models.Amount{Value: params.Amount, Unit: "cents", Currency: params.Currency},
	}
	return rs.dispatcher.Dispatch(ctx, webhook.EventCardAuthorizationDecline, payload, person.ID)
}

func reservationType(t string) string {
	if t == "" {
		return models.ReservationTypeCardAuthorization
	}
	return t
}

// cardAuthorizationPayload maps a reservation onto the CARD_AUTHORIZATION
// event shape shared by authorization, timeout and resolution events
func cardAuthorizationPayload(reservation *models.Reservation, cardID, status string) map[string]interface{} {
	if status == "" {
		status = reservation.Status
	}
	payload := map[string]interface{}{
		"id":        reservation.ID,
		"card_id":   cardID,
		"type":      reservation.Type,
		"status":    status,
		"amount":    reservation.Amount,
		"meta_info": reservation.MetaInfo,
	}
	if reservation.ExpiresAt != nil {
		payload["expires_at"] = reservation.ExpiresAt
	}
	return payload
}

func resolutionPayload(reservation *models.Reservation) map[string]interface{} {
	cardID := ""
	if reservation.MetaInfo.Cards != nil {
		cardID = reservation.MetaInfo.Cards.CardID
	}
	return cardAuthorizationPayload(reservation, cardID, reservation.Status)
}

// convertToSettlementCurrency converts minor units of an arbitrary currency
// into EUR cents via the static rate table
func convertToSettlementCurrency(amount int64, currency string) (int64, error) {
	rate, ok := exchangeRates[currency]
	if !ok {
		return 0, ErrUnsupportedCurrency
	}
	return int64(math.Round(float64(amount) * rate)), nil
}
