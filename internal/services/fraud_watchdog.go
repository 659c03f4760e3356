package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banksim/backend/internal/audit"
	"github.com/banksim/backend/internal/config"
	"github.com/banksim/backend/internal/lock"
	"github.com/banksim/backend/internal/models"
	"github.com/banksim/backend/internal/store"
	"github.com/banksim/backend/internal/webhook"
)

// FraudWatchdog guarantees that every fraud case is resolved within a bounded
// window even if the customer never responds. It is a process-wide singleton:
// constructed once at startup, recovery scan run once, no teardown beyond
// process exit.
//
// Tracking is an in-memory map with a single re-armable sweep timer, not one
// timer per case. A sweep processes every due case, then re-arms only while
// cases remain tracked.
type FraudWatchdog struct {
	store      store.PersonStore
	locker     lock.Locker
	dispatcher webhook.Dispatcher
	config     *config.EngineConfig
	timeout    time.Duration
	audit      *audit.Logger

	mu    sync.Mutex
	cases map[string]models.FraudCase
	timer *time.Timer
}

func NewFraudWatchdog(personStore store.PersonStore, locker lock.Locker, dispatcher webhook.Dispatcher, cfg *config.EngineConfig) (*FraudWatchdog, error) {
	if cfg.WatchdogTimeout < time.Second {
		return nil, fmt.Errorf("fraud watchdog timeout %v below 1s minimum", cfg.WatchdogTimeout)
	}
	return &FraudWatchdog{
		store:      personStore,
		locker:     locker,
		dispatcher: dispatcher,
		config:     cfg,
		timeout:    cfg.WatchdogTimeout,
		audit:      audit.NewLogger(),
		cases:      make(map[string]models.FraudCase),
	}, nil
}

// Recover rebuilds the tracking map from the store after a restart. It scans
// every person carrying fraud cases, not just the first one found.
func (fw *FraudWatchdog) Recover(ctx context.Context) error {
	persons, err := fw.store.FindWithFraudCases(ctx)
	if err != nil {
		return err
	}
	for _, person := range persons {
		for _, fraudCase := range person.FraudCases {
			fw.Watch(fraudCase)
		}
	}
	log.Printf("[WATCHDOG] Recovered %d tracked fraud cases", fw.TrackedCount())
	return nil
}

// Watch registers a case. The sweep timer is armed only if no sweep is
// currently scheduled.
func (fw *FraudWatchdog) Watch(fraudCase models.FraudCase) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.cases[fraudCase.ID] = fraudCase
	if fw.timer == nil {
		fw.timer = time.AfterFunc(fw.timeout, fw.sweep)
	}
}

// TrackedCount reports how many cases the watchdog currently tracks
func (fw *FraudWatchdog) TrackedCount() int {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return len(fw.cases)
}

// ReportFraud moves an open reservation into the fraud pool, creates the
// case with the response deadline, and starts watching it.
func (fw *FraudWatchdog) ReportFraud(ctx context.Context, personID, reservationID string) (*models.FraudCase, error) {
	var fraudCase *models.FraudCase

	err := fw.locker.WithLock(ctx, personID, fw.config.LockTTL, func() error {
		person, err := fw.store.Load(ctx, personID)
		if err != nil {
			return err
		}

		reservation := person.Account.ReservationByID(reservationID)
		if reservation == nil {
			return ErrReservationNotFound
		}
		cardID := ""
		if reservation.MetaInfo.Cards != nil {
			cardID = reservation.MetaInfo.Cards.CardID
		}

		held := *reservation
		person.Account.RemoveReservation(reservationID)
		person.Account.FraudReservations = append(person.Account.FraudReservations, held)

		fraudCase = &models.FraudCase{
			ID:                   uuid.New().String(),
			ReservationID:        reservationID,
			CardID:               cardID,
			ReservationExpiresAt: time.Now().Add(fw.timeout).UnixMilli(),
		}
		person.FraudCases = append(person.FraudCases, *fraudCase)

		return fw.store.Save(ctx, person)
	})

	if err != nil {
		return nil, err
	}

	fw.Watch(*fraudCase)
	fw.audit.LogFraudCase(personID, fraudCase.ID, "PENDING")
	log.Printf("[WATCHDOG] Fraud case %s opened for reservation %s", fraudCase.ID, reservationID)
	return fraudCase, nil
}

// WhitelistCard resolves a case as a false positive: the case and its held
// reservation are dropped, the card status stays untouched.
func (fw *FraudWatchdog) WhitelistCard(ctx context.Context, fraudCaseID string) error {
	return fw.resolve(ctx, fraudCaseID, "")
}

// ConfirmFraud resolves a case as confirmed fraud: same removal as whitelist
// but the card is hard-blocked with BLOCKED_BY_SOLARIS.
func (fw *FraudWatchdog) ConfirmFraud(ctx context.Context, fraudCaseID string) error {
	return fw.resolve(ctx, fraudCaseID, models.CardStatusBlockedBySolaris)
}

// sweep processes every due case, then re-arms while cases remain tracked.
// The watchdog goes idle only when the tracked set is empty.
func (fw *FraudWatchdog) sweep() {
	ctx := context.Background()

	fw.mu.Lock()
	now := time.Now().UnixMilli()
	due := make([]models.FraudCase, 0, len(fw.cases))
	for _, fraudCase := range fw.cases {
		if now >= fraudCase.ReservationExpiresAt {
			due = append(due, fraudCase)
		}
	}
	fw.mu.Unlock()

	for _, fraudCase := range due {
		if err := fw.escalate(ctx, fraudCase); err != nil {
			log.Printf("[WATCHDOG] Failed to escalate fraud case %s: %v", fraudCase.ID, err)
		}
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if len(fw.cases) > 0 {
		fw.timer = time.AfterFunc(fw.timeout, fw.sweep)
	} else {
		fw.timer = nil
	}
}

// escalate emits the timeout event and soft-blocks the card. It holds the
// per-person lock across the read-then-decide window so a case whitelisted
// concurrently is not escalated.
func (fw *FraudWatchdog) escalate(ctx context.Context, fraudCase models.FraudCase) error {
	person, err := fw.store.FindByFraudCaseID(ctx, fraudCase.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Resolved interactively while the sweep was pending.
			fw.untrack(fraudCase.ID)
			return nil
		}
		return err
	}

	return fw.locker.WithLock(ctx, person.ID, fw.config.LockTTL, func() error {
		person, err := fw.store.Load(ctx, person.ID)
		if err != nil {
			return err
		}
		current := person.FraudCaseByID(fraudCase.ID)
		if current == nil {
			fw.untrack(fraudCase.ID)
			return nil
		}

		reservation := person.Account.FraudReservationByID(current.ReservationID)
		if reservation != nil {
			payload := cardAuthorizationPayload(reservation, current.CardID, "TIMEOUT")
			if err := fw.dispatcher.Dispatch(ctx, webhook.EventCardFraudCaseTimeout, payload, person.ID); err != nil {
				return err
			}
		}

		return fw.resolveLocked(ctx, person, current, models.CardStatusBlocked)
	})
}

// resolve is the interactive resolution path shared by whitelist and confirm
func (fw *FraudWatchdog) resolve(ctx context.Context, fraudCaseID, cardStatus string) error {
	person, err := fw.store.FindByFraudCaseID(ctx, fraudCaseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrFraudCaseNotFound
		}
		return err
	}

	return fw.locker.WithLock(ctx, person.ID, fw.config.LockTTL, func() error {
		person, err := fw.store.Load(ctx, person.ID)
		if err != nil {
			return err
		}
		fraudCase := person.FraudCaseByID(fraudCaseID)
		if fraudCase == nil {
			return ErrFraudCaseNotFound
		}
		return fw.resolveLocked(ctx, person, fraudCase, cardStatus)
	})
}

// resolveLocked removes the held reservation and the case, persists, then
// applies the card status transition if one is requested. Caller holds the
// per-person lock.
func (fw *FraudWatchdog) resolveLocked(ctx context.Context, person *models.Person, fraudCase *models.FraudCase, cardStatus string) error {
	caseID := fraudCase.ID
	cardID := fraudCase.CardID

	person.Account.RemoveFraudReservation(fraudCase.ReservationID)
	person.RemoveFraudCase(caseID)

	if err := fw.store.Save(ctx, person); err != nil {
		return err
	}
	fw.untrack(caseID)

	if cardStatus == "" {
		fw.audit.LogFraudCase(person.ID, caseID, "WHITELISTED")
		log.Printf("[WATCHDOG] Fraud case %s whitelisted, card %s untouched", caseID, cardID)
		return nil
	}

	card := person.CardByID(cardID)
	if card == nil {
		return ErrCardNotFound
	}
	card.Status = cardStatus
	card.UpdatedAt = time.Now()
	if err := fw.store.Save(ctx, person); err != nil {
		return err
	}

	fw.audit.LogFraudCase(person.ID, caseID, "CONFIRMED")
	log.Printf("[WATCHDOG] Fraud case %s resolved, card %s now %s", caseID, cardID, cardStatus)
	return fw.dispatcher.Dispatch(ctx, webhook.EventCardLifecycle, map[string]interface{}{
		"card_id": cardID,
		"status":  cardStatus,
	}, person.ID)
}

func (fw *FraudWatchdog) untrack(fraudCaseID string) {
	fw.mu.Lock()
	delete(fw.cases, fraudCaseID)
	fw.mu.Unlock()
}
