package store

import (
	"context"
	"errors"

	"github.com/banksim/backend/internal/models"
)

// ErrNotFound is returned when no person matches the lookup
var ErrNotFound = errors.New("person not found")

// PersonStore loads and saves Person aggregates as whole documents. Saving is
// atomic at the document level only; callers serialize read-modify-write
// cycles with the per-person lock.
type PersonStore interface {
	Load(ctx context.Context, personID string) (*models.Person, error)
	Save(ctx context.Context, person *models.Person) error
	FindByFraudCaseID(ctx context.Context, fraudCaseID string) (*models.Person, error)
	FindByAccountID(ctx context.Context, accountID string) (*models.Person, error)
	// FindByChangeRequestID matches the request's own id as well as the
	// authenticate/decline alias ids of an SCA challenge
	FindByChangeRequestID(ctx context.Context, changeRequestID string) (*models.Person, error)
	FindWithFraudCases(ctx context.Context) ([]*models.Person, error)
}

// normalize re-derives the account's available balance before a save so the
// balance invariant holds at every persisted point
func normalize(person *models.Person) {
	if person.Account != nil {
		person.Account.RecomputeAvailableBalance()
	}
}
