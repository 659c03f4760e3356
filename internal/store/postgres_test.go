package store

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banksim/backend/internal/models"
)

func personDocument(t *testing.T, person *models.Person) []byte {
	t.Helper()
	doc, err := json.Marshal(person)
	require.NoError(t, err)
	return doc
}

func TestPostgresPersonStore_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		doc := personDocument(t, &models.Person{ID: "person-1", FirstName: "Max"})
		mock.ExpectQuery(regexp.QuoteMeta("SELECT document FROM persons WHERE id = $1")).
			WithArgs("person-1").
			WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(doc))

		person, err := NewPostgresPersonStore(db).Load(ctx, "person-1")
		require.NoError(t, err)
		assert.Equal(t, "Max", person.FirstName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT document FROM persons WHERE id = $1")).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"document"}))

		_, err = NewPostgresPersonStore(db).Load(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPostgresPersonStore_Save(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO persons")).
		WithArgs("person-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	person := &models.Person{
		ID: "person-1",
		Account: &models.Account{
			Limit:   10000,
			Balance: 5000,
			Reservations: []models.Reservation{
				{ID: "res-1", Status: models.ReservationStatusOpen, Amount: models.NewAmount(2000, "EUR")},
			},
		},
	}
	require.NoError(t, NewPostgresPersonStore(db).Save(ctx, person))

	// Saving re-derives the available balance from the invariant.
	assert.Equal(t, int64(13000), person.Account.AvailableBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPersonStore_FindByFraudCaseID(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	doc := personDocument(t, &models.Person{
		ID:         "person-1",
		FraudCases: []models.FraudCase{{ID: "case-1"}},
	})
	mock.ExpectQuery("SELECT document FROM persons").
		WithArgs("case-1").
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(doc))

	person, err := NewPostgresPersonStore(db).FindByFraudCaseID(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, "person-1", person.ID)
}

func TestPostgresPersonStore_FindWithFraudCases(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	docA := personDocument(t, &models.Person{ID: "person-a", FraudCases: []models.FraudCase{{ID: "case-a"}}})
	docB := personDocument(t, &models.Person{ID: "person-b", FraudCases: []models.FraudCase{{ID: "case-b"}}})
	mock.ExpectQuery("SELECT document FROM persons").
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(docA).AddRow(docB))

	persons, err := NewPostgresPersonStore(db).FindWithFraudCases(ctx)
	require.NoError(t, err)
	require.Len(t, persons, 2)
	assert.Equal(t, "person-a", persons[0].ID)
	assert.Equal(t, "person-b", persons[1].ID)
}
