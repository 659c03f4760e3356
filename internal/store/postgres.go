package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banksim/backend/internal/models"
)

// PostgresPersonStore persists each person as a single JSONB document
type PostgresPersonStore struct {
	db *sql.DB
}

func NewPostgresPersonStore(db *sql.DB) *PostgresPersonStore {
	return &PostgresPersonStore{db: db}
}

func (s *PostgresPersonStore) Load(ctx context.Context, personID string) (*models.Person, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT document FROM persons WHERE id = $1
	`, personID).Scan(&doc)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load person %s: %w", personID, err)
	}

	return decodePerson(doc)
}

func (s *PostgresPersonStore) Save(ctx context.Context, person *models.Person) error {
	normalize(person)
	person.UpdatedAt = time.Now()

	doc, err := json.Marshal(person)
	if err != nil {
		return fmt.Errorf("failed to encode person %s: %w", person.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO persons (id, document, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET document = $2, updated_at = $3
	`, person.ID, doc, person.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save person %s: %w", person.ID, err)
	}
	return nil
}

func (s *PostgresPersonStore) FindByFraudCaseID(ctx context.Context, fraudCaseID string) (*models.Person, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT document FROM persons
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(COALESCE(document->'fraud_cases', '[]'::jsonb)) fc
			WHERE fc->>'id' = $1
		)
		LIMIT 1
	`, fraudCaseID).Scan(&doc)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find person by fraud case %s: %w", fraudCaseID, err)
	}

	return decodePerson(doc)
}

func (s *PostgresPersonStore) FindByAccountID(ctx context.Context, accountID string) (*models.Person, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT document FROM persons
		WHERE document->'account'->>'id' = $1
		LIMIT 1
	`, accountID).Scan(&doc)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find person by account %s: %w", accountID, err)
	}

	return decodePerson(doc)
}

func (s *PostgresPersonStore) FindByChangeRequestID(ctx context.Context, changeRequestID string) (*models.Person, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT document FROM persons
		WHERE document->'change_request'->>'id' = $1
		   OR document->'change_request'->'payload'->>'authenticate_change_request_id' = $1
		   OR document->'change_request'->'payload'->>'decline_change_request_id' = $1
		LIMIT 1
	`, changeRequestID).Scan(&doc)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find person by change request %s: %w", changeRequestID, err)
	}

	return decodePerson(doc)
}

// FindWithFraudCases returns every person carrying at least one open fraud
// case. The watchdog uses it to rebuild its tracking map after a restart.
func (s *PostgresPersonStore) FindWithFraudCases(ctx context.Context) ([]*models.Person, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document FROM persons
		WHERE jsonb_array_length(COALESCE(document->'fraud_cases', '[]'::jsonb)) > 0
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for fraud cases: %w", err)
	}
	defer rows.Close()

	var persons []*models.Person
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		person, err := decodePerson(doc)
		if err != nil {
			return nil, err
		}
		persons = append(persons, person)
	}

	return persons, rows.Err()
}

func decodePerson(doc []byte) (*models.Person, error) {
	var person models.Person
	if err := json.Unmarshal(doc, &person); err != nil {
		return nil, fmt.Errorf("failed to decode person document: %w", err)
	}
	return &person, nil
}
