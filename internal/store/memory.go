package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/banksim/backend/internal/models"
)

// MemoryPersonStore keeps person documents in process memory. It backs the
// sandbox's ephemeral mode and the test suites. Documents are copied on load
// and save so callers never share mutable state with the store.
type MemoryPersonStore struct {
	mu      sync.RWMutex
	persons map[string][]byte
}

func NewMemoryPersonStore() *MemoryPersonStore {
	return &MemoryPersonStore{persons: make(map[string][]byte)}
}

func (s *MemoryPersonStore) Load(ctx context.Context, personID string) (*models.Person, error) {
	s.mu.RLock()
	doc, ok := s.persons[personID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return decodePerson(doc)
}

func (s *MemoryPersonStore) Save(ctx context.Context, person *models.Person) error {
	normalize(person)
	person.UpdatedAt = time.Now()

	doc, err := json.Marshal(person)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.persons[person.ID] = doc
	s.mu.Unlock()
	return nil
}

func (s *MemoryPersonStore) FindByFraudCaseID(ctx context.Context, fraudCaseID string) (*models.Person, error) {
	persons, err := s.all()
	if err != nil {
		return nil, err
	}
	for _, person := range persons {
		if person.FraudCaseByID(fraudCaseID) != nil {
			return person, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryPersonStore) FindByAccountID(ctx context.Context, accountID string) (*models.Person, error) {
	persons, err := s.all()
	if err != nil {
		return nil, err
	}
	for _, person := range persons {
		if person.Account != nil && person.Account.ID == accountID {
			return person, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryPersonStore) FindByChangeRequestID(ctx context.Context, changeRequestID string) (*models.Person, error) {
	persons, err := s.all()
	if err != nil {
		return nil, err
	}
	for _, person := range persons {
		if person.ChangeRequest != nil && person.ChangeRequest.Matches(changeRequestID) {
			return person, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryPersonStore) FindWithFraudCases(ctx context.Context) ([]*models.Person, error) {
	persons, err := s.all()
	if err != nil {
		return nil, err
	}
	var result []*models.Person
	for _, person := range persons {
		if len(person.FraudCases) > 0 {
			result = append(result, person)
		}
	}
	return result, nil
}

func (s *MemoryPersonStore) all() ([]*models.Person, error) {
	s.mu.RLock()
	docs := make([][]byte, 0, len(s.persons))
	for _, doc := range s.persons {
		docs = append(docs, doc)
	}
	s.mu.RUnlock()

	persons := make([]*models.Person, 0, len(docs))
	for _, doc := range docs {
		person, err := decodePerson(doc)
		if err != nil {
			return nil, err
		}
		persons = append(persons, person)
	}
	return persons, nil
}
