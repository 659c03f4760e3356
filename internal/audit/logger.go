package audit

import (
	"encoding/json"
	"log"
	"time"
)

// Event is one line of the sandbox's audit trail
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	PersonID      string    `json:"person_id"`
	ReservationID string    `json:"reservation_id,omitempty"`
	Amount        int64     `json:"amount,omitempty"`
	Status        string    `json:"status"`
	Details       any       `json:"details,omitempty"`
}

type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogReservation(personID, reservationID string, amount int64, status string) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     "RESERVATION",
		PersonID:      personID,
		ReservationID: reservationID,
		Amount:        amount,
		Status:        status,
	})
}

func (a *Logger) LogFraudCase(personID, fraudCaseID, resolution string) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "FRAUD_CASE",
		PersonID:  personID,
		Status:    resolution,
		Details:   map[string]string{"fraud_case_id": fraudCaseID},
	})
}

func (a *Logger) LogError(personID, reservationID string, err error) {
	a.log(Event{
		Timestamp:     time.Now(),
		EventType:     "ERROR",
		PersonID:      personID,
		ReservationID: reservationID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
