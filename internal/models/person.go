package models

import (
	"encoding/json"
	"time"
)

// Person is the aggregate root. The entity store loads and saves it as one
// document; concurrent read-modify-write on the same id must be serialized
// by the caller through the per-person lock.
type Person struct {
	ID             string          `json:"id"`
	Salutation     string          `json:"salutation,omitempty"`
	FirstName      string          `json:"first_name,omitempty"`
	LastName       string          `json:"last_name,omitempty"`
	Email          string          `json:"email,omitempty"`
	Address        json.RawMessage `json:"address,omitempty"`
	MobileNumber   *MobileNumber   `json:"mobile_number,omitempty"`
	Devices        []Device        `json:"devices,omitempty"`
	Account        *Account        `json:"account,omitempty"`
	Cards          []Card          `json:"cards,omitempty"`
	FraudCases     []FraudCase     `json:"fraud_cases,omitempty"`
	ChangeRequest  *ChangeRequest  `json:"change_request,omitempty"`
	Transactions   []Booking       `json:"transactions,omitempty"`
	StandingOrders []StandingOrder `json:"standing_orders,omitempty"`
	TimedOrders    []TimedOrder    `json:"timed_orders,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// MobileNumber is the TAN delivery target; only a verified number may
// authorize change requests
type MobileNumber struct {
	Number   string `json:"number"`
	Verified bool   `json:"verified"`
}

// Device is a registered signing device for the device_signing delivery method
type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	PublicKey string    `json:"public_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CardByID returns the card with the given id, or nil
func (p *Person) CardByID(id string) *Card {
	for i := range p.Cards {
		if p.Cards[i].ID == id {
			return &p.Cards[i]
		}
	}
	return nil
}

// FraudCaseByID returns the fraud case with the given id, or nil
func (p *Person) FraudCaseByID(id string) *FraudCase {
	for i := range p.FraudCases {
		if p.FraudCases[i].ID == id {
			return &p.FraudCases[i]
		}
	}
	return nil
}

// RemoveFraudCase drops a fraud case from the person
func (p *Person) RemoveFraudCase(id string) bool {
	for i := range p.FraudCases {
		if p.FraudCases[i].ID == id {
			p.FraudCases = append(p.FraudCases[:i], p.FraudCases[i+1:]...)
			return true
		}
	}
	return false
}

// StandingOrderByID returns the standing order with the given id, or nil
func (p *Person) StandingOrderByID(id string) *StandingOrder {
	for i := range p.StandingOrders {
		if p.StandingOrders[i].ID == id {
			return &p.StandingOrders[i]
		}
	}
	return nil
}
