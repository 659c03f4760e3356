package models

import (
	"time"
)

// Card represents a debit card attached to a person's account
type Card struct {
	ID             string     `json:"id"`
	AccountID      string     `json:"account_id"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	Representation string     `json:"representation,omitempty"` // masked PAN
	PINHash        string     `json:"pin_hash,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Card statuses
const (
	CardStatusProcessing                 = "PROCESSING"
	CardStatusInactive                   = "INACTIVE"
	CardStatusActive                     = "ACTIVE"
	CardStatusBlocked                    = "BLOCKED"
	CardStatusBlockedBySolaris           = "BLOCKED_BY_SOLARIS"
	CardStatusActivationBlockedBySolaris = "ACTIVATION_BLOCKED_BY_SOLARIS"
	CardStatusClosed                     = "CLOSED"
	CardStatusClosedBySolaris            = "CLOSED_BY_SOLARIS"
)

// Blocked reports whether the card refuses new authorizations because of a block
func (c *Card) Blocked() bool {
	return c.Status == CardStatusBlocked || c.Status == CardStatusBlockedBySolaris
}
