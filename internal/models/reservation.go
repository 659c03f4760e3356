package models

import (
	"encoding/json"
	"time"
)

// Reservation is a provisional hold against the account's available balance.
// It is created when a card authorization is accepted and destroyed when it
// is booked, rolled back or expired.
type Reservation struct {
	ID          string     `json:"id"`
	Amount      Amount     `json:"amount"`
	Type        string     `json:"reservation_type"`
	Status      string     `json:"status"`
	MetaInfo    MetaInfo   `json:"meta_info"`
	Description string     `json:"description,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Reservation types
const (
	ReservationTypeCardAuthorization = "CARD_AUTHORIZATION"
)

// Reservation statuses
const (
	ReservationStatusOpen     = "OPEN"
	ReservationStatusResolved = "RESOLVED"
	ReservationStatusRollback = "ROLLBACK"
	ReservationStatusExpired  = "EXPIRED"
)

// Reservation resolution actions accepted by the update endpoint
const (
	ReservationActionResolve = "RESOLVE"
	ReservationActionBook    = "BOOK"
	ReservationActionExpire  = "EXPIRE"
)

// MetaInfo carries merchant/card/original-amount metadata for a reservation
// or booking. In memory it is a structured value; on the wire it stays a
// stringified JSON blob for compatibility with the partner API.
type MetaInfo struct {
	Cards *CardMetaInfo `json:"cards,omitempty"`
}

// CardMetaInfo is the card-transaction side channel embedded in MetaInfo
type CardMetaInfo struct {
	CardID          string    `json:"card_id"`
	Merchant        *Merchant `json:"merchant,omitempty"`
	OriginalAmount  *Amount   `json:"original_amount,omitempty"`
	POSEntryMode    string    `json:"pos_entry_mode,omitempty"`
	TransactionDate string    `json:"transaction_date,omitempty"`
	TransactionTime string    `json:"transaction_time,omitempty"`
	TransactionType string    `json:"transaction_type,omitempty"`
}

// Merchant identifies the counterparty of a card transaction
type Merchant struct {
	Name         string `json:"name"`
	Country      string `json:"country_code,omitempty"`
	CategoryCode string `json:"category_code,omitempty"`
	Town         string `json:"town,omitempty"`
}

// MarshalJSON serializes MetaInfo as a JSON string containing JSON, matching
// the legacy wire format
func (m MetaInfo) MarshalJSON() ([]byte, error) {
	type alias MetaInfo
	inner, err := json.Marshal(alias(m))
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(inner))
}

// UnmarshalJSON accepts both the stringified legacy form and a plain object
func (m *MetaInfo) UnmarshalJSON(data []byte) error {
	type alias MetaInfo
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			return nil
		}
		var a alias
		if err := json.Unmarshal([]byte(s), &a); err != nil {
			return err
		}
		*m = MetaInfo(a)
		return nil
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = MetaInfo(a)
	return nil
}
