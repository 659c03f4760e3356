package models

import (
	"time"
)

// Booking is a settled ledger entry on the person's transaction list. Card
// spend books with a negative amount, credit presentments with a positive one.
type Booking struct {
	ID            string    `json:"id"`
	BookingType   string    `json:"booking_type"`
	Amount        Amount    `json:"amount"`
	Description   string    `json:"description,omitempty"`
	RecipientName string    `json:"recipient_name,omitempty"`
	RecipientIBAN string    `json:"recipient_iban,omitempty"`
	SenderName    string    `json:"sender_name,omitempty"`
	SenderIBAN    string    `json:"sender_iban,omitempty"`
	EndToEndID    string    `json:"end_to_end_id,omitempty"`
	MetaInfo      MetaInfo  `json:"meta_info"`
	Status        string    `json:"status"`
	BookingDate   time.Time `json:"booking_date"`
	ValutaDate    time.Time `json:"valuta_date"`
}

// Booking types
const (
	BookingTypeCardTransaction    = "CARD_TRANSACTION"
	BookingTypeSEPACreditTransfer = "SEPA_CREDIT_TRANSFER"
)

// SEPATransfer is an outgoing credit transfer pending TAN confirmation
type SEPATransfer struct {
	ID            string `json:"id"`
	Amount        Amount `json:"amount"`
	RecipientName string `json:"recipient_name"`
	RecipientIBAN string `json:"recipient_iban"`
	RecipientBIC  string `json:"recipient_bic,omitempty"`
	Reference     string `json:"reference,omitempty"`
	EndToEndID    string `json:"end_to_end_id,omitempty"`
	Status        string `json:"status"`
}

// SEPA transfer statuses
const (
	TransferStatusCreated  = "CREATED"
	TransferStatusAccepted = "ACCEPTED"
	TransferStatusBooked   = "BOOKED"
)

// StandingOrder is a recurring transfer template owned by the person
type StandingOrder struct {
	ID             string     `json:"id"`
	Amount         Amount     `json:"amount"`
	RecipientName  string     `json:"recipient_name"`
	RecipientIBAN  string     `json:"recipient_iban"`
	Reference      string     `json:"reference,omitempty"`
	Reoccurrence   string     `json:"reoccurrence"`
	FirstExecution *time.Time `json:"first_execution_date,omitempty"`
	LastExecution  *time.Time `json:"last_execution_date,omitempty"`
	Status         string     `json:"status"`
}

// Standing order statuses
const (
	StandingOrderStatusCreated  = "CREATED"
	StandingOrderStatusActive   = "ACTIVE"
	StandingOrderStatusCanceled = "CANCELED"
)

// TimedOrder is a transfer scheduled for a future execution date
type TimedOrder struct {
	ID        string       `json:"id"`
	ExecuteAt time.Time    `json:"execute_at"`
	Transfer  SEPATransfer `json:"transfer"`
	Status    string       `json:"status"`
}

// Timed order statuses
const (
	TimedOrderStatusCreated   = "CREATED"
	TimedOrderStatusScheduled = "SCHEDULED"
	TimedOrderStatusCanceled  = "CANCELED"
)
