package models

// FraudCase flags a card authorization held for customer confirmation. The
// referenced reservation sits in Account.FraudReservations until the case is
// whitelisted, confirmed or timed out.
type FraudCase struct {
	ID                   string `json:"id"`
	ReservationID        string `json:"reservation_id"`
	CardID               string `json:"card_id"`
	ReservationExpiresAt int64  `json:"reservation_expires_at"` // epoch millis
}
