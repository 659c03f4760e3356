package models

// Account holds the booked balance and the reservation pools of one person.
// AvailableBalance is derived and recomputed on every save:
//
//	available = limit + booked + confirmed queued - sum(open reservations)
type Account struct {
	ID                     string        `json:"id"`
	IBAN                   string        `json:"iban"`
	BIC                    string        `json:"bic,omitempty"`
	Currency               string        `json:"currency"`
	Limit                  int64         `json:"account_limit"`
	Balance                int64         `json:"balance"`
	ConfirmedQueuedBalance int64         `json:"confirmed_queued_balance"`
	AvailableBalance       int64         `json:"available_balance"`
	Reservations           []Reservation `json:"reservations"`
	FraudReservations      []Reservation `json:"fraud_reservations"`
	PendingReservation     *Reservation  `json:"pending_reservation,omitempty"`
}

// OpenReservationTotal sums the amounts of reservations currently holding
// balance. Fraud-held reservations live in a separate pool and do not count.
func (a *Account) OpenReservationTotal() int64 {
	var total int64
	for _, r := range a.Reservations {
		if r.Status == ReservationStatusOpen {
			total += r.Amount.Value
		}
	}
	return total
}

// RecomputeAvailableBalance re-derives AvailableBalance from the invariant
func (a *Account) RecomputeAvailableBalance() {
	a.AvailableBalance = a.Limit + a.Balance + a.ConfirmedQueuedBalance - a.OpenReservationTotal()
}

// ReservationByID returns the open reservation with the given id, or nil
func (a *Account) ReservationByID(id string) *Reservation {
	for i := range a.Reservations {
		if a.Reservations[i].ID == id {
			return &a.Reservations[i]
		}
	}
	return nil
}

// FraudReservationByID returns the fraud-held reservation with the given id, or nil
func (a *Account) FraudReservationByID(id string) *Reservation {
	for i := range a.FraudReservations {
		if a.FraudReservations[i].ID == id {
			return &a.FraudReservations[i]
		}
	}
	return nil
}

// RemoveReservation drops a reservation from the open pool
func (a *Account) RemoveReservation(id string) bool {
	for i := range a.Reservations {
		if a.Reservations[i].ID == id {
			a.Reservations = append(a.Reservations[:i], a.Reservations[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveFraudReservation drops a reservation from the fraud pool
func (a *Account) RemoveFraudReservation(id string) bool {
	for i := range a.FraudReservations {
		if a.FraudReservations[i].ID == id {
			a.FraudReservations = append(a.FraudReservations[:i], a.FraudReservations[i+1:]...)
			return true
		}
	}
	return false
}
