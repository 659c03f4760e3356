package models

// Amount represents a monetary value in minor units (cents)
type Amount struct {
	Value    int64  `json:"value"`
	Unit     string `json:"unit"`
	Currency string `json:"currency"`
}

// NewAmount creates an Amount in cents
func NewAmount(value int64, currency string) Amount {
	return Amount{Value: value, Unit: "cents", Currency: currency}
}
