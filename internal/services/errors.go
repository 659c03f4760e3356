package services

import "errors"

// Business-rule errors surfaced to the HTTP layer as 4xx responses. Anything
// not listed here that comes out of the store, lock or dispatcher is an
// infrastructure fault and propagates unmodified.
var (
	ErrCardNotFound        = errors.New("card not found")
	ErrCardBlocked         = errors.New("card blocked")
	ErrCardInactive        = errors.New("card inactive")
	ErrCardNotActive       = errors.New("card not active")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrUnsupportedCurrency = errors.New("unsupported currency")

	ErrUnauthorizedChangeRequest = errors.New("unauthorized change request")
	ErrUnknownChangeRequest      = errors.New("unknown change request")
	ErrInvalidTAN                = errors.New("invalid tan")
	ErrInvalidDeliveryMethod     = errors.New("invalid delivery method")

	ErrReservationNotFound = errors.New("reservation not found")
	ErrFraudCaseNotFound   = errors.New("fraud case not found")
	ErrPersonNotFound      = errors.New("person not found")
)

// Decline reasons carried on CARD_AUTHORIZATION_DECLINE events
const (
	DeclineReasonCardBlocked       = "CARD_BLOCKED"
	DeclineReasonCardInactive      = "CARD_INACTIVE"
	DeclineReasonInsufficientFunds = "INSUFFICIENT_FUNDS"
)

// IsBusinessError reports whether err maps to a 4xx response
func IsBusinessError(err error) bool {
	for _, candidate := range []error{
		ErrCardNotFound, ErrCardBlocked, ErrCardInactive, ErrCardNotActive,
		ErrInsufficientFunds, ErrUnsupportedCurrency,
		ErrUnauthorizedChangeRequest, ErrUnknownChangeRequest, ErrInvalidTAN,
		ErrInvalidDeliveryMethod,
		ErrReservationNotFound, ErrFraudCaseNotFound, ErrPersonNotFound,
	} {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}
