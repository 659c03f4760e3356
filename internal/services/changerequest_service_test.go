package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banksim/backend/internal/lock"
	"github.com/banksim/backend/internal/models"
	"github.com/banksim/backend/internal/store"
	"github.com/banksim/backend/internal/webhook"
)

type changeRequestFixture struct {
	service    *ChangeRequestService
	store      *store.MemoryPersonStore
	dispatcher *RecordingDispatcher
}

func newChangeRequestFixture(t *testing.T) *changeRequestFixture {
	t.Helper()
	personStore := store.NewMemoryPersonStore()
	dispatcher := &RecordingDispatcher{}
	service := NewChangeRequestService(personStore, lock.NewLocalLocker(), dispatcher, NewSettlementService(), testEngineConfig())
	seedPerson(t, personStore, 10000, models.CardStatusActive)
	return &changeRequestFixture{service: service, store: personStore, dispatcher: dispatcher}
}

// authorizedTAN walks the request through the authorize phase and returns the
// minted TAN read back from the store.
func (f *changeRequestFixture) authorizedTAN(t *testing.T, changeRequestID string) string {
	t.Helper()
	ctx := context.Background()

	response, err := f.service.Authorize(ctx, changeRequestID, models.DeliveryMobileNumber)
	require.NoError(t, err)
	require.Equal(t, models.ChangeRequestStatusConfirmationRequired, response.Status)

	person, err := f.store.FindByChangeRequestID(ctx, changeRequestID)
	require.NoError(t, err)
	require.NotEmpty(t, person.ChangeRequest.Token)
	return person.ChangeRequest.Token
}

func TestChangeRequestLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("create requires a verified mobile number or device", func(t *testing.T) {
		f := newChangeRequestFixture(t)
		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		person.MobileNumber.Verified = false
		require.NoError(t, f.store.Save(ctx, person))

		_, err = f.service.Create(ctx, "person-1", models.MethodPersonUpdate, models.PersonUpdatePayload{})
		assert.ErrorIs(t, err, ErrUnauthorizedChangeRequest)
	})

	t.Run("registered device stands in for the mobile number", func(t *testing.T) {
		f := newChangeRequestFixture(t)
		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		person.MobileNumber = nil
		person.Devices = []models.Device{{ID: "device-1"}}
		require.NoError(t, f.store.Save(ctx, person))

		response, err := f.service.Create(ctx, "person-1", models.MethodPersonUpdate, models.PersonUpdatePayload{Delta: []byte(`{}`)})
		require.NoError(t, err)
		assert.Equal(t, models.ChangeRequestStatusAuthorizationRequired, response.Status)
		assert.Contains(t, response.URL, response.ID)
	})

	t.Run("second request supersedes the first", func(t *testing.T) {
		f := newChangeRequestFixture(t)

		first, err := f.service.Create(ctx, "person-1", models.MethodMobileNumberChange,
			models.MobileNumberChangePayload{Number: "+491700000001"})
		require.NoError(t, err)
		tan := f.authorizedTAN(t, first.ID)

		second, err := f.service.Create(ctx, "person-1", models.MethodMobileNumberChange,
			models.MobileNumberChangePayload{Number: "+491700000002"})
		require.NoError(t, err)

		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		assert.Equal(t, second.ID, person.ChangeRequest.ID)

		_, err = f.service.Confirm(ctx, first.ID, tan)
		assert.ErrorIs(t, err, ErrUnknownChangeRequest)
	})

	t.Run("confirm with correct TAN applies and deletes", func(t *testing.T) {
		f := newChangeRequestFixture(t)

		created, err := f.service.Create(ctx, "person-1", models.MethodMobileNumberChange,
			models.MobileNumberChangePayload{Number: "+491700000009"})
		require.NoError(t, err)
		tan := f.authorizedTAN(t, created.ID)

		response, err := f.service.Confirm(ctx, created.ID, tan)
		require.NoError(t, err)
		assert.Equal(t, models.ChangeRequestStatusCompleted, response.Status)
		assert.Equal(t, 202, response.ResponseCode)

		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		assert.Nil(t, person.ChangeRequest)
		assert.Equal(t, "+491700000009", person.MobileNumber.Number)
		assert.True(t, person.MobileNumber.Verified)
	})

	t.Run("confirm before authorize is rejected", func(t *testing.T) {
		f := newChangeRequestFixture(t)

		created, err := f.service.Create(ctx, "person-1", models.MethodMobileNumberChange,
			models.MobileNumberChangePayload{Number: "+491700000009"})
		require.NoError(t, err)

		// No authorize phase, so no token exists yet; nothing may confirm.
		_, err = f.service.Confirm(ctx, created.ID, "")
		assert.ErrorIs(t, err, ErrInvalidTAN)

		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		assert.Nil(t, person.ChangeRequest)
		assert.Equal(t, "+491701234567", person.MobileNumber.Number)

		// The discarded request cannot be revived through authorize.
		_, err = f.service.Authorize(ctx, created.ID, models.DeliveryMobileNumber)
		assert.ErrorIs(t, err, ErrUnknownChangeRequest)
	})

	t.Run("wrong TAN discards the pending action", func(t *testing.T) {
		f := newChangeRequestFixture(t)

		created, err := f.service.Create(ctx, "person-1", models.MethodMobileNumberChange,
			models.MobileNumberChangePayload{Number: "+491700000009"})
		require.NoError(t, err)
		tan := f.authorizedTAN(t, created.ID)

		_, err = f.service.Confirm(ctx, created.ID, "000000-wrong")
		assert.ErrorIs(t, err, ErrInvalidTAN)

		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		assert.Nil(t, person.ChangeRequest)

		// The correct original TAN is now worthless.
		_, err = f.service.Confirm(ctx, created.ID, tan)
		assert.ErrorIs(t, err, ErrUnknownChangeRequest)
	})

	t.Run("aged request is treated as unknown", func(t *testing.T) {
		f := newChangeRequestFixture(t)

		created, err := f.service.Create(ctx, "person-1", models.MethodMobileNumberChange,
			models.MobileNumberChangePayload{Number: "+491700000009"})
		require.NoError(t, err)
		tan := f.authorizedTAN(t, created.ID)

		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		person.ChangeRequest.CreatedAt = time.Now().Add(-6 * time.Minute)
		require.NoError(t, f.store.Save(ctx, person))

		_, err = f.service.Confirm(ctx, created.ID, tan)
		assert.ErrorIs(t, err, ErrUnknownChangeRequest)
	})

	t.Run("device signing returns a challenge and accepts a signature", func(t *testing.T) {
		f := newChangeRequestFixture(t)

		created, err := f.service.Create(ctx, "person-1", models.MethodPersonUpdate,
			models.PersonUpdatePayload{Delta: []byte(`{"first_name":"Max"}`)})
		require.NoError(t, err)

		response, err := f.service.Authorize(ctx, created.ID, models.DeliveryDeviceSigning)
		require.NoError(t, err)
		require.NotEmpty(t, response.StringToSign)

		stringToSign, err := f.service.StringToSign(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, response.StringToSign, stringToSign)

		confirmed, err := f.service.Confirm(ctx, created.ID, "base64-device-signature")
		require.NoError(t, err)
		assert.Equal(t, models.ChangeRequestStatusCompleted, confirmed.Status)
	})

	t.Run("unknown delivery method", func(t *testing.T) {
		f := newChangeRequestFixture(t)

		created, err := f.service.Create(ctx, "person-1", models.MethodPersonUpdate,
			models.PersonUpdatePayload{Delta: []byte(`{}`)})
		require.NoError(t, err)

		_, err = f.service.Authorize(ctx, created.ID, "carrier_pigeon")
		assert.ErrorIs(t, err, ErrInvalidDeliveryMethod)
	})

	t.Run("authorize unknown request", func(t *testing.T) {
		f := newChangeRequestFixture(t)
		_, err := f.service.Authorize(ctx, "missing", models.DeliveryMobileNumber)
		assert.ErrorIs(t, err, ErrUnknownChangeRequest)
	})
}

// runThrough creates, authorizes and confirms one change request
func (f *changeRequestFixture) runThrough(t *testing.T, method models.Method, payload interface{}) *ChangeRequestResponse {
	t.Helper()
	ctx := context.Background()

	created, err := f.service.Create(ctx, "person-1", method, payload)
	require.NoError(t, err)
	tan := f.authorizedTAN(t, created.ID)

	response, err := f.service.Confirm(ctx, created.ID, tan)
	require.NoError(t, err)
	return response
}

func TestChangeRequestMethods(t *testing.T) {
	ctx := context.Background()

	t.Run("standing order create activates on confirm", func(t *testing.T) {
		f := newChangeRequestFixture(t)
		f.runThrough(t, models.MethodStandingOrderCreate, models.StandingOrderCreatePayload{
			StandingOrder: models.StandingOrder{
				Amount:        models.NewAmount(2500, "EUR"),
				RecipientName: "Stadtwerke",
				RecipientIBAN: "DE02120300000000202051",
				Reoccurrence:  "MONTHLY",
			},
		})

		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		require.Len(t, person.StandingOrders, 1)
		assert.Equal(t, models.StandingOrderStatusActive, person.StandingOrders[0].Status)
	})

	t.Run("standing order cancel", func(t *testing.T) {
		f := newChangeRequestFixture(t)
		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		person.StandingOrders = []models.StandingOrder{{ID: "so-1", Status: models.StandingOrderStatusActive}}
		require.NoError(t, f.store.Save(ctx, person))

		f.runThrough(t, models.MethodStandingOrderCancel, models.StandingOrderCancelPayload{StandingOrderID: "so-1"})

		person, err = f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		assert.Equal(t, models.StandingOrderStatusCanceled, person.StandingOrders[0].Status)
	})

	t.Run("standing order update merges the delta", func(t *testing.T) {
		f := newChangeRequestFixture(t)
		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		person.StandingOrders = []models.StandingOrder{{
			ID:     "so-1",
			Amount: models.NewAmount(1000, "EUR"),
			Status: models.StandingOrderStatusActive,
		}}
		require.NoError(t, f.store.Save(ctx, person))

		f.runThrough(t, models.MethodStandingOrderUpdate, models.StandingOrderUpdatePayload{
			StandingOrderID: "so-1",
			Delta:           []byte(`{"amount":{"value":1500,"unit":"cents","currency":"EUR"}}`),
		})

		person, err = f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1500), person.StandingOrders[0].Amount.Value)
		assert.Equal(t, models.StandingOrderStatusActive, person.StandingOrders[0].Status)
	})

	t.Run("sepa transfer debits and books", func(t *testing.T) {
		f := newChangeRequestFixture(t)
		response := f.runThrough(t, models.MethodSEPATransfer, models.SEPATransferPayload{
			Transfer: models.SEPATransfer{
				Amount:        models.NewAmount(4000, "EUR"),
				RecipientName: "Jane Doe",
				RecipientIBAN: "FR1420041010050500013M02606",
				Reference:     "invoice 42",
			},
		})

		transfer := response.ResponseBody.(models.SEPATransfer)
		assert.Equal(t, models.TransferStatusBooked, transfer.Status)

		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		assert.Equal(t, int64(6000), person.Account.Balance)
		require.Len(t, person.Transactions, 1)
		assert.Equal(t, int64(-4000), person.Transactions[0].Amount.Value)
		assert.Equal(t, models.BookingTypeSEPACreditTransfer, person.Transactions[0].BookingType)
	})

	t.Run("batch transfer books every leg", func(t *testing.T) {
		f := newChangeRequestFixture(t)
		f.runThrough(t, models.MethodBatchTransfer, models.BatchTransferPayload{
			Transfers: []models.SEPATransfer{
				{Amount: models.NewAmount(1000, "EUR"), RecipientIBAN: "DE02120300000000202051"},
				{Amount: models.NewAmount(2000, "EUR"), RecipientIBAN: "FR1420041010050500013M02606"},
			},
		})

		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		assert.Equal(t, int64(7000), person.Account.Balance)
		assert.Len(t, person.Transactions, 2)
	})

	t.Run("timed order is scheduled", func(t *testing.T) {
		f := newChangeRequestFixture(t)
		f.runThrough(t, models.MethodTimedOrder, models.TimedOrderPayload{
			TimedOrder: models.TimedOrder{
				ExecuteAt: time.Now().Add(48 * time.Hour),
				Transfer:  models.SEPATransfer{Amount: models.NewAmount(500, "EUR")},
			},
		})

		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		require.Len(t, person.TimedOrders, 1)
		assert.Equal(t, models.TimedOrderStatusScheduled, person.TimedOrders[0].Status)
	})

	t.Run("card pin change stores a hash", func(t *testing.T) {
		f := newChangeRequestFixture(t)
		f.runThrough(t, models.MethodCardPINChange, models.CardPINChangePayload{CardID: "card-1", PIN: "9473"})

		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		card := person.CardByID("card-1")
		require.NotEmpty(t, card.PINHash)
		assert.NotContains(t, card.PINHash, "9473")
	})

	t.Run("person update merges only the delta", func(t *testing.T) {
		f := newChangeRequestFixture(t)
		f.runThrough(t, models.MethodPersonUpdate, models.PersonUpdatePayload{
			Delta: []byte(`{"first_name":"Max","last_name":"Mustermann"}`),
		})

		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		assert.Equal(t, "Max", person.FirstName)
		assert.Equal(t, "Mustermann", person.LastName)
		assert.NotNil(t, person.Account)
	})
}

func TestSCACardTransaction(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*changeRequestFixture, *SCAService, *SCAChallenge) {
		f := newChangeRequestFixture(t)
		sca := NewSCAService(f.store, lock.NewLocalLocker(), f.dispatcher, testEngineConfig())

		challenge, err := sca.RequestChallenge(ctx, "person-1", CreateReservationParams{
			CardID: "card-1", Amount: 3000, Currency: "EUR", Recipient: "Cafe Aroma",
		})
		require.NoError(t, err)
		require.Len(t, f.dispatcher.EventsOfType(webhook.EventSCAChallenge), 1)
		return f, sca, challenge
	}

	t.Run("challenge parks the reservation", func(t *testing.T) {
		f, _, challenge := setup(t)

		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		require.NotNil(t, person.Account.PendingReservation)
		assert.Equal(t, challenge.ReservationID, person.Account.PendingReservation.ID)
		assert.Empty(t, person.Account.Reservations)
		// Pending holds no balance yet.
		assert.Equal(t, int64(10000), person.Account.AvailableBalance)
	})

	t.Run("authenticate id opens the hold", func(t *testing.T) {
		f, _, challenge := setup(t)

		tan := f.authorizedTAN(t, challenge.AuthenticateChangeRequestID)
		response, err := f.service.Confirm(ctx, challenge.AuthenticateChangeRequestID, tan)
		require.NoError(t, err)
		assert.Equal(t, models.ChangeRequestStatusCompleted, response.Status)

		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		assert.Nil(t, person.Account.PendingReservation)
		require.Len(t, person.Account.Reservations, 1)
		assert.Equal(t, challenge.ReservationID, person.Account.Reservations[0].ID)
		assert.Equal(t, int64(7000), person.Account.AvailableBalance)

		assert.Len(t, f.dispatcher.EventsOfType(webhook.EventCardAuthorization), 1)
	})

	t.Run("decline id drops the pending reservation", func(t *testing.T) {
		f, _, challenge := setup(t)

		tan := f.authorizedTAN(t, challenge.DeclineChangeRequestID)
		response, err := f.service.Confirm(ctx, challenge.DeclineChangeRequestID, tan)
		require.NoError(t, err)
		assert.Equal(t, models.ChangeRequestStatusCompleted, response.Status)

		person, err := f.store.Load(ctx, "person-1")
		require.NoError(t, err)
		assert.Nil(t, person.Account.PendingReservation)
		assert.Empty(t, person.Account.Reservations)
		assert.Equal(t, int64(10000), person.Account.AvailableBalance)
		assert.Empty(t, f.dispatcher.EventsOfType(webhook.EventCardAuthorization))
	})

	t.Run("challenge enforces card and funds checks", func(t *testing.T) {
		f := newChangeRequestFixture(t)
		sca := NewSCAService(f.store, lock.NewLocalLocker(), f.dispatcher, testEngineConfig())

		_, err := sca.RequestChallenge(ctx, "person-1", CreateReservationParams{
			CardID: "card-1", Amount: 99999, Currency: "EUR",
		})
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		_, err = sca.RequestChallenge(ctx, "person-1", CreateReservationParams{
			CardID: "missing", Amount: 100, Currency: "EUR",
		})
		assert.ErrorIs(t, err, ErrCardNotFound)
	})
}
