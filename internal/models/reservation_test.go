package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaInfoWireFormat(t *testing.T) {
	meta := MetaInfo{
		Cards: &CardMetaInfo{
			CardID:   "card-1",
			Merchant: &Merchant{Name: "COFFEE ROASTERS", CategoryCode: "5499", Town: "BERLIN"},
		},
	}

	t.Run("marshals as a stringified blob", func(t *testing.T) {
		data, err := json.Marshal(meta)
		require.NoError(t, err)

		// The partner API carries meta_info as a JSON string, not an object.
		assert.True(t, strings.HasPrefix(string(data), `"{`), string(data))

		var inner string
		require.NoError(t, json.Unmarshal(data, &inner))
		assert.Contains(t, inner, `"card_id":"card-1"`)
	})

	t.Run("round trips through the string form", func(t *testing.T) {
		data, err := json.Marshal(meta)
		require.NoError(t, err)

		var decoded MetaInfo
		require.NoError(t, json.Unmarshal(data, &decoded))
		require.NotNil(t, decoded.Cards)
		assert.Equal(t, "card-1", decoded.Cards.CardID)
		assert.Equal(t, "COFFEE ROASTERS", decoded.Cards.Merchant.Name)
	})

	t.Run("accepts a plain object", func(t *testing.T) {
		var decoded MetaInfo
		require.NoError(t, json.Unmarshal([]byte(`{"cards":{"card_id":"card-2"}}`), &decoded))
		require.NotNil(t, decoded.Cards)
		assert.Equal(t, "card-2", decoded.Cards.CardID)
	})

	t.Run("accepts an empty string", func(t *testing.T) {
		var decoded MetaInfo
		require.NoError(t, json.Unmarshal([]byte(`""`), &decoded))
		assert.Nil(t, decoded.Cards)
	})
}

func TestAccountRecomputeAvailableBalance(t *testing.T) {
	account := &Account{
		Limit:                  1000,
		Balance:                5000,
		ConfirmedQueuedBalance: 200,
		Reservations: []Reservation{
			{ID: "open", Status: ReservationStatusOpen, Amount: NewAmount(1500, "EUR")},
			{ID: "resolved", Status: ReservationStatusResolved, Amount: NewAmount(9000, "EUR")},
		},
		FraudReservations: []Reservation{
			// Parked by the watchdog; must not count against the balance.
			{ID: "parked", Status: ReservationStatusOpen, Amount: NewAmount(700, "EUR")},
		},
		PendingReservation: &Reservation{ID: "pending", Amount: NewAmount(400, "EUR")},
	}

	account.RecomputeAvailableBalance()
	assert.Equal(t, int64(4700), account.AvailableBalance)
}
