package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDispatcher_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers a signed envelope", func(t *testing.T) {
		var gotBody []byte
		var gotSignature string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			gotSignature = r.Header.Get("Solaris-Webhook-Signature")
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		d := NewHTTPDispatcher(server.URL, "test-secret")
		err := d.Dispatch(ctx, EventCardAuthorization, map[string]string{"id": "res-1"}, "person-1")
		require.NoError(t, err)

		var envelope Envelope
		require.NoError(t, json.Unmarshal(gotBody, &envelope))
		assert.Equal(t, EventCardAuthorization, envelope.Type)
		assert.Equal(t, "person-1", envelope.RecipientID)
		assert.NotEmpty(t, envelope.ID)

		mac := hmac.New(sha256.New, []byte("test-secret"))
		mac.Write(gotBody)
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSignature)
	})

	t.Run("non-2xx response is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		d := NewHTTPDispatcher(server.URL, "test-secret")
		err := d.Dispatch(ctx, EventBooking, map[string]string{}, "person-1")
		assert.Error(t, err)
	})

	t.Run("unreachable endpoint is an error", func(t *testing.T) {
		d := NewHTTPDispatcher("http://127.0.0.1:1/webhooks", "test-secret")
		err := d.Dispatch(ctx, EventBooking, map[string]string{}, "person-1")
		assert.Error(t, err)
	})
}
