package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the engines
const (
	EventCardAuthorization           = "CARD_AUTHORIZATION"
	EventCardAuthorizationDecline    = "CARD_AUTHORIZATION_DECLINE"
	EventCardAuthorizationResolution = "CARD_AUTHORIZATION_RESOLUTION"
	EventCardFraudCaseTimeout        = "CARD_FRAUD_CASE_TIMEOUT"
	EventCardLifecycle               = "CARD_LIFECYCLE_EVENT"
	EventSCAChallenge                = "SCA_CHALLENGE"
	EventBooking                     = "BOOKING"
)

// Dispatcher delivers event notifications to a partner endpoint. Delivery is
// fire-and-forget from the engines' perspective: a failed dispatch never rolls
// back business state that was already persisted.
type Dispatcher interface {
	Dispatch(ctx context.Context, eventType string, payload interface{}, recipientID string) error
}

// Envelope is the wire shape of a delivered event
type Envelope struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	RecipientID string      `json:"recipient_id"`
	CreatedAt   time.Time   `json:"created_at"`
	Payload     interface{} `json:"payload"`
}

// HTTPDispatcher posts signed event envelopes to a configured endpoint
type HTTPDispatcher struct {
	endpoint string
	secret   []byte
	client   *http.Client
}

func NewHTTPDispatcher(endpoint, secret string) *HTTPDispatcher {
	return &HTTPDispatcher{
		endpoint: endpoint,
		secret:   []byte(secret),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, eventType string, payload interface{}, recipientID string) error {
	envelope := Envelope{
		ID:          uuid.New().String(),
		Type:        eventType,
		RecipientID: recipientID,
		CreatedAt:   time.Now(),
		Payload:     payload,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode webhook %s: %w", eventType, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Solaris-Webhook-Signature", d.sign(body))

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver webhook %s: %w", eventType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s rejected with status %d", eventType, resp.StatusCode)
	}

	log.Printf("[WEBHOOK] Delivered %s to %s for recipient %s", eventType, d.endpoint, recipientID)
	return nil
}

func (d *HTTPDispatcher) sign(body []byte) string {
	h := hmac.New(sha256.New, d.secret)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
