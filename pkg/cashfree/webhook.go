package cashfree

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

const (
	HeaderSignature = "x-webhook-signature"
	HeaderTimestamp = "x-webhook-timestamp"
)

// WebhookType is the event name in the webhook body.
type WebhookType string

const (
	WebhookPaymentSuccess     WebhookType = "PAYMENT_SUCCESS_WEBHOOK"
	WebhookPaymentFailed      WebhookType = "PAYMENT_FAILED_WEBHOOK"
	WebhookPaymentUserDropped WebhookType = "PAYMENT_USER_DROPPED_WEBHOOK"
)

var (
	ErrMissingSignature = errors.New("cashfree webhook signature missing")
	ErrInvalidSignature = errors.New("cashfree webhook signature invalid")
)

// WebhookEvent is the decoded payment webhook body.
type WebhookEvent struct {
	Type      WebhookType `json:"type"`
	EventTime string      `json:"event_time"`
	Data      struct {
		Order struct {
			OrderID     string  `json:"order_id"`
			OrderAmount float64 `json:"order_amount"`
			Currency    string  `json:"order_currency"`
		} `json:"order"`
		Payment Payment `json:"payment"`
	} `json:"data"`
}

// OrderID returns the merchant order id the event refers to.
func (e WebhookEvent) OrderID() string {
	return strings.TrimSpace(e.Data.Order.OrderID)
}

// Sign computes the signature Cashfree attaches to a delivery.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the delivery against the shared secret.
func VerifySignature(secret, timestamp, signature string, body []byte) error {
	if strings.TrimSpace(signature) == "" || strings.TrimSpace(timestamp) == "" {
		return ErrMissingSignature
	}
	expected := Sign(secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature))) {
		return ErrInvalidSignature
	}
	return nil
}

// ParseWebhook decodes a raw delivery body.
func ParseWebhook(body []byte) (WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return WebhookEvent{}, err
	}
	event.Type = WebhookType(strings.TrimSpace(string(event.Type)))
	return event, nil
}
