package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cashfreewebhook "github.com/Hynox-org/aharraa-server/internal/webhooks/cashfree"
	"github.com/Hynox-org/aharraa-server/pkg/cashfree"
)

const webhookBody = `{"type":"PAYMENT_SUCCESS_WEBHOOK","data":{"order":{"order_id":"3c0b8d1e-8a8f-4a52-9b55-0d0f3b3f6a11"},"payment":{"cf_payment_id":42,"payment_status":"SUCCESS"}}}`

type recordingHandler struct {
	events []cashfree.WebhookEvent
}

func (h *recordingHandler) HandleWebhook(_ context.Context, event cashfree.WebhookEvent) error {
	h.events = append(h.events, event)
	return nil
}

func newWebhookHandler(t *testing.T) (http.HandlerFunc, *recordingHandler) {
	t.Helper()
	handler := &recordingHandler{}
	svc, err := cashfreewebhook.NewService(cashfreewebhook.ServiceParams{Secret: "whsec", Handler: handler})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return CashfreeWebhook(svc, nil), handler
}

func TestCashfreeWebhookAcceptsSignedDelivery(t *testing.T) {
	h, handler := newWebhookHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/cashfree", strings.NewReader(webhookBody))
	req.Header.Set("x-webhook-timestamp", "1714538110")
	req.Header.Set("x-webhook-signature", cashfree.Sign("whsec", "1714538110", []byte(webhookBody)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(handler.events) != 1 {
		t.Fatalf("expected event dispatched, got %d", len(handler.events))
	}
}

func TestCashfreeWebhookRejectsBadSignature(t *testing.T) {
	h, handler := newWebhookHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/cashfree", strings.NewReader(webhookBody))
	req.Header.Set("x-webhook-timestamp", "1714538110")
	req.Header.Set("x-webhook-signature", cashfree.Sign("other", "1714538110", []byte(webhookBody)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(handler.events) != 0 {
		t.Fatalf("unauthenticated delivery must not dispatch")
	}
}

func TestCashfreeWebhookMissingHeaders(t *testing.T) {
	h, _ := newWebhookHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/cashfree", strings.NewReader(webhookBody))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
