package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/Hynox-org/aharraa-server/api/responses"
	cashfreewebhook "github.com/Hynox-org/aharraa-server/internal/webhooks/cashfree"
	pkgerrors "github.com/Hynox-org/aharraa-server/pkg/errors"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
)

const (
	headerTimestamp = "x-webhook-timestamp"
	headerSignature = "x-webhook-signature"

	maxWebhookBody = 1 << 20
)

type CashfreeWebhookService interface {
	Handle(ctx context.Context, delivery cashfreewebhook.Delivery) error
}

// CashfreeWebhook authenticates a gateway delivery against the raw body and
// acknowledges it with 200.
func CashfreeWebhook(svc CashfreeWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		delivery := cashfreewebhook.Delivery{
			Timestamp: r.Header.Get(headerTimestamp),
			Signature: r.Header.Get(headerSignature),
			Body:      payload,
		}
		if err := svc.Handle(ctx, delivery); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "received"})
	}
}
