package cashfreewebhook

import (
	"context"
	"fmt"
	"strings"

	"github.com/Hynox-org/aharraa-server/pkg/cashfree"
	pkgerrors "github.com/Hynox-org/aharraa-server/pkg/errors"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
)

// EventHandler applies a verified payment event to its order.
type EventHandler interface {
	HandleWebhook(ctx context.Context, event cashfree.WebhookEvent) error
}

// Delivery is one raw webhook request.
type Delivery struct {
	Timestamp string
	Signature string
	Body      []byte
}

type ServiceParams struct {
	Secret  string
	Handler EventHandler
	Logger  *logger.Logger
}

// Service authenticates gateway deliveries before they reach the
// reconciliation engine.
type Service struct {
	secret  string
	handler EventHandler
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if strings.TrimSpace(params.Secret) == "" {
		return nil, fmt.Errorf("cashfree webhook secret required")
	}
	if params.Handler == nil {
		return nil, fmt.Errorf("webhook event handler required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{secret: params.Secret, handler: params.Handler, logg: logg}, nil
}

// Handle verifies and applies a delivery. Only authentication failures are
// returned. An authentic delivery is always acknowledged; decode and processing
// errors are logged and the pending sweep reconciles the order.
func (s *Service) Handle(ctx context.Context, delivery Delivery) error {
	if err := cashfree.VerifySignature(s.secret, delivery.Timestamp, delivery.Signature, delivery.Body); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid webhook signature")
	}

	event, err := cashfree.ParseWebhook(delivery.Body)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "body_bytes", len(delivery.Body)), "malformed webhook body acknowledged", err)
		return nil
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"webhook_type": string(event.Type),
		"order_id":     event.OrderID(),
	})
	if err := s.handler.HandleWebhook(ctx, event); err != nil {
		s.logg.Error(ctx, "webhook processing failed; leaving order for reconciliation", err)
		return nil
	}
	s.logg.Info(ctx, "webhook processed")
	return nil
}
