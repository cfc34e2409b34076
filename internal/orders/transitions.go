package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	pkgerrors "github.com/Hynox-org/aharraa-server/pkg/errors"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
	"github.com/Hynox-org/aharraa-server/pkg/metrics"
	"github.com/Hynox-org/aharraa-server/pkg/outbox"
	"github.com/Hynox-org/aharraa-server/pkg/outbox/payloads"
)

// maxCASAttempts bounds re-reads when a concurrent writer moves the order
// between our read and the conditional update.
const maxCASAttempts = 3

// Transition describes one requested status change.
type Transition struct {
	OrderID uuid.UUID
	To      enums.OrderStatus
	// From restricts the statuses the change may start from. Empty means every
	// status with a legal edge into To.
	From    []enums.OrderStatus
	Source  enums.TransitionSource
	ActorID *uuid.UUID
	// Payment is recorded alongside the status, only by the winning writer.
	Payment *models.PaymentDetails
}

type transitionResult struct {
	order   *models.Order
	from    enums.OrderStatus
	applied bool
}

// Transitioner owns every status write. Each change is a conditional UPDATE
// on the observed status with its outbox event in the same transaction.
type Transitioner struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.OrderMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewTransitioner wires the status writer; metrics and logger may be nil.
func NewTransitioner(repo Repository, tx txRunner, outbox outboxPublisher, m *metrics.OrderMetrics, logg *logger.Logger) (*Transitioner, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Transitioner{
		repo:    repo,
		tx:      tx,
		outbox:  outbox,
		metrics: m,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Apply runs tr in its own transaction. The bool is true only for the caller
// whose update changed the row.
func (t *Transitioner) Apply(ctx context.Context, tr Transition) (*models.Order, bool, error) {
	var res transitionResult
	err := t.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		res, err = t.applyTx(ctx, tx, tr)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	t.observe(ctx, tr, res)
	return res.order, res.applied, nil
}

// MarkFailed moves a pending order to failed. A non-pending order is left as is.
func (t *Transitioner) MarkFailed(ctx context.Context, orderID uuid.UUID, source enums.TransitionSource) error {
	_, _, err := t.Apply(ctx, Transition{
		OrderID: orderID,
		To:      enums.OrderStatusFailed,
		From:    []enums.OrderStatus{enums.OrderStatusPending},
		Source:  source,
	})
	return err
}

// AttachSession stores the gateway session token on the order.
func (t *Transitioner) AttachSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	return t.repo.SetPaymentSession(ctx, orderID, sessionID)
}

func (t *Transitioner) applyTx(ctx context.Context, tx *gorm.DB, tr Transition) (transitionResult, error) {
	repo := t.repo.WithTx(tx)
	allowed := tr.From
	if len(allowed) == 0 {
		allowed = enums.SourcesFor(tr.To)
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		order, err := repo.FindByID(ctx, tr.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return transitionResult{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return transitionResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		from := order.Status
		if !containsStatus(allowed, from) || !from.CanTransitionTo(tr.To) {
			return transitionResult{order: order, from: from}, nil
		}

		now := t.now()
		extra := map[string]any{}
		if tr.To == enums.OrderStatusConfirmed {
			extra["payment_confirmed_at"] = now
		}
		if tr.Payment != nil {
			for column, value := range paymentColumns(tr.Payment) {
				extra[column] = value
			}
		}

		changed, err := repo.CompareAndSetStatus(ctx, order.ID, from, tr.To, extra)
		if err != nil {
			return transitionResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !changed {
			continue
		}

		order.Status = tr.To
		order.UpdatedAt = now
		if tr.To == enums.OrderStatusConfirmed {
			order.PaymentConfirmedAt = &now
		}
		if tr.Payment != nil {
			order.Payment = *tr.Payment
		}
		if err := t.emit(ctx, tx, order, from, tr, now); err != nil {
			return transitionResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order event")
		}
		return transitionResult{order: order, from: from, applied: true}, nil
	}

	order, err := repo.FindByID(ctx, tr.OrderID)
	if err != nil {
		return transitionResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return transitionResult{order: order, from: order.Status}, nil
}

func (t *Transitioner) emit(ctx context.Context, tx *gorm.DB, order *models.Order, from enums.OrderStatus, tr Transition, at time.Time) error {
	eventType, ok := enums.EventForOrderStatus(tr.To)
	if !ok {
		return nil
	}
	return t.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: tr.ActorID, Source: tr.Source.String()},
		OccurredAt:    at,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:          order.ID,
			UserID:           order.UserID,
			From:             from,
			To:               tr.To,
			Source:           tr.Source.String(),
			TotalAmount:      order.TotalAmount,
			Currency:         order.Currency,
			PaymentMethod:    order.PaymentMethod,
			GatewayPaymentID: order.Payment.GatewayPaymentID,
			ChangedAt:        at,
		},
	})
}

func (t *Transitioner) observe(ctx context.Context, tr Transition, res transitionResult) {
	logCtx := t.logg.WithFields(ctx, map[string]any{
		"order_id": tr.OrderID.String(),
		"source":   tr.Source.String(),
		"from":     res.from.String(),
		"to":       tr.To.String(),
	})
	if res.applied {
		t.metrics.IncTransition(res.from.String(), tr.To.String(), tr.Source.String())
		t.logg.Info(logCtx, "order status changed")
		return
	}
	t.metrics.IncNoop(tr.Source.String())
	t.logg.Info(logCtx, "order status unchanged")
}

func paymentColumns(p *models.PaymentDetails) map[string]any {
	columns := map[string]any{}
	if p.GatewayPaymentID != nil {
		columns["payment_gateway_id"] = *p.GatewayPaymentID
	}
	if p.Status != nil {
		columns["payment_status"] = string(*p.Status)
	}
	if p.PaidAt != nil {
		columns["payment_time"] = p.PaidAt.UTC()
	}
	if p.BankReference != nil {
		columns["payment_bank_reference"] = *p.BankReference
	}
	if p.Channel != nil {
		columns["payment_channel"] = *p.Channel
	}
	return columns
}

func containsStatus(statuses []enums.OrderStatus, status enums.OrderStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}
