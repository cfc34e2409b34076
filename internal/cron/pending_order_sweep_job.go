package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
)

const (
	defaultReconcileGrace = 10 * time.Minute
	defaultAbandonAfter   = time.Hour
	defaultSweepBatch     = 100
)

// PendingOrderSweepJobParams configure the pending order sweep.
type PendingOrderSweepJobParams struct {
	Logger         *logger.Logger
	Orders         staleOrderReader
	Reconciler     orderReconciler
	Failer         orderFailer
	ReconcileGrace time.Duration
	AbandonAfter   time.Duration
	BatchSize      int
}

type staleOrderReader interface {
	FindStalePending(ctx context.Context, withSession bool, before time.Time, limit int) ([]models.Order, error)
}

type orderReconciler interface {
	Reconcile(ctx context.Context, orderID uuid.UUID, source enums.TransitionSource) (*models.Order, bool, error)
}

type orderFailer interface {
	MarkFailed(ctx context.Context, orderID uuid.UUID, source enums.TransitionSource) error
}

// NewPendingOrderSweepJob builds the job that settles orders whose webhook
// never arrived and fails orders that never opened a payment session.
func NewPendingOrderSweepJob(params PendingOrderSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("stale order reader required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("order reconciler required")
	}
	if params.Failer == nil {
		return nil, fmt.Errorf("order failer required")
	}
	grace := params.ReconcileGrace
	if grace <= 0 {
		grace = defaultReconcileGrace
	}
	abandon := params.AbandonAfter
	if abandon <= 0 {
		abandon = defaultAbandonAfter
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &pendingOrderSweepJob{
		logg:       params.Logger,
		orders:     params.Orders,
		reconciler: params.Reconciler,
		failer:     params.Failer,
		grace:      grace,
		abandon:    abandon,
		batch:      batch,
		now:        time.Now,
	}, nil
}

type pendingOrderSweepJob struct {
	logg       *logger.Logger
	orders     staleOrderReader
	reconciler orderReconciler
	failer     orderFailer
	grace      time.Duration
	abandon    time.Duration
	batch      int
	now        func() time.Time
}

func (j *pendingOrderSweepJob) Name() string { return "pending-order-sweep" }

func (j *pendingOrderSweepJob) Run(ctx context.Context) error {
	var errs error
	if err := j.reconcileStale(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := j.failAbandoned(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (j *pendingOrderSweepJob) reconcileStale(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	orders, err := j.orders.FindStalePending(ctx, true, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query pending orders with session: %w", err)
	}

	var errs error
	settled := 0
	for _, order := range orders {
		orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
		updated, applied, err := j.reconciler.Reconcile(orderCtx, order.ID, enums.SourceSweep)
		if err != nil {
			j.logg.Warn(j.logg.WithField(orderCtx, "error", err.Error()), "sweep reconcile failed")
			errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", order.ID, err))
			continue
		}
		if applied {
			settled++
			j.logg.Info(j.logg.WithField(orderCtx, "status", updated.Status), "sweep settled order")
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":   cutoff,
		"examined": len(orders),
		"settled":  settled,
	}), "pending orders reconciled")
	return errs
}

func (j *pendingOrderSweepJob) failAbandoned(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.abandon)
	orders, err := j.orders.FindStalePending(ctx, false, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query pending orders without session: %w", err)
	}

	var errs error
	for _, order := range orders {
		orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
		if err := j.failer.MarkFailed(orderCtx, order.ID, enums.SourceSweep); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fail %s: %w", order.ID, err))
			continue
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"abandoned": len(orders),
	}), "abandoned orders failed")
	return errs
}
