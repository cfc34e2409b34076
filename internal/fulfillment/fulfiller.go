// Package fulfillment runs the side effects of a confirmed order: invoice,
// buyer and vendor emails, and clearing the buyer's cart.
package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	pkgerrors "github.com/Hynox-org/aharraa-server/pkg/errors"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
	"github.com/Hynox-org/aharraa-server/pkg/metrics"
)

const defaultStepTimeout = 20 * time.Second

// Step names, also used as metric and log labels.
const (
	StepInvoice      = "invoice"
	StepBuyerEmail   = "buyer_email"
	StepVendorLookup = "vendor_lookup"
	StepVendorEmail  = "vendor_email"
	StepClearCart    = "clear_cart"
)

type InvoiceGenerator interface {
	Generate(ctx context.Context, order *models.Order, buyer *models.User) (string, error)
}

type InvoiceStore interface {
	SetInvoiceURL(ctx context.Context, id uuid.UUID, url string) error
}

type Notifier interface {
	BuyerConfirmation(ctx context.Context, order *models.Order, buyer *models.User) error
	VendorNotification(ctx context.Context, order *models.Order, vendor models.Vendor, buyer *models.User) error
}

type Directory interface {
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindVendors(ctx context.Context, ids []uuid.UUID) ([]models.Vendor, error)
}

type CartClearer interface {
	Clear(ctx context.Context, actorID, ownerID uuid.UUID) (*models.Cart, error)
}

// Deps groups the collaborators of a Fulfiller.
type Deps struct {
	Invoices    InvoiceGenerator
	Store       InvoiceStore
	Notifier    Notifier
	Directory   Directory
	Carts       CartClearer
	Metrics     *metrics.OrderMetrics
	Logger      *logger.Logger
	StepTimeout time.Duration
}

// Fulfiller runs every step independently; a failing step never stops the
// others and never touches the order status.
type Fulfiller struct {
	invoices    InvoiceGenerator
	store       InvoiceStore
	notifier    Notifier
	directory   Directory
	carts       CartClearer
	metrics     *metrics.OrderMetrics
	logg        *logger.Logger
	stepTimeout time.Duration
}

func NewFulfiller(deps Deps) (*Fulfiller, error) {
	if deps.Invoices == nil {
		return nil, fmt.Errorf("invoice generator required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("invoice store required")
	}
	if deps.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("directory required")
	}
	if deps.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	timeout := deps.StepTimeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	return &Fulfiller{
		invoices:    deps.Invoices,
		store:       deps.Store,
		notifier:    deps.Notifier,
		directory:   deps.Directory,
		carts:       deps.Carts,
		metrics:     deps.Metrics,
		logg:        logg,
		stepTimeout: timeout,
	}, nil
}

// Fulfill runs the invoice, email and cart steps for a confirmed order. The
// returned error combines every failed step.
func (f *Fulfiller) Fulfill(ctx context.Context, order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	ctx = f.logg.WithOrderID(context.WithoutCancel(ctx), order.ID.String())

	var errs error
	lookupCtx, cancel := context.WithTimeout(ctx, f.stepTimeout)
	buyer, lookupErr := f.directory.FindUser(lookupCtx, order.UserID)
	cancel()
	if lookupErr != nil {
		f.logg.Warn(f.logg.WithField(ctx, "error", lookupErr.Error()), "buyer profile unavailable for fulfillment")
	}

	errs = multierr.Append(errs, f.run(ctx, StepInvoice, func(stepCtx context.Context) error {
		url, err := f.invoices.Generate(stepCtx, order, buyer)
		if err != nil {
			return err
		}
		if err := f.store.SetInvoiceURL(stepCtx, order.ID, url); err != nil {
			return err
		}
		order.InvoiceURL = &url
		return nil
	}))

	errs = multierr.Append(errs, f.run(ctx, StepBuyerEmail, func(stepCtx context.Context) error {
		if lookupErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, lookupErr, "buyer profile missing")
		}
		return f.notifier.BuyerConfirmation(stepCtx, order, buyer)
	}))

	errs = multierr.Append(errs, f.notifyVendors(ctx, order, buyer))

	errs = multierr.Append(errs, f.run(ctx, StepClearCart, func(stepCtx context.Context) error {
		_, err := f.carts.Clear(stepCtx, order.UserID, order.UserID)
		return err
	}))

	if errs == nil {
		f.logg.Info(ctx, "order fulfilled")
	}
	return errs
}

// notifyVendors sends one email per distinct vendor on the order.
func (f *Fulfiller) notifyVendors(ctx context.Context, order *models.Order, buyer *models.User) error {
	var vendors []models.Vendor
	if err := f.run(ctx, StepVendorLookup, func(stepCtx context.Context) error {
		found, err := f.directory.FindVendors(stepCtx, order.VendorIDs())
		vendors = found
		return err
	}); err != nil {
		return err
	}

	byID := make(map[uuid.UUID]models.Vendor, len(vendors))
	for _, vendor := range vendors {
		byID[vendor.ID] = vendor
	}

	var errs error
	for _, vendorID := range order.VendorIDs() {
		vendor, ok := byID[vendorID]
		if !ok {
			vendor = models.Vendor{ID: vendorID}
		}
		vendorCtx := f.logg.WithField(ctx, "vendor_id", vendorID.String())
		errs = multierr.Append(errs, f.run(vendorCtx, StepVendorEmail, func(stepCtx context.Context) error {
			return f.notifier.VendorNotification(stepCtx, order, vendor, buyer)
		}))
	}
	return errs
}

// run executes one step under its own timeout and records the outcome.
func (f *Fulfiller) run(ctx context.Context, step string, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, f.stepTimeout)
	defer cancel()

	err := fn(stepCtx)
	f.metrics.ObserveFulfillmentStep(step, err)
	if err == nil {
		return nil
	}
	wrapped := pkgerrors.Wrap(pkgerrors.CodeFulfillment, err, fmt.Sprintf("fulfillment step %s failed", step)).
		WithDetails(map[string]any{"step": step})
	f.logg.Error(f.logg.WithField(ctx, "step", step), "fulfillment step failed", wrapped)
	return wrapped
}
