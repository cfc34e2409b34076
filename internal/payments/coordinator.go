package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Hynox-org/aharraa-server/pkg/cashfree"
	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	pkgerrors "github.com/Hynox-org/aharraa-server/pkg/errors"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
	"github.com/Hynox-org/aharraa-server/pkg/metrics"
)

const defaultGatewayTimeout = 10 * time.Second

// Gateway is the slice of the Cashfree client the coordinator uses.
type Gateway interface {
	CreateOrder(ctx context.Context, req cashfree.CreateOrderRequest) (*cashfree.CreateOrderResponse, error)
	GetOrder(ctx context.Context, orderID string) (*cashfree.Order, error)
	GetPayments(ctx context.Context, orderID string) ([]cashfree.Payment, error)
}

// OrderWriter persists the two outcomes of opening a session.
type OrderWriter interface {
	AttachSession(ctx context.Context, orderID uuid.UUID, sessionID string) error
	MarkFailed(ctx context.Context, orderID uuid.UUID, source enums.TransitionSource) error
}

// Customer is the buyer contact passed to the gateway.
type Customer struct {
	ID    uuid.UUID
	Name  string
	Email string
	Phone string
}

// Settlement is the gateway's current view of an order.
type Settlement struct {
	Status             enums.SettlementStatus `json:"status"`
	GatewayOrderStatus string                 `json:"gatewayOrderStatus"`
	Payment            *models.PaymentDetails `json:"payment,omitempty"`
}

// Config carries the coordinator limits.
type Config struct {
	MaxAmount       decimal.Decimal
	FrontendBaseURL string
	Timeout         time.Duration
}

// Coordinator opens gateway payment sessions and reads settlement state.
type Coordinator struct {
	gateway   Gateway
	orders    OrderWriter
	maxAmount decimal.Decimal
	returnURL string
	timeout   time.Duration
	metrics   *metrics.OrderMetrics
	logg      *logger.Logger
}

// NewCoordinator wires the coordinator; metrics may be nil.
func NewCoordinator(cfg Config, gateway Gateway, orders OrderWriter, m *metrics.OrderMetrics, logg *logger.Logger) (*Coordinator, error) {
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order writer required")
	}
	if cfg.MaxAmount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("payment ceiling must be positive")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	return &Coordinator{
		gateway:   gateway,
		orders:    orders,
		maxAmount: cfg.MaxAmount,
		returnURL: strings.TrimRight(strings.TrimSpace(cfg.FrontendBaseURL), "/"),
		timeout:   timeout,
		metrics:   m,
		logg:      logg,
	}, nil
}

// OpenSession registers order with the gateway and stores the session token.
// Over-ceiling amounts, gateway failures and an unsaved session leave the
// order failed.
func (c *Coordinator) OpenSession(ctx context.Context, order *models.Order, customer Customer) (string, error) {
	if order == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	ctx = c.logg.WithOrderID(ctx, order.ID.String())

	amount := order.TotalAmount.Round(2)
	if amount.GreaterThan(c.maxAmount) {
		c.metrics.IncCeilingRejected()
		c.markFailed(ctx, order)
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order amount exceeds the payment limit").
			WithDetails(map[string]any{
				"totalAmount": amount.StringFixed(2),
				"maxAmount":   c.maxAmount.StringFixed(2),
			})
	}

	req := cashfree.CreateOrderRequest{
		OrderID:  order.ID.String(),
		Amount:   amount.StringFixed(2),
		Currency: order.Currency,
		Customer: cashfree.Customer{
			ID:    customer.ID.String(),
			Phone: customer.Phone,
			Email: customer.Email,
			Name:  customer.Name,
		},
	}
	if c.returnURL != "" {
		req.ReturnURL = fmt.Sprintf("%s/order-status/%s", c.returnURL, order.ID)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	started := time.Now()
	resp, err := c.gateway.CreateOrder(callCtx, req)
	cancel()
	c.metrics.ObserveGateway("create_order", time.Since(started), err)
	if err != nil {
		c.logg.Error(ctx, "payment session creation failed", err)
		c.markFailed(ctx, order)
		return "", pkgerrors.Wrap(pkgerrors.CodeGateway, err, "open payment session")
	}

	if err := c.orders.AttachSession(ctx, order.ID, resp.PaymentSessionID); err != nil {
		c.logg.Error(ctx, "payment session could not be stored", err)
		c.markFailed(ctx, order)
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment session")
	}
	order.PaymentSessionID = &resp.PaymentSessionID
	c.logg.Info(ctx, "payment session opened")
	return resp.PaymentSessionID, nil
}

// FetchSettlement reads the gateway state for order without touching it.
func (c *Coordinator) FetchSettlement(ctx context.Context, order *models.Order) (*Settlement, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	ctx = c.logg.WithOrderID(ctx, order.ID.String())

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	gwOrder, err := c.gateway.GetOrder(callCtx, order.ID.String())
	c.metrics.ObserveGateway("get_order", time.Since(started), err)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "fetch settlement")
	}

	settlement := &Settlement{
		Status:             cashfree.SettlementFromOrderStatus(gwOrder.OrderStatus),
		GatewayOrderStatus: gwOrder.OrderStatus,
	}
	if settlement.Status == enums.SettlementPending {
		return settlement, nil
	}

	started = time.Now()
	payments, err := c.gateway.GetPayments(callCtx, order.ID.String())
	c.metrics.ObserveGateway("get_payments", time.Since(started), err)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "payment records unavailable; settling without details")
		return settlement, nil
	}
	if latest := cashfree.LatestPayment(payments); latest != nil {
		settlement.Payment = PaymentDetailsFrom(*latest)
	}
	return settlement, nil
}

func (c *Coordinator) markFailed(ctx context.Context, order *models.Order) {
	if err := c.orders.MarkFailed(context.WithoutCancel(ctx), order.ID, enums.SourceCheckout); err != nil {
		c.logg.Error(ctx, "failed to mark order failed", err)
		return
	}
	order.Status = enums.OrderStatusFailed
}

// PaymentDetailsFrom copies a gateway payment record verbatim.
func PaymentDetailsFrom(p cashfree.Payment) *models.PaymentDetails {
	details := &models.PaymentDetails{}
	if id := strings.TrimSpace(p.CFPaymentID.String()); id != "" {
		details.GatewayPaymentID = &id
	}
	if status, err := enums.ParseSettlementStatus(p.PaymentStatus); err == nil {
		details.Status = &status
	}
	if paidAt := p.ParsedTime(); !paidAt.IsZero() {
		details.PaidAt = &paidAt
	}
	if ref := strings.TrimSpace(p.BankReference); ref != "" {
		details.BankReference = &ref
	}
	if channel := strings.TrimSpace(p.PaymentGroup); channel != "" {
		details.Channel = &channel
	}
	return details
}
