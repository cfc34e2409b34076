package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Hynox-org/aharraa-server/internal/cart"
	"github.com/Hynox-org/aharraa-server/internal/payments"
	"github.com/Hynox-org/aharraa-server/pkg/cashfree"
	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	pkgerrors "github.com/Hynox-org/aharraa-server/pkg/errors"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
)

// Service reconciles order status from the webhook and poll paths and
// serves the user-facing order operations.
type Service interface {
	ApplySettlement(ctx context.Context, orderID uuid.UUID, settlement payments.Settlement, source enums.TransitionSource) (*models.Order, bool, error)
	HandleWebhook(ctx context.Context, event cashfree.WebhookEvent) error
	VerifyPayment(ctx context.Context, actorID, orderID uuid.UUID) (*VerifyResult, error)
	Reconcile(ctx context.Context, orderID uuid.UUID, source enums.TransitionSource) (*models.Order, bool, error)
	Update(ctx context.Context, actorID, orderID uuid.UUID, input UpdateInput) (*models.Order, error)
	List(ctx context.Context, actorID uuid.UUID) ([]models.Order, error)
	Get(ctx context.Context, actorID, orderID uuid.UUID) (*models.Order, error)
	// Wait blocks until fulfillment runs started by confirmations finish.
	Wait()
}

type service struct {
	repo        Repository
	tx          txRunner
	transitions *Transitioner
	settlements SettlementFetcher
	fulfiller   Fulfiller
	logg        *logger.Logger

	inflight sync.WaitGroup
}

// NewService builds the reconciliation engine. fulfiller may be nil.
func NewService(repo Repository, tx txRunner, transitions *Transitioner, settlements SettlementFetcher, fulfiller Fulfiller, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if transitions == nil {
		return nil, fmt.Errorf("transitioner required")
	}
	if settlements == nil {
		return nil, fmt.Errorf("settlement fetcher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:        repo,
		tx:          tx,
		transitions: transitions,
		settlements: settlements,
		fulfiller:   fulfiller,
		logg:        logg,
	}, nil
}

// ApplySettlement is the single transition rule shared by the webhook and
// poll paths. Only the caller that wins the pending -> confirmed update starts
// fulfillment, in the background after the transaction has committed.
func (s *service) ApplySettlement(ctx context.Context, orderID uuid.UUID, settlement payments.Settlement, source enums.TransitionSource) (*models.Order, bool, error) {
	target, ok := settlement.Status.TargetOrderStatus()
	if !ok {
		order, err := s.load(ctx, orderID)
		return order, false, err
	}

	order, applied, err := s.transitions.Apply(ctx, Transition{
		OrderID: orderID,
		To:      target,
		From:    []enums.OrderStatus{enums.OrderStatusPending},
		Source:  source,
		Payment: settlement.Payment,
	})
	if err != nil {
		return nil, false, err
	}
	if applied && target == enums.OrderStatusConfirmed {
		s.fulfill(ctx, order)
	}
	return order, applied, nil
}

func (s *service) HandleWebhook(ctx context.Context, event cashfree.WebhookEvent) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"webhook_type": string(event.Type),
		"order_id":     event.OrderID(),
	})

	switch event.Type {
	case cashfree.WebhookPaymentSuccess, cashfree.WebhookPaymentFailed, cashfree.WebhookPaymentUserDropped:
	default:
		s.logg.Info(ctx, "ignoring webhook type")
		return nil
	}

	orderID, err := uuid.Parse(strings.TrimSpace(event.OrderID()))
	if err != nil {
		s.logg.Warn(ctx, "webhook references unknown order id")
		return nil
	}

	// The payment record decides the outcome. A dropped or pending attempt
	// leaves the order open for another try.
	status, _ := enums.ParseSettlementStatus(event.Data.Payment.PaymentStatus)
	if _, drives := status.TargetOrderStatus(); !drives {
		s.logg.Info(s.logg.WithField(ctx, "payment_status", event.Data.Payment.PaymentStatus), "webhook payment status leaves order unchanged")
		return nil
	}

	settlement := payments.Settlement{
		Status:  status,
		Payment: payments.PaymentDetailsFrom(event.Data.Payment),
	}
	if _, _, err := s.ApplySettlement(ctx, orderID, settlement, enums.SourceWebhook); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(ctx, "webhook for missing order acknowledged")
			return nil
		}
		return err
	}
	return nil
}

func (s *service) VerifyPayment(ctx context.Context, actorID, orderID uuid.UUID) (*VerifyResult, error) {
	order, err := s.ownedOrder(ctx, actorID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.PaymentMethod.Online() {
		return &VerifyResult{Order: order}, nil
	}
	if !order.HasSession() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no payment session")
	}

	settlement, err := s.settlements.FetchSettlement(ctx, order)
	if err != nil {
		return nil, err
	}
	updated, _, err := s.ApplySettlement(ctx, order.ID, *settlement, enums.SourcePoll)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Order: updated, GatewaySettlement: settlement}, nil
}

// Reconcile polls the gateway for an order without an acting user.
func (s *service) Reconcile(ctx context.Context, orderID uuid.UUID, source enums.TransitionSource) (*models.Order, bool, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if order.Status != enums.OrderStatusPending || !order.HasSession() || !order.PaymentMethod.Online() {
		return order, false, nil
	}
	settlement, err := s.settlements.FetchSettlement(ctx, order)
	if err != nil {
		return nil, false, err
	}
	return s.ApplySettlement(ctx, order.ID, *settlement, source)
}

func (s *service) Update(ctx context.Context, actorID, orderID uuid.UUID, input UpdateInput) (*models.Order, error) {
	if input.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one field must be updated")
	}
	order, err := s.ownedOrder(ctx, actorID, orderID)
	if err != nil {
		return nil, err
	}

	var transition *Transition
	if input.Status != nil {
		transition, err = userTransition(order, *input.Status, actorID)
		if err != nil {
			return nil, err
		}
	}
	edited, err := applyEdits(order, input)
	if err != nil {
		return nil, err
	}

	var (
		res     transitionResult
		updated *models.Order
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if transition != nil {
			res, err = s.transitions.applyTx(ctx, tx, *transition)
			if err != nil {
				return err
			}
			if !res.applied {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently").
					WithDetails(map[string]any{"status": res.from, "requested": transition.To})
			}
		}
		for i := range edited {
			if err := repo.SaveItemEdits(ctx, edited[i]); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order item")
			}
		}
		if input.DeliveryAddresses != nil {
			if err := repo.SetDeliveryAddresses(ctx, order.ID, input.DeliveryAddresses); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save delivery addresses")
			}
		}
		updated, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if transition != nil {
		s.transitions.observe(ctx, *transition, res)
	}
	return updated, nil
}

func (s *service) List(ctx context.Context, actorID uuid.UUID) ([]models.Order, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	orders, err := s.repo.ListByUser(ctx, actorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) Get(ctx context.Context, actorID, orderID uuid.UUID) (*models.Order, error) {
	return s.ownedOrder(ctx, actorID, orderID)
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ownedOrder(ctx context.Context, actorID, orderID uuid.UUID) (*models.Order, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsOwnedBy(actorID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	return order, nil
}

func (s *service) Wait() {
	s.inflight.Wait()
}

// fulfill runs on a copy of the order, detached from the request that
// confirmed it.
func (s *service) fulfill(ctx context.Context, order *models.Order) {
	if s.fulfiller == nil {
		return
	}
	snapshot := *order
	ctx = context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.fulfiller.Fulfill(ctx, &snapshot); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"order_id": snapshot.ID.String(),
				"error":    err.Error(),
			}), "order confirmed with incomplete fulfillment")
		}
	}()
}

// userTransition validates a status requested by the order owner. Users may
// cancel a pending or confirmed order and mark a confirmed one delivered.
func userTransition(order *models.Order, target enums.OrderStatus, actorID uuid.UUID) (*Transition, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": target})
	}
	var from []enums.OrderStatus
	switch target {
	case enums.OrderStatusCancelled:
		from = []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusConfirmed}
	case enums.OrderStatusDelivered:
		from = []enums.OrderStatus{enums.OrderStatusConfirmed}
	}
	if !containsStatus(from, order.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot change order from %s to %s", order.Status, target)).
			WithDetails(map[string]any{"status": order.Status, "requested": target})
	}
	actor := actorID
	return &Transition{
		OrderID: order.ID,
		To:      target,
		From:    from,
		Source:  enums.SourceUser,
		ActorID: &actor,
	}, nil
}

// applyEdits mutates the loaded order lines in memory and returns the lines
// that need saving.
func applyEdits(order *models.Order, input UpdateInput) ([]*models.OrderItem, error) {
	problems := pkgerrors.Fields{}
	touched := map[string]*models.OrderItem{}
	var ordered []*models.OrderItem
	touch := func(item *models.OrderItem) {
		if _, ok := touched[item.LineID]; ok {
			return
		}
		touched[item.LineID] = item
		ordered = append(ordered, item)
	}

	for i, edit := range input.Items {
		item := order.FindItem(edit.ID)
		if item == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found").
				WithDetails(map[string]any{"itemId": edit.ID})
		}
		if edit.StartDate != nil {
			item.StartDate = cart.NormalizeDate(*edit.StartDate)
		}
		if edit.EndDate != nil {
			item.EndDate = cart.NormalizeDate(*edit.EndDate)
		}
		if edit.PersonDetails != nil {
			item.PersonDetails = edit.PersonDetails.Normalize()
		}
		if item.EndDate.Before(item.StartDate) {
			problems.Add(fmt.Sprintf("items[%d].endDate", i), "must not be before startDate")
		}
		touch(item)
	}

	if input.ItemID != "" {
		item := order.FindItem(input.ItemID)
		if item == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found for the provided itemId").
				WithDetails(map[string]any{"itemId": input.ItemID})
		}
		if input.SkippedDate == nil && input.NewEndDate == nil {
			problems.Add("itemId", "requires skippedDate or newEndDate")
		}
		if input.NewEndDate != nil {
			item.EndDate = cart.NormalizeDate(*input.NewEndDate)
			if item.EndDate.Before(item.StartDate) {
				problems.Add("newEndDate", "must not be before startDate")
			}
		}
		if input.SkippedDate != nil {
			day := cart.NormalizeDate(*input.SkippedDate)
			if day.Before(item.StartDate) || day.After(item.EndDate) {
				problems.Add("skippedDate", "must fall within the subscription dates")
			} else if !containsDay(item.SkippedDates, day) {
				item.SkippedDates = append(item.SkippedDates, day)
			}
		}
		touch(item)
	}

	for category, address := range input.DeliveryAddresses {
		if !category.IsValid() {
			problems.Add("deliveryAddresses."+string(category), "unknown meal category")
			continue
		}
		if !address.IsComplete() {
			problems.Add("deliveryAddresses."+string(category), "address is incomplete")
		}
	}

	if err := problems.Err("invalid order update"); err != nil {
		return nil, err
	}
	return ordered, nil
}

func containsDay(days []time.Time, day time.Time) bool {
	for _, d := range days {
		if cart.NormalizeDate(d).Equal(day) {
			return true
		}
	}
	return false
}
