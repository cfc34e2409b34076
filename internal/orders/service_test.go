package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Hynox-org/aharraa-server/internal/payments"
	"github.com/Hynox-org/aharraa-server/pkg/cashfree"
	"github.com/Hynox-org/aharraa-server/pkg/db"
	"github.com/Hynox-org/aharraa-server/pkg/db/dbtest"
	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	pkgerrors "github.com/Hynox-org/aharraa-server/pkg/errors"
	"github.com/Hynox-org/aharraa-server/pkg/metrics"
	"github.com/Hynox-org/aharraa-server/pkg/outbox"
	"github.com/Hynox-org/aharraa-server/pkg/types"
)

type stubSettlements struct {
	mu         sync.Mutex
	settlement payments.Settlement
	err        error
	calls      int
}

func (s *stubSettlements) FetchSettlement(ctx context.Context, order *models.Order) (*payments.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := s.settlement
	return &out, nil
}

type countingFulfiller struct {
	mu     sync.Mutex
	orders []uuid.UUID
	err    error
}

func (f *countingFulfiller) Fulfill(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order.ID)
	return f.err
}

func (f *countingFulfiller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type blockingFulfiller struct {
	release chan struct{}
	orderID uuid.UUID
	ctxErr  error
}

func (f *blockingFulfiller) Fulfill(ctx context.Context, order *models.Order) error {
	<-f.release
	f.orderID = order.ID
	f.ctxErr = ctx.Err()
	return nil
}

type fixture struct {
	client      *db.Client
	repo        Repository
	svc         Service
	transitions *Transitioner
	settlements *stubSettlements
	fulfiller   *countingFulfiller
	registry    *prometheus.Registry
	userID      uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	reg := prometheus.NewRegistry()
	m := metrics.NewOrderMetrics(reg)
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)

	transitions, err := NewTransitioner(repo, client, emitter, m, nil)
	require.NoError(t, err)
	settlements := &stubSettlements{settlement: payments.Settlement{Status: enums.SettlementPending}}
	fulfiller := &countingFulfiller{}
	svc, err := NewService(repo, client, transitions, settlements, fulfiller, nil)
	require.NoError(t, err)

	return fixture{
		client:      client,
		repo:        repo,
		svc:         svc,
		transitions: transitions,
		settlements: settlements,
		fulfiller:   fulfiller,
		registry:    reg,
		userID:      uuid.New(),
	}
}

func (f fixture) seedOrder(t *testing.T, method enums.PaymentMethod, withSession bool) *models.Order {
	t.Helper()
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	order := &models.Order{
		UserID:        f.userID,
		PaymentMethod: method,
		TotalAmount:   decimal.NewFromInt(1000),
		Currency:      "INR",
		OrderDate:     time.Now().UTC(),
		CreatedAt:     time.Now().UTC(),
		Status:        enums.OrderStatusPending,
		DeliveryAddresses: types.DeliveryAddresses{
			enums.MealCategoryLunch: {Street: "1 MG Road", City: "Bengaluru", Zip: "560001"},
		},
		Items: []models.OrderItem{{
			LineID:         "line-1",
			MealID:         uuid.New(),
			MealName:       "Veg Thali",
			PlanID:         uuid.New(),
			PlanName:       "5 Day",
			VendorID:       uuid.New(),
			VendorName:     "Green Bowl",
			Quantity:       2,
			StartDate:      start,
			EndDate:        start.AddDate(0, 0, 4),
			ItemTotalPrice: decimal.NewFromInt(1000),
		}},
	}
	if withSession {
		session := "session_abc"
		order.PaymentSessionID = &session
	}
	require.NoError(t, f.repo.Create(context.Background(), order))
	return order
}

func (f fixture) reload(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	order, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

func (f fixture) outboxCount(t *testing.T, orderID uuid.UUID, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).
		Where("aggregate_id = ? AND event_type = ?", orderID, string(eventType)).
		Count(&count).Error)
	return count
}

func successWebhook(orderID uuid.UUID) cashfree.WebhookEvent {
	var event cashfree.WebhookEvent
	event.Type = cashfree.WebhookPaymentSuccess
	event.Data.Order.OrderID = orderID.String()
	event.Data.Payment = cashfree.Payment{
		CFPaymentID:   "5114910",
		PaymentStatus: "SUCCESS",
		PaymentTime:   "2024-06-01T10:00:00+05:30",
		BankReference: "1234567",
		PaymentGroup:  "upi",
	}
	return event
}

func failedWebhook(orderID uuid.UUID) cashfree.WebhookEvent {
	event := successWebhook(orderID)
	event.Type = cashfree.WebhookPaymentFailed
	event.Data.Payment.PaymentStatus = "FAILED"
	event.Data.Payment.PaymentTime = ""
	return event
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
}

func TestWebhookAndPollConfirmExactlyOnce(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodUPI, true)
	f.settlements.settlement = payments.Settlement{Status: enums.SettlementSuccess}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- f.svc.HandleWebhook(context.Background(), successWebhook(order.ID))
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.VerifyPayment(context.Background(), f.userID, order.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	f.svc.Wait()

	require.Equal(t, 1, f.fulfiller.count())
	require.Equal(t, int64(1), f.outboxCount(t, order.ID, enums.EventOrderConfirmed))

	stored := f.reload(t, order.ID)
	require.Equal(t, enums.OrderStatusConfirmed, stored.Status)
	require.NotNil(t, stored.PaymentConfirmedAt)
}

func TestPollAfterWebhookKeepsConfirmation(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodCC, true)

	require.NoError(t, f.svc.HandleWebhook(context.Background(), successWebhook(order.ID)))
	confirmed := f.reload(t, order.ID)
	require.Equal(t, enums.OrderStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.PaymentConfirmedAt)
	require.NotNil(t, confirmed.Payment.GatewayPaymentID)
	require.Equal(t, "5114910", *confirmed.Payment.GatewayPaymentID)
	require.Equal(t, "upi", *confirmed.Payment.Channel)

	f.settlements.settlement = payments.Settlement{Status: enums.SettlementSuccess, GatewayOrderStatus: "PAID"}
	result, err := f.svc.VerifyPayment(context.Background(), f.userID, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, result.Order.Status)
	require.NotNil(t, result.Order.PaymentConfirmedAt)
	require.True(t, confirmed.PaymentConfirmedAt.Equal(*result.Order.PaymentConfirmedAt))
	require.Equal(t, "PAID", result.GatewaySettlement.GatewayOrderStatus)
	f.svc.Wait()
	require.Equal(t, 1, f.fulfiller.count())
}

func TestFailedSettlementDoesNotOverrideConfirmed(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodUPI, true)

	_, applied, err := f.svc.ApplySettlement(context.Background(), order.ID, payments.Settlement{Status: enums.SettlementSuccess}, enums.SourceWebhook)
	require.NoError(t, err)
	require.True(t, applied)

	require.NoError(t, f.svc.HandleWebhook(context.Background(), failedWebhook(order.ID)))

	require.Equal(t, enums.OrderStatusConfirmed, f.reload(t, order.ID).Status)
	require.Equal(t, int64(0), f.outboxCount(t, order.ID, enums.EventOrderFailed))
}

func TestFailedWebhookIsIdempotent(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodUPI, true)

	require.NoError(t, f.svc.HandleWebhook(context.Background(), failedWebhook(order.ID)))
	require.NoError(t, f.svc.HandleWebhook(context.Background(), failedWebhook(order.ID)))
	f.svc.Wait()

	stored := f.reload(t, order.ID)
	require.Equal(t, enums.OrderStatusFailed, stored.Status)
	require.Nil(t, stored.PaymentConfirmedAt)
	require.Equal(t, enums.SettlementFailed, *stored.Payment.Status)
	require.Equal(t, int64(1), f.outboxCount(t, order.ID, enums.EventOrderFailed))
	require.Zero(t, f.fulfiller.count())
}

func TestWebhookOutcomeFollowsPaymentStatus(t *testing.T) {
	cases := map[string]struct {
		eventType     cashfree.WebhookType
		paymentStatus string
		want          enums.OrderStatus
		fulfilled     int
	}{
		"success event with failed payment":    {cashfree.WebhookPaymentSuccess, "FAILED", enums.OrderStatusFailed, 0},
		"success event with pending payment":   {cashfree.WebhookPaymentSuccess, "PENDING", enums.OrderStatusPending, 0},
		"failed event with successful payment": {cashfree.WebhookPaymentFailed, "success", enums.OrderStatusConfirmed, 1},
		"user dropped":                         {cashfree.WebhookPaymentUserDropped, "USER_DROPPED", enums.OrderStatusPending, 0},
		"missing payment status":               {cashfree.WebhookPaymentSuccess, "", enums.OrderStatusPending, 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			order := f.seedOrder(t, enums.PaymentMethodUPI, true)

			event := successWebhook(order.ID)
			event.Type = tc.eventType
			event.Data.Payment.PaymentStatus = tc.paymentStatus
			require.NoError(t, f.svc.HandleWebhook(context.Background(), event))
			f.svc.Wait()

			stored := f.reload(t, order.ID)
			require.Equal(t, tc.want, stored.Status)
			require.Equal(t, tc.fulfilled, f.fulfiller.count())
			if tc.want == enums.OrderStatusPending {
				require.Nil(t, stored.Payment.Status)
			}
		})
	}
}

func TestDroppedPaymentCanStillSucceed(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodUPI, true)

	dropped := successWebhook(order.ID)
	dropped.Type = cashfree.WebhookPaymentUserDropped
	dropped.Data.Payment.PaymentStatus = "USER_DROPPED"
	require.NoError(t, f.svc.HandleWebhook(context.Background(), dropped))
	require.Equal(t, enums.OrderStatusPending, f.reload(t, order.ID).Status)

	require.NoError(t, f.svc.HandleWebhook(context.Background(), successWebhook(order.ID)))
	f.svc.Wait()

	stored := f.reload(t, order.ID)
	require.Equal(t, enums.OrderStatusConfirmed, stored.Status)
	require.Equal(t, enums.SettlementSuccess, *stored.Payment.Status)
	require.Equal(t, 1, f.fulfiller.count())
}

func TestPendingSettlementLeavesOrderPending(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodUPI, true)

	result, err := f.svc.VerifyPayment(context.Background(), f.userID, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, result.Order.Status)
	require.Equal(t, enums.SettlementPending, result.GatewaySettlement.Status)
	require.Nil(t, result.Order.PaymentConfirmedAt)
}

func TestWebhookAcknowledgesUnknownInput(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.HandleWebhook(context.Background(), successWebhook(uuid.New())))

	garbled := successWebhook(uuid.New())
	garbled.Data.Order.OrderID = "not-a-uuid"
	require.NoError(t, f.svc.HandleWebhook(context.Background(), garbled))

	refund := cashfree.WebhookEvent{Type: "REFUND_STATUS_WEBHOOK"}
	require.NoError(t, f.svc.HandleWebhook(context.Background(), refund))
	f.svc.Wait()
	require.Zero(t, f.fulfiller.count())
}

func TestVerifyPaymentGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.VerifyPayment(ctx, f.userID, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)

	order := f.seedOrder(t, enums.PaymentMethodUPI, false)
	_, err = f.svc.VerifyPayment(ctx, uuid.New(), order.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.VerifyPayment(ctx, f.userID, order.ID)
	requireCode(t, err, pkgerrors.CodeValidation)

	cod := f.seedOrder(t, enums.PaymentMethodCOD, true)
	result, err := f.svc.VerifyPayment(ctx, f.userID, cod.ID)
	require.NoError(t, err)
	require.Nil(t, result.GatewaySettlement)
	require.Equal(t, enums.OrderStatusPending, result.Order.Status)
	require.Zero(t, f.settlements.calls)

	f.settlements.err = pkgerrors.Wrap(pkgerrors.CodeGateway, errors.New("timeout"), "fetch settlement")
	withSession := f.seedOrder(t, enums.PaymentMethodUPI, true)
	_, err = f.svc.VerifyPayment(ctx, f.userID, withSession.ID)
	requireCode(t, err, pkgerrors.CodeGateway)
	require.Equal(t, enums.OrderStatusPending, f.reload(t, withSession.ID).Status)
}

func TestReconcileSkipsSettledOrders(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodUPI, true)
	f.settlements.settlement = payments.Settlement{Status: enums.SettlementFailed}

	updated, applied, err := f.svc.Reconcile(context.Background(), order.ID, enums.SourceSweep)
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, enums.OrderStatusFailed, updated.Status)

	_, applied, err = f.svc.Reconcile(context.Background(), order.ID, enums.SourceSweep)
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, 1, f.settlements.calls)
}

func TestReconcileLeavesCashOnDeliveryToOperations(t *testing.T) {
	f := newFixture(t)
	cod := f.seedOrder(t, enums.PaymentMethodCOD, true)
	f.settlements.settlement = payments.Settlement{Status: enums.SettlementFailed, GatewayOrderStatus: "EXPIRED"}

	updated, applied, err := f.svc.Reconcile(context.Background(), cod.ID, enums.SourceSweep)
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, enums.OrderStatusPending, updated.Status)
	require.Zero(t, f.settlements.calls)
	require.Equal(t, enums.OrderStatusPending, f.reload(t, cod.ID).Status)
}

func TestMarkFailedOnlyFromPending(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodUPI, false)

	require.NoError(t, f.transitions.MarkFailed(context.Background(), order.ID, enums.SourceCheckout))
	require.Equal(t, enums.OrderStatusFailed, f.reload(t, order.ID).Status)

	_, applied, err := f.svc.ApplySettlement(context.Background(), order.ID, payments.Settlement{Status: enums.SettlementSuccess}, enums.SourceWebhook)
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, enums.OrderStatusFailed, f.reload(t, order.ID).Status)
}

func TestUserTransitionsFollowTheTable(t *testing.T) {
	tests := []struct {
		name    string
		from    enums.OrderStatus
		to      enums.OrderStatus
		allowed bool
	}{
		{"cancel pending", enums.OrderStatusPending, enums.OrderStatusCancelled, true},
		{"cancel confirmed", enums.OrderStatusConfirmed, enums.OrderStatusCancelled, true},
		{"deliver confirmed", enums.OrderStatusConfirmed, enums.OrderStatusDelivered, true},
		{"deliver pending", enums.OrderStatusPending, enums.OrderStatusDelivered, false},
		{"confirm by hand", enums.OrderStatusPending, enums.OrderStatusConfirmed, false},
		{"reopen failed", enums.OrderStatusFailed, enums.OrderStatusPending, false},
		{"cancel delivered", enums.OrderStatusDelivered, enums.OrderStatusCancelled, false},
		{"cancel cancelled", enums.OrderStatusCancelled, enums.OrderStatusCancelled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			order := f.seedOrder(t, enums.PaymentMethodUPI, true)
			require.NoError(t, f.client.DB().Model(&models.Order{}).Where("id = ?", order.ID).Update("status", string(tt.from)).Error)

			target := tt.to
			updated, err := f.svc.Update(context.Background(), f.userID, order.ID, UpdateInput{Status: &target})
			if !tt.allowed {
				requireCode(t, err, pkgerrors.CodeStateConflict)
				require.Equal(t, tt.from, f.reload(t, order.ID).Status)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.to, updated.Status)
			event, _ := enums.EventForOrderStatus(tt.to)
			require.Equal(t, int64(1), f.outboxCount(t, order.ID, event))
		})
	}
}

func TestUpdateEditsItemsAndAddresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.PaymentMethodUPI, true)

	skipped := time.Date(2024, 6, 4, 15, 0, 0, 0, time.UTC)
	newEnd := time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)
	updated, err := f.svc.Update(ctx, f.userID, order.ID, UpdateInput{
		ItemID:      "line-1",
		SkippedDate: &skipped,
		NewEndDate:  &newEnd,
		Items: []ItemEdit{{
			ID:            "line-1",
			PersonDetails: types.PersonDetails{{Name: " Asha ", PhoneNumber: "900"}},
		}},
		DeliveryAddresses: types.DeliveryAddresses{
			enums.MealCategoryDinner: {Street: "2 Park St", City: "Kolkata", Zip: "700016"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, updated.Status)

	item := updated.Items[0]
	require.Equal(t, newEnd, item.EndDate.UTC())
	require.Len(t, item.SkippedDates, 1)
	require.Equal(t, time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC), item.SkippedDates[0].UTC())
	require.Equal(t, "Asha", item.PersonDetails[0].Name)
	require.Contains(t, updated.DeliveryAddresses, enums.MealCategoryDinner)
	require.NotContains(t, updated.DeliveryAddresses, enums.MealCategoryLunch)
	require.True(t, updated.TotalAmount.Equal(decimal.NewFromInt(1000)))
}

func TestUpdateRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, enums.PaymentMethodUPI, true)

	_, err := f.svc.Update(ctx, f.userID, order.ID, UpdateInput{})
	requireCode(t, err, pkgerrors.CodeValidation)

	skipped := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.Update(ctx, f.userID, order.ID, UpdateInput{ItemID: "missing", SkippedDate: &skipped})
	requireCode(t, err, pkgerrors.CodeNotFound)

	early := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.Update(ctx, f.userID, order.ID, UpdateInput{Items: []ItemEdit{{ID: "line-1", EndDate: &early}}})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.Update(ctx, f.userID, order.ID, UpdateInput{DeliveryAddresses: types.DeliveryAddresses{"Brunch": {Street: "x", City: "y", Zip: "z"}}})
	requireCode(t, err, pkgerrors.CodeValidation)

	cancelled := enums.OrderStatusCancelled
	_, err = f.svc.Update(ctx, uuid.New(), order.ID, UpdateInput{Status: &cancelled})
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.Update(ctx, f.userID, uuid.New(), UpdateInput{Status: &cancelled})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestListAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	older := f.seedOrder(t, enums.PaymentMethodUPI, true)
	require.NoError(t, f.client.DB().Model(&models.Order{}).Where("id = ?", older.ID).
		Update("order_date", time.Now().UTC().Add(-48*time.Hour)).Error)
	newer := f.seedOrder(t, enums.PaymentMethodCOD, true)

	list, err := f.svc.List(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newer.ID, list[0].ID)
	require.Len(t, list[0].Items, 1)

	other, err := f.svc.List(ctx, uuid.New())
	require.NoError(t, err)
	require.Empty(t, other)

	got, err := f.svc.Get(ctx, f.userID, older.ID)
	require.NoError(t, err)
	require.Equal(t, "Veg Thali", got.Items[0].MealName)

	_, err = f.svc.Get(ctx, uuid.New(), older.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestFulfillmentErrorsDoNotRevertConfirmation(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodUPI, true)
	f.fulfiller.err = pkgerrors.New(pkgerrors.CodeFulfillment, "invoice upload failed")

	updated, applied, err := f.svc.ApplySettlement(context.Background(), order.ID, payments.Settlement{Status: enums.SettlementSuccess}, enums.SourcePoll)
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, enums.OrderStatusConfirmed, updated.Status)
	f.svc.Wait()
	require.Equal(t, 1, f.fulfiller.count())
	require.Equal(t, enums.OrderStatusConfirmed, f.reload(t, order.ID).Status)
}

func TestFulfillmentRunsDetachedFromCaller(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.PaymentMethodUPI, true)
	release := make(chan struct{})
	blocking := &blockingFulfiller{release: release}
	svc, err := NewService(f.repo, f.client, f.transitions, f.settlements, blocking, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, applied, err := svc.ApplySettlement(ctx, order.ID, payments.Settlement{Status: enums.SettlementSuccess}, enums.SourceWebhook)
	require.NoError(t, err)
	require.True(t, applied)
	cancel()

	close(release)
	svc.Wait()
	require.NoError(t, blocking.ctxErr)
	require.Equal(t, order.ID, blocking.orderID)
}

func TestFindStalePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	withSession := f.seedOrder(t, enums.PaymentMethodUPI, true)
	withoutSession := f.seedOrder(t, enums.PaymentMethodUPI, false)
	old := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, f.client.DB().Model(&models.Order{}).
		Where("id IN ?", []uuid.UUID{withSession.ID, withoutSession.ID}).
		Update("created_at", old).Error)
	f.seedOrder(t, enums.PaymentMethodUPI, true)

	cutoff := time.Now().UTC().Add(-time.Hour)
	stale, err := f.repo.FindStalePending(ctx, true, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, withSession.ID, stale[0].ID)

	cod := f.seedOrder(t, enums.PaymentMethodCOD, true)
	require.NoError(t, f.client.DB().Model(&models.Order{}).
		Where("id = ?", cod.ID).
		Update("created_at", old).Error)
	stale, err = f.repo.FindStalePending(ctx, true, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1, "cash on delivery orders are not polled")

	abandoned, err := f.repo.FindStalePending(ctx, false, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, abandoned, 1)
	require.Equal(t, withoutSession.ID, abandoned[0].ID)
}
