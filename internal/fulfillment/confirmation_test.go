package fulfillment_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Hynox-org/aharraa-server/internal/cart"
	"github.com/Hynox-org/aharraa-server/internal/catalog"
	"github.com/Hynox-org/aharraa-server/internal/fulfillment"
	"github.com/Hynox-org/aharraa-server/internal/invoices"
	"github.com/Hynox-org/aharraa-server/internal/notifications"
	"github.com/Hynox-org/aharraa-server/internal/orders"
	"github.com/Hynox-org/aharraa-server/internal/payments"
	"github.com/Hynox-org/aharraa-server/pkg/cashfree"
	"github.com/Hynox-org/aharraa-server/pkg/db/dbtest"
	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	"github.com/Hynox-org/aharraa-server/pkg/mailer"
	"github.com/Hynox-org/aharraa-server/pkg/outbox"
	"github.com/Hynox-org/aharraa-server/pkg/types"
)

type memoryBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *memoryBucket) Upload(ctx context.Context, object, contentType string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects == nil {
		b.objects = map[string][]byte{}
	}
	b.objects[object] = data
	return "https://storage.example.com/aharraa/" + object, nil
}

type mailbox struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *mailbox) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mailbox) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.To)
	}
	return out
}

type unusedSettlements struct{}

func (unusedSettlements) FetchSettlement(ctx context.Context, order *models.Order) (*payments.Settlement, error) {
	return &payments.Settlement{Status: enums.SettlementPending}, nil
}

func TestPaymentConfirmationFulfillsOrderOnce(t *testing.T) {
	ctx := context.Background()
	client := dbtest.Open(t)
	conn := client.DB()

	buyer := models.User{ID: uuid.New(), Email: "meera@example.com", Name: "Meera"}
	require.NoError(t, conn.Create(&buyer).Error)
	vendor := models.Vendor{ID: uuid.New(), Name: "Green Bowl", Email: "green@example.com"}
	require.NoError(t, conn.Create(&vendor).Error)
	meal := models.Meal{ID: uuid.New(), Name: "Veg Thali", Category: enums.MealCategoryLunch, Price: decimal.NewFromInt(100), VendorID: vendor.ID}
	require.NoError(t, conn.Create(&meal).Error)
	plan := models.Plan{ID: uuid.New(), Name: "5 Day", DurationDays: 5, Price: decimal.NewFromInt(500)}
	require.NoError(t, conn.Create(&plan).Error)

	catalogRepo := catalog.NewRepository(conn)
	carts, err := cart.NewService(cart.NewRepository(conn), client, catalogRepo)
	require.NoError(t, err)
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	basket, err := carts.AddItem(ctx, buyer.ID, buyer.ID, cart.AddItemInput{MealID: meal.ID, PlanID: plan.ID, Quantity: 2, StartDate: start})
	require.NoError(t, err)
	require.Len(t, basket.Items, 1)

	repo := orders.NewRepository(conn)
	session := "session_e2e"
	order := &models.Order{
		UserID:           buyer.ID,
		PaymentMethod:    enums.PaymentMethodUPI,
		TotalAmount:      basket.CartTotalPrice,
		Currency:         "INR",
		OrderDate:        time.Now().UTC(),
		CreatedAt:        time.Now().UTC(),
		Status:           enums.OrderStatusPending,
		PaymentSessionID: &session,
		DeliveryAddresses: types.DeliveryAddresses{
			enums.MealCategoryLunch: {Street: "1 MG Road", City: "Bengaluru", Zip: "560001"},
		},
		Items: []models.OrderItem{{
			LineID:         basket.Items[0].ID.String(),
			MealID:         meal.ID,
			MealName:       meal.Name,
			PlanID:         plan.ID,
			PlanName:       plan.Name,
			VendorID:       vendor.ID,
			VendorName:     vendor.Name,
			Quantity:       2,
			StartDate:      start,
			EndDate:        start.AddDate(0, 0, 4),
			ItemTotalPrice: basket.CartTotalPrice,
		}},
	}
	require.NoError(t, repo.Create(ctx, order))

	bucket := &memoryBucket{}
	generator, err := invoices.NewGenerator(bucket, "invoices", "Aharraa", nil)
	require.NoError(t, err)
	box := &mailbox{}
	notifier, err := notifications.NewNotifier(box, "Aharraa", nil)
	require.NoError(t, err)
	fulfiller, err := fulfillment.NewFulfiller(fulfillment.Deps{
		Invoices:  generator,
		Store:     repo,
		Notifier:  notifier,
		Directory: catalogRepo,
		Carts:     carts,
	})
	require.NoError(t, err)

	emitter := outbox.NewService(outbox.NewRepository(conn), nil)
	transitions, err := orders.NewTransitioner(repo, client, emitter, nil, nil)
	require.NoError(t, err)
	svc, err := orders.NewService(repo, client, transitions, unusedSettlements{}, fulfiller, nil)
	require.NoError(t, err)

	var event cashfree.WebhookEvent
	event.Type = cashfree.WebhookPaymentSuccess
	event.Data.Order.OrderID = order.ID.String()
	event.Data.Payment = cashfree.Payment{CFPaymentID: "777", PaymentStatus: "SUCCESS", PaymentGroup: "upi"}

	require.NoError(t, svc.HandleWebhook(ctx, event))
	require.NoError(t, svc.HandleWebhook(ctx, event), "redelivery is acknowledged")
	svc.Wait()

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, stored.Status)
	require.NotNil(t, stored.PaymentConfirmedAt)
	require.NotNil(t, stored.InvoiceURL)
	require.True(t, strings.HasPrefix(*stored.InvoiceURL, "https://storage.example.com/aharraa/invoices/"+order.ID.String()+"/INV-"))
	require.Len(t, bucket.objects, 1)

	require.ElementsMatch(t, []string{"meera@example.com", "green@example.com"}, box.recipients())
	require.Contains(t, box.sent[0].HTML+box.sent[1].HTML, *stored.InvoiceURL)

	emptied, err := carts.Get(ctx, buyer.ID, buyer.ID)
	require.NoError(t, err)
	require.Empty(t, emptied.Items)
	require.Equal(t, 0, emptied.TotalItems)

	var confirmed int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ? AND event_type = ?", order.ID, string(enums.EventOrderConfirmed)).
		Count(&confirmed).Error)
	require.Equal(t, int64(1), confirmed)
}
