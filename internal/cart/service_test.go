package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Hynox-org/aharraa-server/internal/catalog"
	"github.com/Hynox-org/aharraa-server/pkg/db"
	"github.com/Hynox-org/aharraa-server/pkg/db/dbtest"
	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	pkgerrors "github.com/Hynox-org/aharraa-server/pkg/errors"
	"github.com/Hynox-org/aharraa-server/pkg/types"
)

type fixture struct {
	client *db.Client
	svc    Service
	userID uuid.UUID
	meal   models.Meal
	plan   models.Plan
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	client := dbtest.Open(t)
	conn := client.DB()

	user := models.User{ID: uuid.New(), Email: "buyer@example.com", Name: "Buyer"}
	require.NoError(t, conn.Create(&user).Error)
	vendor := models.Vendor{ID: uuid.New(), Name: "Green Bowl"}
	require.NoError(t, conn.Create(&vendor).Error)
	meal := models.Meal{ID: uuid.New(), Name: "Veg Thali", Category: enums.MealCategoryLunch, Price: decimal.NewFromInt(100), VendorID: vendor.ID}
	require.NoError(t, conn.Create(&meal).Error)
	plan := models.Plan{ID: uuid.New(), Name: "5 Day", DurationDays: 5, Price: decimal.NewFromInt(500)}
	require.NoError(t, conn.Create(&plan).Error)

	svc, err := NewService(NewRepository(conn), client, catalog.NewRepository(conn))
	require.NoError(t, err)

	return fixture{client: client, svc: svc, userID: user.ID, meal: meal, plan: plan}
}

func startDay() time.Time {
	return time.Date(2024, 6, 3, 9, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
}

func requireTotalsMatchItems(t *testing.T, cart *models.Cart) {
	t.Helper()
	count, sum := Totals(cart.Items)
	require.Equal(t, count, cart.TotalItems)
	require.True(t, sum.Equal(cart.CartTotalPrice), "expected %s got %s", sum, cart.CartTotalPrice)
}

func TestGetMaterializesEmptyCart(t *testing.T) {
	f := newFixture(t)

	cart, err := f.svc.Get(context.Background(), f.userID, f.userID)
	require.NoError(t, err)
	require.Equal(t, f.userID, cart.UserID)
	require.Empty(t, cart.Items)
	require.Equal(t, 0, cart.TotalItems)
	require.True(t, cart.CartTotalPrice.IsZero())

	again, err := f.svc.Get(context.Background(), f.userID, f.userID)
	require.NoError(t, err)
	require.Equal(t, cart.ID, again.ID)
}

func TestAddItemComputesLineAndTotals(t *testing.T) {
	f := newFixture(t)

	cart, err := f.svc.AddItem(context.Background(), f.userID, f.userID, AddItemInput{
		MealID:    f.meal.ID,
		PlanID:    f.plan.ID,
		Quantity:  2,
		StartDate: startDay(),
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	item := cart.Items[0]
	require.True(t, item.ItemTotalPrice.Equal(decimal.NewFromInt(1000)), "got %s", item.ItemTotalPrice)
	require.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), item.StartDate.UTC())
	require.Equal(t, time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC), item.EndDate.UTC())
	require.NotNil(t, item.Meal)
	require.Equal(t, "Veg Thali", item.Meal.Name)
	require.Equal(t, 2, cart.TotalItems)
	requireTotalsMatchItems(t, cart)
}

func TestAddItemMergesSameLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.userID, f.userID, AddItemInput{
		MealID: f.meal.ID, PlanID: f.plan.ID, Quantity: 2, StartDate: startDay(),
		PersonDetails: types.PersonDetails{{Name: "Asha", PhoneNumber: "900"}},
	})
	require.NoError(t, err)

	cart, err := f.svc.AddItem(ctx, f.userID, f.userID, AddItemInput{
		MealID: f.meal.ID, PlanID: f.plan.ID, Quantity: 3, StartDate: startDay().Add(4 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.Equal(t, 5, cart.Items[0].Quantity)
	require.True(t, cart.Items[0].ItemTotalPrice.Equal(decimal.NewFromInt(2500)))
	require.Len(t, cart.Items[0].PersonDetails, 1, "merge without details keeps existing ones")
	requireTotalsMatchItems(t, cart)

	cart, err = f.svc.AddItem(ctx, f.userID, f.userID, AddItemInput{
		MealID: f.meal.ID, PlanID: f.plan.ID, Quantity: 1, StartDate: startDay(),
		PersonDetails: types.PersonDetails{{Name: "Ravi", PhoneNumber: "901"}, {Name: "Meena", PhoneNumber: "902"}},
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.Equal(t, "Ravi", cart.Items[0].PersonDetails[0].Name)
	require.Len(t, cart.Items[0].PersonDetails, 2)
}

func TestAddItemDifferentStartDateIsNewLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.userID, f.userID, AddItemInput{MealID: f.meal.ID, PlanID: f.plan.ID, Quantity: 1, StartDate: startDay()})
	require.NoError(t, err)
	cart, err := f.svc.AddItem(ctx, f.userID, f.userID, AddItemInput{MealID: f.meal.ID, PlanID: f.plan.ID, Quantity: 1, StartDate: startDay().AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	require.Equal(t, 2, cart.TotalItems)
	require.True(t, cart.CartTotalPrice.Equal(decimal.NewFromInt(1000)))
}

func TestAddItemRejectsUnknownCatalogEntries(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddItem(context.Background(), f.userID, f.userID, AddItemInput{MealID: uuid.New(), PlanID: f.plan.ID, Quantity: 1, StartDate: startDay()})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.AddItem(context.Background(), f.userID, f.userID, AddItemInput{MealID: f.meal.ID, PlanID: uuid.New(), Quantity: 1, StartDate: startDay()})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestMutationsRequireOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stranger := uuid.New()

	_, err := f.svc.Get(ctx, stranger, f.userID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.AddItem(ctx, stranger, f.userID, AddItemInput{MealID: f.meal.ID, PlanID: f.plan.ID, Quantity: 1, StartDate: startDay()})
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.Clear(ctx, stranger, f.userID)
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestItemOfAnotherUserIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cart, err := f.svc.AddItem(ctx, f.userID, f.userID, AddItemInput{MealID: f.meal.ID, PlanID: f.plan.ID, Quantity: 1, StartDate: startDay()})
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	other := models.User{ID: uuid.New(), Email: "other@example.com"}
	require.NoError(t, f.client.DB().Create(&other).Error)

	_, err = f.svc.UpdateQuantity(ctx, other.ID, other.ID, itemID, 4)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.RemoveItem(ctx, f.userID, f.userID, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestUpdateQuantityPersonDetailsRemoveAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cart, err := f.svc.AddItem(ctx, f.userID, f.userID, AddItemInput{MealID: f.meal.ID, PlanID: f.plan.ID, Quantity: 1, StartDate: startDay()})
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	cart, err = f.svc.UpdateQuantity(ctx, f.userID, f.userID, itemID, 4)
	require.NoError(t, err)
	require.Equal(t, 4, cart.Items[0].Quantity)
	require.True(t, cart.Items[0].ItemTotalPrice.Equal(decimal.NewFromInt(2000)))
	requireTotalsMatchItems(t, cart)

	_, err = f.svc.UpdateQuantity(ctx, f.userID, f.userID, itemID, 0)
	requireCode(t, err, pkgerrors.CodeValidation)

	cart, err = f.svc.UpdatePersonDetails(ctx, f.userID, f.userID, itemID, types.PersonDetails{{Name: " Asha ", PhoneNumber: "900"}, {}})
	require.NoError(t, err)
	require.Equal(t, types.PersonDetails{{Name: "Asha", PhoneNumber: "900"}}, cart.Items[0].PersonDetails)

	_, err = f.svc.AddItem(ctx, f.userID, f.userID, AddItemInput{MealID: f.meal.ID, PlanID: f.plan.ID, Quantity: 1, StartDate: startDay().AddDate(0, 0, 7)})
	require.NoError(t, err)

	cart, err = f.svc.RemoveItem(ctx, f.userID, f.userID, itemID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.Equal(t, 1, cart.TotalItems)
	requireTotalsMatchItems(t, cart)

	cart, err = f.svc.Clear(ctx, f.userID, f.userID)
	require.NoError(t, err)
	require.Empty(t, cart.Items)
	require.Equal(t, 0, cart.TotalItems)
	require.True(t, cart.CartTotalPrice.IsZero())

	reloaded, err := f.svc.Get(ctx, f.userID, f.userID)
	require.NoError(t, err)
	require.Empty(t, reloaded.Items)
}
