package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Hynox-org/aharraa-server/pkg/db"
	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	pkgerrors "github.com/Hynox-org/aharraa-server/pkg/errors"
	"github.com/Hynox-org/aharraa-server/pkg/types"
)

// Service owns a user's pre-checkout basket. Every mutation recomputes the
// cached totals before returning.
type Service interface {
	Get(ctx context.Context, actorID, ownerID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, actorID, ownerID uuid.UUID, input AddItemInput) (*models.Cart, error)
	UpdateQuantity(ctx context.Context, actorID, ownerID, itemID uuid.UUID, quantity int) (*models.Cart, error)
	UpdatePersonDetails(ctx context.Context, actorID, ownerID, itemID uuid.UUID, details types.PersonDetails) (*models.Cart, error)
	RemoveItem(ctx context.Context, actorID, ownerID, itemID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, actorID, ownerID uuid.UUID) (*models.Cart, error)
}

// AddItemInput describes one line to merge into the cart. A nil PersonDetails
// leaves existing details untouched on merge.
type AddItemInput struct {
	MealID        uuid.UUID
	PlanID        uuid.UUID
	Quantity      int
	StartDate     time.Time
	PersonDetails types.PersonDetails
}

type service struct {
	repo    CartRepository
	tx      txRunner
	catalog CatalogReader
	now     func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, catalog CatalogReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		catalog: catalog,
		now:     time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, actorID, ownerID uuid.UUID) (*models.Cart, error) {
	if err := authorize(actorID, ownerID); err != nil {
		return nil, err
	}
	cart, err := s.ensureCart(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	cart.Items = items
	return cart, nil
}

func (s *service) AddItem(ctx context.Context, actorID, ownerID uuid.UUID, input AddItemInput) (*models.Cart, error) {
	if err := authorize(actorID, ownerID); err != nil {
		return nil, err
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.StartDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "start date is required")
	}

	meal, err := s.catalog.FindMeal(ctx, input.MealID)
	if err != nil {
		return nil, catalogError(err, "meal")
	}
	plan, err := s.catalog.FindPlan(ctx, input.PlanID)
	if err != nil {
		return nil, catalogError(err, "plan")
	}

	cart, err := s.ensureCart(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	start := NormalizeDate(input.StartDate)
	details := input.PersonDetails
	if details != nil {
		details = details.Normalize()
	}

	merge := func() error {
		return s.mutate(ctx, cart, func(repo CartRepository) error {
			existing, err := repo.FindItemByKey(ctx, ownerID, meal.ID, plan.ID, start)
			switch {
			case err == nil:
				setQuantity(existing, existing.Quantity+input.Quantity)
				if details != nil {
					existing.PersonDetails = details
				}
				return repo.UpdateItem(ctx, existing)
			case errors.Is(err, gorm.ErrRecordNotFound):
				if details == nil {
					details = types.PersonDetails{}
				}
				return repo.InsertItem(ctx, &models.CartItem{
					CartID:         cart.ID,
					UserID:         ownerID,
					MealID:         meal.ID,
					PlanID:         plan.ID,
					Quantity:       input.Quantity,
					PersonDetails:  details,
					StartDate:      start,
					EndDate:        EndDate(start, plan.DurationDays),
					ItemTotalPrice: LineTotal(meal.Price, plan.DurationDays, input.Quantity),
					AddedAt:        s.now().UTC(),
				})
			default:
				return err
			}
		})
	}

	err = merge()
	if err != nil && db.IsUniqueViolation(err, "") {
		// lost the insert race on the merge key; the second pass merges
		err = merge()
	}
	if err != nil {
		return nil, mutationError(err, "add cart item")
	}
	return cart, nil
}

func (s *service) UpdateQuantity(ctx context.Context, actorID, ownerID, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	if err := authorize(actorID, ownerID); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	return s.mutateItem(ctx, ownerID, itemID, func(repo CartRepository, item *models.CartItem) error {
		setQuantity(item, quantity)
		return repo.UpdateItem(ctx, item)
	})
}

func (s *service) UpdatePersonDetails(ctx context.Context, actorID, ownerID, itemID uuid.UUID, details types.PersonDetails) (*models.Cart, error) {
	if err := authorize(actorID, ownerID); err != nil {
		return nil, err
	}
	normalized := details.Normalize()
	return s.mutateItem(ctx, ownerID, itemID, func(repo CartRepository, item *models.CartItem) error {
		item.PersonDetails = normalized
		return repo.UpdateItem(ctx, item)
	})
}

func (s *service) RemoveItem(ctx context.Context, actorID, ownerID, itemID uuid.UUID) (*models.Cart, error) {
	if err := authorize(actorID, ownerID); err != nil {
		return nil, err
	}
	return s.mutateItem(ctx, ownerID, itemID, func(repo CartRepository, item *models.CartItem) error {
		return repo.DeleteItem(ctx, item.ID)
	})
}

func (s *service) Clear(ctx context.Context, actorID, ownerID uuid.UUID) (*models.Cart, error) {
	if err := authorize(actorID, ownerID); err != nil {
		return nil, err
	}
	cart, err := s.ensureCart(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, cart, func(repo CartRepository) error {
		return repo.DeleteItemsByUser(ctx, ownerID)
	})
	if err != nil {
		return nil, mutationError(err, "clear cart")
	}
	return cart, nil
}

func (s *service) mutateItem(ctx context.Context, ownerID, itemID uuid.UUID, fn func(repo CartRepository, item *models.CartItem) error) (*models.Cart, error) {
	cart, err := s.ensureCart(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, cart, func(repo CartRepository) error {
		item, err := repo.FindItem(ctx, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return err
		}
		if item.UserID != ownerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cart item belongs to another user")
		}
		return fn(repo, item)
	})
	if err != nil {
		return nil, mutationError(err, "update cart item")
	}
	return cart, nil
}

// mutate runs fn and the totals recomputation in one transaction and leaves
// cart populated with the committed item set.
func (s *service) mutate(ctx context.Context, cart *models.Cart, fn func(repo CartRepository) error) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := fn(repo); err != nil {
			return err
		}
		items, err := repo.ListItems(ctx, cart.UserID)
		if err != nil {
			return err
		}
		cart.TotalItems, cart.CartTotalPrice = Totals(items)
		cart.LastUpdated = s.now().UTC()
		cart.Items = items
		return repo.SaveTotals(ctx, cart)
	})
}

// ensureCart returns the user's cart, creating an empty one on first use.
func (s *service) ensureCart(ctx context.Context, ownerID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindByUser(ctx, ownerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	created, err := s.repo.Create(ctx, &models.Cart{
		UserID:         ownerID,
		CartTotalPrice: decimal.Zero,
		LastUpdated:    s.now().UTC(),
		Items:          []models.CartItem{},
	})
	if err == nil {
		return created, nil
	}
	if db.IsUniqueViolation(err, "") {
		cart, err = s.repo.FindByUser(ctx, ownerID)
		if err == nil {
			return cart, nil
		}
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
}

func authorize(actorID, ownerID uuid.UUID) error {
	if ownerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if actorID != ownerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "cannot access another user's cart")
	}
	return nil
}

func catalogError(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeValidation, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+entity)
}

func mutationError(err error, action string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
