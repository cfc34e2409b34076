package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Hynox-org/aharraa-server/internal/orders"
	"github.com/Hynox-org/aharraa-server/internal/payments"
	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	pkgerrors "github.com/Hynox-org/aharraa-server/pkg/errors"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
	"github.com/Hynox-org/aharraa-server/pkg/outbox"
	"github.com/Hynox-org/aharraa-server/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// UserDirectory resolves the buyer contact sent to the gateway.
type UserDirectory interface {
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// SessionOpener opens the gateway payment session for a persisted order.
type SessionOpener interface {
	OpenSession(ctx context.Context, order *models.Order, customer payments.Customer) (string, error)
}

// Service executes checkout orchestration.
type Service interface {
	Checkout(ctx context.Context, actorID uuid.UUID, req Request) (*Result, error)
}

type service struct {
	tx       txRunner
	orders   orders.Repository
	outbox   outboxPublisher
	users    UserDirectory
	sessions SessionOpener
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the checkout service.
func NewService(tx txRunner, ordersRepo orders.Repository, publisher outboxPublisher, users UserDirectory, sessions SessionOpener, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session opener required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:       tx,
		orders:   ordersRepo,
		outbox:   publisher,
		users:    users,
		sessions: sessions,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Checkout persists the translated order once and then opens its payment
// session. A failed session leaves the order in failed.
func (s *service) Checkout(ctx context.Context, actorID uuid.UUID, req Request) (*Result, error) {
	order, err := Translate(actorID, req, s.now())
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: &actorID, Source: enums.SourceCheckout.String()},
			OccurredAt:    order.OrderDate,
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				UserID:        order.UserID,
				TotalAmount:   order.TotalAmount,
				Currency:      order.Currency,
				PaymentMethod: order.PaymentMethod,
				ItemCount:     len(order.Items),
				VendorIDs:     order.VendorIDs(),
				OrderDate:     order.OrderDate,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "order created")

	sessionID, err := s.sessions.OpenSession(ctx, order, s.customerFor(ctx, order))
	if err != nil {
		return nil, err
	}
	if sessionID != "" {
		s.logg.Info(s.logg.WithPaymentSessionID(ctx, sessionID), "payment session opened")
	}
	return &Result{PaymentSessionID: sessionID, Order: order}, nil
}

// customerFor builds the gateway customer. The phone falls back to the first
// recipient on the order when the profile has none.
func (s *service) customerFor(ctx context.Context, order *models.Order) payments.Customer {
	customer := payments.Customer{ID: order.UserID}
	user, err := s.users.FindUser(ctx, order.UserID)
	switch {
	case err == nil:
		customer.Name = strings.TrimSpace(user.Name)
		customer.Email = strings.TrimSpace(user.Email)
		customer.Phone = strings.TrimSpace(user.Phone)
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.logg.Warn(ctx, "buyer profile missing; using order contact")
	default:
		s.logg.Error(ctx, "failed to load buyer profile", err)
	}
	if customer.Phone == "" {
		for _, item := range order.Items {
			for _, person := range item.PersonDetails {
				if person.PhoneNumber != "" {
					customer.Phone = person.PhoneNumber
					if customer.Name == "" {
						customer.Name = person.Name
					}
					return customer
				}
			}
		}
	}
	return customer
}
