package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitea/hunt-backend/internal/products"
	"github.com/kitea/hunt-backend/pkg/db/models"
	"github.com/kitea/hunt-backend/pkg/enums"
	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
	"github.com/kitea/hunt-backend/pkg/logger"
	"github.com/kitea/hunt-backend/pkg/outbox"
	"github.com/kitea/hunt-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service advances orders on payment processor callbacks.
type Service interface {
	ConfirmPaid(ctx context.Context, sessionID string, details PaidDetails) (*models.Order, error)
	MarkFailed(ctx context.Context, sessionID, reason string) (*models.Order, error)
}

type ServiceParams struct {
	Repo     Repository
	Products products.Repository
	Outbox   outboxPublisher
	Tx       txRunner
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	products products.Repository
	outbox   outboxPublisher
	tx       txRunner
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		products: params.Products,
		outbox:   params.Outbox,
		tx:       params.Tx,
		logg:     params.Logger,
	}, nil
}

// ConfirmPaid marks the session's order paid, unlocks the purchased products
// and emits order_paid. Replays against a settled order are no-ops.
func (s *service) ConfirmPaid(ctx context.Context, sessionID string, details PaidDetails) (*models.Order, error) {
	if details.PaidAt.IsZero() {
		details.PaidAt = time.Now().UTC()
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = repo.FindBySessionID(ctx, sessionID)
		if err != nil {
			return err
		}
		ok, err := repo.MarkPaid(ctx, order.ID, details)
		if err != nil || !ok {
			return err
		}

		productIDs := make([]uuid.UUID, 0, len(order.Items))
		for _, item := range order.Items {
			productIDs = append(productIDs, item.ProductID)
		}
		if _, err := s.products.WithTx(tx).Unlock(ctx, order.UserID, productIDs); err != nil {
			return fmt.Errorf("unlock purchased products: %w", err)
		}

		order.Status = enums.OrderStatusPaid
		order.PaidAt = &details.PaidAt
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: order.UserID, Source: "stripe"},
			Data: payloads.OrderPaidEvent{
				OrderID:         order.ID,
				UserID:          order.UserID,
				StripeSessionID: order.StripeSessionID,
				PaymentIntentID: details.PaymentIntentID,
				TotalAmount:     order.TotalAmount.StringFixed(2),
				Currency:        order.Currency,
				ProductIDs:      productIDs,
			},
		})
	})
	if err != nil {
		return nil, s.wrap(err, "confirm order payment")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":   order.ID.String(),
		"session_id": sessionID,
		"status":     string(order.Status),
	})
	s.logg.Info(logCtx, "order payment processed")
	return order, nil
}

func (s *service) MarkFailed(ctx context.Context, sessionID, reason string) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = repo.FindBySessionID(ctx, sessionID)
		if err != nil {
			return err
		}
		ok, err := repo.MarkFailed(ctx, order.ID, reason)
		if err != nil {
			return err
		}
		if ok {
			order.Status = enums.OrderStatusFailed
		}
		return nil
	})
	if err != nil {
		return nil, s.wrap(err, "mark order failed")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":   order.ID.String(),
		"session_id": sessionID,
		"reason":     reason,
	}), "order payment failed")
	return order, nil
}

func (s *service) wrap(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
