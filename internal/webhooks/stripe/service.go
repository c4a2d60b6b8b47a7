package stripewebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/kitea/hunt-backend/internal/orders"
	"github.com/kitea/hunt-backend/pkg/db/models"
	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
	"github.com/kitea/hunt-backend/pkg/logger"
)

type orderSettler interface {
	ConfirmPaid(ctx context.Context, sessionID string, details orders.PaidDetails) (*models.Order, error)
	MarkFailed(ctx context.Context, sessionID, reason string) (*models.Order, error)
}

type ServiceParams struct {
	Orders orderSettler
	Logger *logger.Logger
}

type Service struct {
	orders orderSettler
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{orders: params.Orders, logg: params.Logger}, nil
}

// sessionPayload holds the session fields read from the raw event object.
// Shipping moved under collected_information in newer API versions.
type sessionPayload struct {
	ID            string          `json:"id"`
	PaymentStatus string          `json:"payment_status"`
	PaymentIntent json.RawMessage `json:"payment_intent"`
	Collected     *struct {
		ShippingDetails *shippingDetails `json:"shipping_details"`
	} `json:"collected_information"`
	ShippingDetails *shippingDetails `json:"shipping_details"`
}

type shippingDetails struct {
	Name    string          `json:"name"`
	Address json.RawMessage `json:"address"`
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		sess, err := decodeSession(event.Data.Raw)
		if err != nil {
			return err
		}
		if sess.PaymentStatus != string(stripe.CheckoutSessionPaymentStatusPaid) {
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{
				"session_id":     sess.ID,
				"payment_status": sess.PaymentStatus,
			}), "checkout session completed without payment; waiting for async result")
			return nil
		}
		_, err = s.orders.ConfirmPaid(ctx, sess.ID, paidDetails(sess))
		return s.settled(ctx, sess.ID, err)
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed,
		stripe.EventTypeCheckoutSessionExpired:
		sess, err := decodeSession(event.Data.Raw)
		if err != nil {
			return err
		}
		_, err = s.orders.MarkFailed(ctx, sess.ID, string(event.Type))
		return s.settled(ctx, sess.ID, err)
	default:
		return nil
	}
}

// settled swallows unknown sessions so the processor stops retrying them.
func (s *Service) settled(ctx context.Context, sessionID string, err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		s.logg.Warn(s.logg.WithField(ctx, "session_id", sessionID), "webhook for unknown checkout session")
		return nil
	}
	return err
}

func decodeSession(raw json.RawMessage) (*sessionPayload, error) {
	var sess sessionPayload
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	if sess.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	return &sess, nil
}

func paidDetails(sess *sessionPayload) orders.PaidDetails {
	details := orders.PaidDetails{
		PaymentIntentID: paymentIntentID(sess.PaymentIntent),
		PaidAt:          time.Now().UTC(),
	}
	shipping := sess.ShippingDetails
	if sess.Collected != nil && sess.Collected.ShippingDetails != nil {
		shipping = sess.Collected.ShippingDetails
	}
	if shipping != nil {
		details.ShippingName = shipping.Name
		if len(shipping.Address) > 0 && string(shipping.Address) != "null" {
			details.ShippingAddress = shipping.Address
		}
	}
	return details
}

// paymentIntentID accepts the field either as an id string or an expanded object.
func paymentIntentID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}
