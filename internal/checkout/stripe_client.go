package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v84"

	pkgstripe "github.com/kitea/hunt-backend/pkg/stripe"
)

// SessionClient is the subset of Stripe Checkout used by the checkout service.
type SessionClient interface {
	Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeSessionClient struct {
	api *pkgstripe.Client
}

// NewStripeSessionClient returns a SessionClient backed by the configured Stripe account.
func NewStripeSessionClient(api *pkgstripe.Client) SessionClient {
	if api == nil {
		return nil
	}
	return &stripeSessionClient{api: api}
}

func (c *stripeSessionClient) Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return c.api.CreateCheckoutSession(ctx, params)
}
