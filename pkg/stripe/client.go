package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	"github.com/kitea/hunt-backend/pkg/config"
	"github.com/kitea/hunt-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errCurrencyRequired = errors.New("stripe currency is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client creates shop Checkout sessions and carries the webhook signing
// secret. The API key stays on the instance; the package-level stripe.Key is
// never set.
type Client struct {
	sessions      *session.Client
	environment   string
	signingSecret string
	currency      string
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}
	signingSecret := strings.TrimSpace(cfg.Secret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		return nil, errCurrencyRequired
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_env": env,
			"currency":   currency,
		}), "stripe client initialized")
	}
	return &Client{
		sessions:      &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: apiKey},
		environment:   env,
		signingSecret: signingSecret,
		currency:      currency,
	}, nil
}

// CreateCheckoutSession opens a hosted payment page for one shop order.
func (c *Client) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if c == nil || c.sessions == nil {
		return nil, errors.New("stripe client not initialized")
	}
	if params == nil {
		return nil, errors.New("checkout session params required")
	}
	params.Context = ctx
	sess, err := c.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return sess, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// Currency is the lower-case ISO code every shop price is charged in.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

// IsTransient reports whether a Stripe call may succeed on retry. Stripe's
// own 4xx answers (bad params, auth) will not; transport failures, rate
// limits and 5xx may.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return true
	}
	switch {
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
		return true
	case stripeErr.HTTPStatusCode >= http.StatusInternalServerError:
		return true
	case stripeErr.HTTPStatusCode == 0:
		return stripeErr.Type == stripe.ErrorTypeAPI
	default:
		return false
	}
}

func normalizeEnv(raw string) (string, error) {
	switch env := strings.TrimSpace(strings.ToLower(raw)); env {
	case "", testEnv:
		return testEnv, nil
	case liveEnv:
		return liveEnv, nil
	default:
		return "", errInvalidStripeEnv
	}
}

// validateAPIKey refuses a live key in test mode and the reverse. Restricted
// keys (rk_) are accepted alongside secret keys (sk_).
func validateAPIKey(env, key string) error {
	for _, prefix := range []string{"sk_" + env + "_", "rk_" + env + "_"} {
		if strings.HasPrefix(key, prefix) {
			return nil
		}
	}
	return fmt.Errorf("stripe environment %q requires an sk_%s or rk_%s key", env, env, env)
}
