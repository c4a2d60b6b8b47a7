package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/kitea/hunt-backend/internal/orders"
	"github.com/kitea/hunt-backend/internal/products"
	"github.com/kitea/hunt-backend/pkg/checkout"
	"github.com/kitea/hunt-backend/pkg/db/models"
	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
	"github.com/kitea/hunt-backend/pkg/logger"
	pkgstripe "github.com/kitea/hunt-backend/pkg/stripe"
)

var shippingCountries = []string{"AU", "NZ", "US", "GB"}

type productReader interface {
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	HasUnlock(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

type scanChecker interface {
	HasScanned(ctx context.Context, userID, locationID uuid.UUID) (bool, error)
}

// SessionResult is returned to the browser, which redirects to URL.
type SessionResult struct {
	URL       string `json:"url"`
	SessionID string `json:"-"`
}

// Service creates payment sessions for gated shop products.
type Service interface {
	CreateSession(ctx context.Context, userID uuid.UUID, items []checkout.LineInput) (*SessionResult, error)
}

type ServiceParams struct {
	Products productReader
	Scans    scanChecker
	Orders   orders.Repository
	Sessions SessionClient
	SiteURL  string
	Currency string
	Logger   *logger.Logger
}

type service struct {
	products productReader
	scans    scanChecker
	orders   orders.Repository
	sessions SessionClient
	siteURL  string
	currency string
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Products == nil {
		return nil, fmt.Errorf("products reader required")
	}
	if params.Scans == nil {
		return nil, fmt.Errorf("scan checker required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("stripe session client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "aud"
	}
	return &service{
		products: params.Products,
		scans:    params.Scans,
		orders:   params.Orders,
		sessions: params.Sessions,
		siteURL:  NormalizeSiteURL(params.SiteURL),
		currency: currency,
		logg:     params.Logger,
	}, nil
}

// CreateSession validates the cart against the catalogue and the caller's
// unlocks, opens a Stripe Checkout session and records the pending order.
// Nothing is written when validation fails.
func (s *service) CreateSession(ctx context.Context, userID uuid.UUID, items []checkout.LineInput) (*SessionResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	lines, err := checkout.NormalizeLines(items)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	catalogue, err := s.products.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}

	var (
		total      decimal.Decimal
		lineParams []*stripe.CheckoutSessionLineItemParams
		orderItems []models.OrderItem
	)
	for _, line := range lines {
		product, ok := catalogue[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
		}
		if err := s.checkGate(ctx, userID, product); err != nil {
			return nil, err
		}

		qty := int64(line.Quantity)
		total = total.Add(product.Price.Mul(decimal.NewFromInt(qty)))
		lineParams = append(lineParams, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(s.currency),
				ProductData: productData(product),
				UnitAmount:  stripe.Int64(UnitAmount(product.Price)),
			},
			Quantity: stripe.Int64(qty),
		})
		orderItems = append(orderItems, models.OrderItem{
			ProductID:  product.ID,
			Quantity:   line.Quantity,
			UnitAmount: product.Price,
		})
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineParams,
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(s.siteURL + "/shop/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(s.siteURL + "/shop"),
		ClientReferenceID:  stripe.String(userID.String()),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(shippingCountries),
		},
	}
	params.AddMetadata("user_id", userID.String())

	sess, err := s.sessions.Create(ctx, params)
	if err != nil {
		if !pkgstripe.IsTransient(err) {
			s.logg.Error(s.logg.WithField(ctx, "user_id", userID.String()), "stripe rejected checkout session", err)
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "Failed to create checkout session")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Failed to create checkout session")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"session_id": sess.ID,
		"user_id":    userID.String(),
	})

	order := &models.Order{
		UserID:          userID,
		StripeSessionID: sess.ID,
		TotalAmount:     total,
		Currency:        s.currency,
		Items:           orderItems,
	}
	if err := s.orders.CreatePending(ctx, order); err != nil {
		s.logg.Error(logCtx, "checkout session created without a local order", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record pending order")
	}

	s.logg.Info(s.logg.WithField(logCtx, "order_id", order.ID.String()), "checkout session created")
	return &SessionResult{URL: sess.URL, SessionID: sess.ID}, nil
}

func (s *service) checkGate(ctx context.Context, userID uuid.UUID, product models.Product) error {
	if !product.RequiresScan {
		return nil
	}
	unlocked, err := s.products.HasUnlock(ctx, userID, product.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check product unlock")
	}
	scanned := map[uuid.UUID]bool{}
	if !unlocked && product.RequiredLocationID != nil {
		ok, err := s.scans.HasScanned(ctx, userID, *product.RequiredLocationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check location scan")
		}
		scanned[*product.RequiredLocationID] = ok
	}
	if products.IsLocked(product, unlocked, scanned) {
		return pkgerrors.Newf(pkgerrors.CodeForbidden, "You need to scan the location to unlock %s", product.Name)
	}
	return nil
}

func productData(p models.Product) *stripe.CheckoutSessionLineItemPriceDataProductDataParams {
	data := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(p.Name),
	}
	if p.Description != nil && *p.Description != "" {
		data.Description = p.Description
	}
	if p.ImageURL != nil && *p.ImageURL != "" {
		data.Images = stripe.StringSlice([]string{*p.ImageURL})
	}
	return data
}

// UnitAmount converts a major-unit price to minor units, rounding half away from zero.
func UnitAmount(price decimal.Decimal) int64 {
	return price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// NormalizeSiteURL guarantees a scheme and drops trailing slashes.
func NormalizeSiteURL(raw string) string {
	site := strings.TrimSpace(raw)
	if site == "" {
		site = "http://localhost:3000"
	}
	if !strings.HasPrefix(site, "http://") && !strings.HasPrefix(site, "https://") {
		site = "https://" + site
	}
	return strings.TrimRight(site, "/")
}
