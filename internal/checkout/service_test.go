package checkout

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/kitea/hunt-backend/internal/orders"
	"github.com/kitea/hunt-backend/internal/products"
	"github.com/kitea/hunt-backend/internal/scans"
	"github.com/kitea/hunt-backend/pkg/checkout"
	"github.com/kitea/hunt-backend/pkg/db/dbtest"
	"github.com/kitea/hunt-backend/pkg/db/models"
	"github.com/kitea/hunt-backend/pkg/enums"
	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
	"github.com/kitea/hunt-backend/pkg/logger"
)

type fakeSessions struct {
	params []*stripe.CheckoutSessionParams
	err    error
}

func (f *fakeSessions) Create(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_abc", URL: "https://checkout.stripe.com/c/pay/cs_test_abc"}, nil
}

type fixture struct {
	conn     *gorm.DB
	svc      Service
	sessions *fakeSessions
	location models.HuntLocation
	open     models.Product
	gated    models.Product
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	location := models.HuntLocation{Name: "Bondi", IsActive: true}
	require.NoError(t, conn.Create(&location).Error)

	open := models.Product{Name: "Sticker", Price: decimal.RequireFromString("4.50"), IsActive: true}
	gated := models.Product{Name: "Bondi Tee", Price: decimal.RequireFromString("45.00"), IsActive: true, RequiresScan: true, RequiredLocationID: &location.ID}
	require.NoError(t, conn.Create(&open).Error)
	require.NoError(t, conn.Create(&gated).Error)

	sessions := &fakeSessions{}
	svc, err := NewService(ServiceParams{
		Products: products.NewRepository(conn),
		Scans:    scans.NewRepository(conn),
		Orders:   orders.NewRepository(conn),
		Sessions: sessions,
		SiteURL:  "kitea.example/",
		Currency: "AUD",
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc, sessions: sessions, location: location, open: open, gated: gated}
}

func (f fixture) orderCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	return count
}

func TestCreateSessionBuildsStripeParamsAndPendingOrder(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	res, err := f.svc.CreateSession(context.Background(), userID, []checkout.LineInput{{ProductID: f.open.ID, Quantity: 2}})
	require.NoError(t, err)
	require.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_abc", res.URL)

	require.Len(t, f.sessions.params, 1)
	params := f.sessions.params[0]
	require.Equal(t, "payment", *params.Mode)
	require.Equal(t, "https://kitea.example/shop/success?session_id={CHECKOUT_SESSION_ID}", *params.SuccessURL)
	require.Equal(t, "https://kitea.example/shop", *params.CancelURL)
	require.Equal(t, userID.String(), params.Metadata["user_id"])
	require.Len(t, params.ShippingAddressCollection.AllowedCountries, 4)
	require.Len(t, params.LineItems, 1)
	require.Equal(t, int64(450), *params.LineItems[0].PriceData.UnitAmount)
	require.Equal(t, "aud", *params.LineItems[0].PriceData.Currency)
	require.Equal(t, int64(2), *params.LineItems[0].Quantity)

	order, err := orders.NewRepository(f.conn).FindBySessionID(context.Background(), "cs_test_abc")
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.Equal(t, userID, order.UserID)
	require.True(t, order.TotalAmount.Equal(decimal.RequireFromString("9.00")))
	require.Len(t, order.Items, 1)
}

func TestCreateSessionGatedProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.svc.CreateSession(ctx, userID, []checkout.LineInput{{ProductID: f.gated.ID}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	require.Equal(t, "You need to scan the location to unlock Bondi Tee", pkgerrors.As(err).Message())
	require.Empty(t, f.sessions.params)
	require.Zero(t, f.orderCount(t))

	require.NoError(t, f.conn.Create(&models.Scan{UserID: userID, LocationID: f.location.ID, TagUID: "04:AA", ScanNumber: 1}).Error)
	_, err = f.svc.CreateSession(ctx, userID, []checkout.LineInput{{ProductID: f.gated.ID}})
	require.NoError(t, err)
	require.Equal(t, int64(1), *f.sessions.params[0].LineItems[0].Quantity)
}

func TestCreateSessionGatedProductUnlockedByPurchase(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	_, err := products.NewRepository(f.conn).Unlock(context.Background(), userID, []uuid.UUID{f.gated.ID})
	require.NoError(t, err)

	_, err = f.svc.CreateSession(context.Background(), userID, []checkout.LineInput{{ProductID: f.gated.ID}})
	require.NoError(t, err)
}

func TestCreateSessionRejectsUnknownOrInactiveProducts(t *testing.T) {
	f := newFixture(t)
	inactive := models.Product{Name: "Retired", Price: decimal.NewFromInt(10), IsActive: false}
	require.NoError(t, f.conn.Create(&inactive).Error)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

	for _, id := range []uuid.UUID{uuid.New(), inactive.ID} {
		_, err := f.svc.CreateSession(context.Background(), uuid.New(), []checkout.LineInput{{ProductID: f.open.ID}, {ProductID: id}})
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
		require.Equal(t, "Product not found", pkgerrors.As(err).Message())
	}
	require.Empty(t, f.sessions.params)
	require.Zero(t, f.orderCount(t))
}

func TestCreateSessionEmptyCartAndStripeFailure(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateSession(context.Background(), uuid.New(), nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	f.sessions.err = errors.New("stripe unavailable")
	_, err = f.svc.CreateSession(context.Background(), uuid.New(), []checkout.LineInput{{ProductID: f.open.ID}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.Zero(t, f.orderCount(t))
}

func TestCreateSessionStripeRejectionIsInternal(t *testing.T) {
	f := newFixture(t)
	f.sessions.err = &stripe.Error{HTTPStatusCode: 400, Type: stripe.ErrorTypeInvalidRequest, Msg: "bad currency"}

	_, err := f.svc.CreateSession(context.Background(), uuid.New(), []checkout.LineInput{{ProductID: f.open.ID}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
	require.Zero(t, f.orderCount(t))
}

func TestUnitAmountRounds(t *testing.T) {
	cases := map[string]int64{
		"25":     2500,
		"19.99":  1999,
		"0.005":  1,
		"10.004": 1000,
	}
	for in, want := range cases {
		require.Equal(t, want, UnitAmount(decimal.RequireFromString(in)), in)
	}
}

func TestNormalizeSiteURL(t *testing.T) {
	require.Equal(t, "http://localhost:3000", NormalizeSiteURL(""))
	require.Equal(t, "https://kitea.app", NormalizeSiteURL("kitea.app/"))
	require.Equal(t, "http://localhost:3000", NormalizeSiteURL("http://localhost:3000"))
}
