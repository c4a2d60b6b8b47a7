package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/kitea/hunt-backend/pkg/errors"
)

type lineItem struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"min=0,max=10"`
}

type cartBody struct {
	Wallet string     `json:"wallet" validate:"omitempty,eth_addr"`
	Items  []lineItem `json:"items" validate:"dive"`
}

func decode(t *testing.T, body string) (cartBody, error) {
	t.Helper()
	var dest cartBody
	req := httptest.NewRequest("POST", "/api/v1/checkout", strings.NewReader(body))
	return dest, DecodeJSONBody(req, &dest)
}

func detailsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	details, ok := appErr.Details().(map[string]string)
	require.True(t, ok, "unexpected details %T", appErr.Details())
	return details
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	got, err := decode(t, `{"wallet":"0x52908400098527886E0F7030069857D2E4169EE7","items":[{"product_id":"7b0c6f8e-4c1a-4f57-9a55-1d2f3e4a5b6c","quantity":2}]}`)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.Equal(t, 2, got.Items[0].Quantity)
}

func TestDecodeJSONBodyReportsNestedFieldPaths(t *testing.T) {
	_, err := decode(t, `{"wallet":"0x123","items":[{"product_id":"p1","quantity":11}]}`)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	details := detailsOf(t, err)
	require.Equal(t, "must be a 0x-prefixed 20-byte address", details["wallet"])
	require.Equal(t, "must be a UUID", details["items[0].product_id"])
	require.Equal(t, "must be at most 10", details["items[0].quantity"])
}

func TestDecodeJSONBodyRejectsMalformedBodies(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"unknown field":  `{"coupon":"FREE"}`,
		"trailing data":  `{"items":[]} {"items":[]}`,
		"not an object":  `[1,2]`,
		"oversized body": `{"wallet":"` + strings.Repeat("a", MaxBodyBytes) + `"}`,
	}
	for name, body := range cases {
		_, err := decode(t, body)
		require.Truef(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%s: got %v", name, err)
	}

	_, err := decode(t, ``)
	require.ErrorContains(t, err, "request body is required")
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "04:A1", SanitizeString("  04:A1  ", 0))
	require.Equal(t, "04:", SanitizeString(" 04:A1 ", 3))
}
