package validators

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/Hynox-org/aharraa-server/pkg/errors"
	"github.com/stretchr/testify/require"
)

type recipient struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phoneNumber" validate:"required,phone"`
}

type addItem struct {
	Quantity   int         `json:"quantity" validate:"required,min=1"`
	Recipients []recipient `json:"personDetails" validate:"required,dive"`
}

func decodeInto(t *testing.T, body string, dest any, strict bool) error {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	if strict {
		return DecodeJSONBody(rec, req, dest)
	}
	return DecodeJSON(rec, req, dest)
}

func TestDecodeJSONBodyReportsNestedFieldPaths(t *testing.T) {
	var payload addItem
	err := decodeInto(t, `{"quantity":0,"personDetails":[{"name":"Asha","phoneNumber":"12ab"}]}`, &payload, true)
	require.Error(t, err)

	var typed *pkgerrors.Error
	require.True(t, errors.As(err, &typed))
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	require.Equal(t, map[string]string{
		"quantity":                     "is required",
		"personDetails[0].phoneNumber": "must be a valid phone number",
	}, typed.Details())
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	var payload addItem
	err := decodeInto(t, `{"quantity":1,"personDetails":[],"coupon":"X"}`, &payload, true)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, err.(*pkgerrors.Error).Code())
}

func TestDecodeJSONAcceptsUnknownFieldsWithoutValidation(t *testing.T) {
	var payload addItem
	require.NoError(t, decodeInto(t, `{"quantity":0,"coupon":"X"}`, &payload, false))
	require.Equal(t, 0, payload.Quantity)
}

func TestDecodeRejectsEmptyAndOversizedBodies(t *testing.T) {
	var payload addItem
	err := decodeInto(t, ``, &payload, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "request body is empty")

	huge := `{"quantity":1,"personDetails":[{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}]}`
	err = decodeInto(t, huge, &payload, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds")
}

func TestValidPhone(t *testing.T) {
	for _, ok := range []string{"9999999999", "+91 98765 43210", "080-2345-6789"} {
		require.True(t, ValidPhone(ok), ok)
	}
	for _, bad := range []string{"", "12345", "phone", "+91 98765 43210 12345 6", "--1234567"} {
		require.False(t, ValidPhone(bad), bad)
	}
}
