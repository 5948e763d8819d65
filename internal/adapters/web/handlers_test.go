package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-ledger/internal/app"
	"retail-ledger/internal/core"
)

const testSecret = "test-secret"

// stubService embeds the interface so tests only implement what they call.
type stubService struct {
	app.ApplicationService
	createSale func(context.Context, app.CreateSaleRequest) (*app.SaleResult, error)
	cancelSale func(context.Context, app.CancelDocumentRequest) (*app.SaleResult, error)
	adjust     func(context.Context, app.AdjustStockRequest) (*core.StockMovement, error)
}

func (s *stubService) CreateSale(ctx context.Context, req app.CreateSaleRequest) (*app.SaleResult, error) {
	return s.createSale(ctx, req)
}

func (s *stubService) CancelSale(ctx context.Context, req app.CancelDocumentRequest) (*app.SaleResult, error) {
	return s.cancelSale(ctx, req)
}

func (s *stubService) AdjustStock(ctx context.Context, req app.AdjustStockRequest) (*core.StockMovement, error) {
	return s.adjust(ctx, req)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestHandler(svc app.ApplicationService) http.Handler {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewHandler(svc, stubPinger{}, log, "", testSecret)
}

func signToken(t *testing.T, secret string, tenantID, userID, branchID int, role string, ttl time.Duration) string {
	t.Helper()
	claims := &jwtClaims{
		TenantID: tenantID,
		UserID:   userID,
		BranchID: branchID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func doRequest(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	h := newTestHandler(&stubService{})
	rec := doRequest(h, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	log := logrus.New()
	log.SetOutput(io.Discard)
	down := NewHandler(&stubService{}, stubPinger{err: fmt.Errorf("refused")}, log, "", testSecret)
	rec = doRequest(down, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireAuth(t *testing.T) {
	h := newTestHandler(&stubService{})

	t.Run("missing token", func(t *testing.T) {
		rec := doRequest(h, http.MethodGet, "/api/sales/1", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "other-secret", 1, 1, 1, core.RoleCashier, time.Hour)
		rec := doRequest(h, http.MethodGet, "/api/sales/1", token, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired", func(t *testing.T) {
		token := signToken(t, testSecret, 1, 1, 1, core.RoleCashier, -time.Minute)
		rec := doRequest(h, http.MethodGet, "/api/sales/1", token, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing tenant", func(t *testing.T) {
		token := signToken(t, testSecret, 0, 1, 1, core.RoleCashier, time.Hour)
		rec := doRequest(h, http.MethodGet, "/api/sales/1", token, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestCreateSale_IdentityFromClaims(t *testing.T) {
	var got app.CreateSaleRequest
	svc := &stubService{
		createSale: func(_ context.Context, req app.CreateSaleRequest) (*app.SaleResult, error) {
			got = req
			return &app.SaleResult{Sale: &core.Sale{ID: 10, DocumentNumber: "VTA-2026-00000001"}}, nil
		},
	}
	h := newTestHandler(svc)
	token := signToken(t, testSecret, 7, 3, 2, core.RoleCashier, time.Hour)

	body := `{"customer_id": 5, "lines": [{"product_id": 1, "quantity": "2"}], "payments": [{"method": "efectivo", "amount": 200}]}`
	rec := doRequest(h, http.MethodPost, "/api/sales", token, body)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 7, got.TenantID)
	assert.Equal(t, 3, got.UserID)
	assert.Equal(t, 2, got.BranchID, "branch falls back to the claim")
	assert.Equal(t, 5, got.CustomerID)
	require.Len(t, got.Payments, 1)
	assert.True(t, got.Payments[0].Amount.Equal(decimal.NewFromInt(200)))

	var res app.SaleResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "VTA-2026-00000001", res.Sale.DocumentNumber)
}

func TestCreateSale_BodyCannotOverrideTenant(t *testing.T) {
	var got app.CreateSaleRequest
	svc := &stubService{
		createSale: func(_ context.Context, req app.CreateSaleRequest) (*app.SaleResult, error) {
			got = req
			return &app.SaleResult{Sale: &core.Sale{ID: 1}}, nil
		},
	}
	h := newTestHandler(svc)
	token := signToken(t, testSecret, 7, 3, 2, core.RoleCashier, time.Hour)

	body := `{"TenantID": 99, "tenant_id": 99, "branch_id": 4, "customer_id": 5, "lines": [], "payments": []}`
	rec := doRequest(h, http.MethodPost, "/api/sales", token, body)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 7, got.TenantID)
	assert.Equal(t, 4, got.BranchID, "explicit branch wins over the claim")
}

func TestCreateSale_InsufficientStockMapsTo409(t *testing.T) {
	svc := &stubService{
		createSale: func(context.Context, app.CreateSaleRequest) (*app.SaleResult, error) {
			return nil, fmt.Errorf("failed to create sale: %w", &core.InsufficientStockError{
				ProductID: 1, ProductCode: "P-1", BranchID: 2,
				Available: decimal.NewFromInt(1), Requested: decimal.NewFromInt(3),
			})
		},
	}
	h := newTestHandler(svc)
	token := signToken(t, testSecret, 1, 1, 2, core.RoleCashier, time.Hour)

	rec := doRequest(h, http.MethodPost, "/api/sales", token, `{"customer_id": 1}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Code)
	assert.Contains(t, resp.Error, "P-1")
	assert.NotEmpty(t, resp.RequestID)
}

func TestCreateSale_ValidationFields(t *testing.T) {
	svc := &stubService{
		createSale: func(context.Context, app.CreateSaleRequest) (*app.SaleResult, error) {
			return nil, &app.ValidationError{Fields: map[string]string{"payments": "required"}}
		},
	}
	h := newTestHandler(svc)
	token := signToken(t, testSecret, 1, 1, 2, core.RoleCashier, time.Hour)

	rec := doRequest(h, http.MethodPost, "/api/sales", token, `{"customer_id": 1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, "required", resp.Fields["payments"])
}

func TestCreateSale_InternalErrorHidden(t *testing.T) {
	svc := &stubService{
		createSale: func(context.Context, app.CreateSaleRequest) (*app.SaleResult, error) {
			return nil, fmt.Errorf("dial tcp 10.0.0.1:5432: connection refused")
		},
	}
	h := newTestHandler(svc)
	token := signToken(t, testSecret, 1, 1, 2, core.RoleCashier, time.Hour)

	rec := doRequest(h, http.MethodPost, "/api/sales", token, `{}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "internal server error", resp.Error)
}

func TestCancelSale_EmptyBody(t *testing.T) {
	var got app.CancelDocumentRequest
	svc := &stubService{
		cancelSale: func(_ context.Context, req app.CancelDocumentRequest) (*app.SaleResult, error) {
			got = req
			return &app.SaleResult{Sale: &core.Sale{ID: req.DocumentID, Status: core.DocumentStatusVoid}}, nil
		},
	}
	h := newTestHandler(svc)
	token := signToken(t, testSecret, 1, 4, 2, core.RoleCashier, time.Hour)

	rec := doRequest(h, http.MethodPost, "/api/sales/12/cancel", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12, got.DocumentID)
	assert.Equal(t, 4, got.UserID)
}

func TestInvalidPathID(t *testing.T) {
	h := newTestHandler(&stubService{})
	token := signToken(t, testSecret, 1, 1, 1, core.RoleCashier, time.Hour)

	rec := doRequest(h, http.MethodGet, "/api/sales/abc", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidQueryParam(t *testing.T) {
	h := newTestHandler(&stubService{})
	token := signToken(t, testSecret, 1, 1, 1, core.RoleCashier, time.Hour)

	rec := doRequest(h, http.MethodGet, "/api/sales?from=yesterday", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", decodeError(t, rec).Code)
}

func TestAdjustStock_RequiresManager(t *testing.T) {
	called := false
	svc := &stubService{
		adjust: func(context.Context, app.AdjustStockRequest) (*core.StockMovement, error) {
			called = true
			return &core.StockMovement{ID: 1}, nil
		},
	}
	h := newTestHandler(svc)
	body := `{"product_id": 1, "quantity": "-2", "reason": "breakage"}`

	cashier := signToken(t, testSecret, 1, 1, 1, core.RoleCashier, time.Hour)
	rec := doRequest(h, http.MethodPost, "/api/stock/adjustments", cashier, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)

	manager := signToken(t, testSecret, 1, 1, 1, core.RoleManager, time.Hour)
	rec = doRequest(h, http.MethodPost, "/api/stock/adjustments", manager, body)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, called)
}

func TestQueryParams_DateRange(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?from=2026-03-01&to=2026-03-31", nil)
	q := &queryParams{r: req}
	period := q.dateRange()
	require.NoError(t, q.err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), period.From)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), period.To)
}
