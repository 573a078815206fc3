package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	billingdomain "github.com/docuflow/docuflow/internal/billing/domain"
	"github.com/docuflow/docuflow/internal/config"
	"github.com/docuflow/docuflow/internal/plan"
	quotadomain "github.com/docuflow/docuflow/internal/quota/domain"
)

type stubQuota struct {
	assertErr error
	recordErr error

	recorded int64
}

func (s *stubQuota) AssertCanProcess(ctx context.Context, orgID snowflake.ID, count int64) error {
	return s.assertErr
}

func (s *stubQuota) RecordUsage(ctx context.Context, orgID snowflake.ID, count int64) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.recorded += count
	return nil
}

type stubBilling struct {
	billingdomain.Service

	checkoutResult *billingdomain.CheckoutResult
	checkoutErr    error
	upgradeResult  *billingdomain.UpgradeResult
	upgradeErr     error
	summary        *billingdomain.Summary
	summaryErr     error
	downgrade      *billingdomain.ScheduledDowngrade
	downgradeErr   error
}

func (s *stubBilling) Checkout(ctx context.Context, orgID snowflake.ID, target plan.ID) (*billingdomain.CheckoutResult, error) {
	return s.checkoutResult, s.checkoutErr
}

func (s *stubBilling) Upgrade(ctx context.Context, orgID snowflake.ID) (*billingdomain.UpgradeResult, error) {
	return s.upgradeResult, s.upgradeErr
}

func (s *stubBilling) ScheduleDowngrade(ctx context.Context, orgID snowflake.ID) error {
	return s.downgradeErr
}

func (s *stubBilling) ScheduledDowngrade(ctx context.Context, orgID snowflake.ID) (*billingdomain.ScheduledDowngrade, error) {
	return s.downgrade, nil
}

func (s *stubBilling) Summary(ctx context.Context, orgID snowflake.ID) (*billingdomain.Summary, error) {
	return s.summary, s.summaryErr
}

func (s *stubBilling) UpgradePreview(ctx context.Context, orgID snowflake.ID) (*billingdomain.PreviewResult, error) {
	return nil, nil
}

func newTestServer(t *testing.T, quotaSvc quotadomain.Service, billingSvc billingdomain.Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := NewEngine(zap.NewNop(), nil)
	NewServer(ServerParams{
		Gin:        engine,
		Cfg:        config.Config{},
		Log:        zap.NewNop(),
		QuotaSvc:   quotaSvc,
		BillingSvc: billingSvc,
		Catalog:    plan.NewCatalog(config.Config{}),
	})
	return engine
}

func doJSON(engine *gin.Engine, method, path, orgID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if orgID != "" {
		req.Header.Set("X-Org-ID", orgID)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestOrgContextRequired(t *testing.T) {
	engine := newTestServer(t, &stubQuota{}, &stubBilling{})

	w := doJSON(engine, http.MethodGet, "/v1/billing/summary", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "validation_error", decodeError(t, w).Type)

	w = doJSON(engine, http.MethodGet, "/v1/billing/summary", "not-a-snowflake", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssertUsageDenialMapsToPaymentRequired(t *testing.T) {
	quotaSvc := &stubQuota{assertErr: &quotadomain.QuotaError{
		Reason:  quotadomain.ReasonMonthlyLimitReached,
		Message: "You've reached your monthly limit of 500 documents.",
	}}
	engine := newTestServer(t, quotaSvc, &stubBilling{})

	w := doJSON(engine, http.MethodPost, "/v1/usage/assert", "1", map[string]any{"count": 1})
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	payload := decodeError(t, w)
	require.Equal(t, "quota_denied", payload.Type)
	require.Equal(t, "MONTHLY_LIMIT_REACHED", payload.Code)
	require.Contains(t, payload.Message, "monthly limit")
}

func TestRecordUsage(t *testing.T) {
	quotaSvc := &stubQuota{}
	engine := newTestServer(t, quotaSvc, &stubBilling{})

	w := doJSON(engine, http.MethodPost, "/v1/usage/record", "1", map[string]any{"count": 3})
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 3, quotaSvc.recorded)

	quotaSvc.recordErr = quotadomain.ErrInvalidCount
	w = doJSON(engine, http.MethodPost, "/v1/usage/record", "1", map[string]any{"count": -1})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutValidation(t *testing.T) {
	engine := newTestServer(t, &stubQuota{}, &stubBilling{
		checkoutResult: &billingdomain.CheckoutResult{URL: "https://checkout.example/cs_1"},
	})

	w := doJSON(engine, http.MethodPost, "/v1/billing/checkout", "1", map[string]any{"plan": "platinum"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(engine, http.MethodPost, "/v1/billing/checkout", "1", map[string]any{"plan": "pro"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "cs_1")
}

func TestUpgradeConflictMapsTo409(t *testing.T) {
	engine := newTestServer(t, &stubQuota{}, &stubBilling{
		upgradeErr: billingdomain.ErrAlreadyOnPlan,
	})

	w := doJSON(engine, http.MethodPost, "/v1/billing/upgrade", "1", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "already_on_plan", decodeError(t, w).Code)
}

func TestProviderErrorMapsToBadGateway(t *testing.T) {
	engine := newTestServer(t, &stubQuota{}, &stubBilling{
		upgradeErr: &billingdomain.ProviderError{Op: "upgrade", Err: context.DeadlineExceeded},
	})

	w := doJSON(engine, http.MethodPost, "/v1/billing/upgrade", "1", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Equal(t, "provider_error", decodeError(t, w).Type)
}

func TestSummaryRendersProjection(t *testing.T) {
	engine := newTestServer(t, &stubQuota{}, &stubBilling{
		summary: &billingdomain.Summary{
			Plan:                 plan.Pro,
			Status:               "active",
			MonthlyDocumentLimit: 500,
			DocumentsUsed:        42,
		},
	})

	w := doJSON(engine, http.MethodGet, "/v1/billing/summary", "1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data billingdomain.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, plan.Pro, resp.Data.Plan)
	require.EqualValues(t, 42, resp.Data.DocumentsUsed)
}

func TestUpgradePreviewAbsentIsOK(t *testing.T) {
	engine := newTestServer(t, &stubQuota{}, &stubBilling{})

	w := doJSON(engine, http.MethodGet, "/v1/billing/preview/upgrade", "1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"data": null}`, w.Body.String())
}

func TestHealthAndMetricsExposed(t *testing.T) {
	engine := newTestServer(t, &stubQuota{}, &stubBilling{})

	w := doJSON(engine, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(engine, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}
