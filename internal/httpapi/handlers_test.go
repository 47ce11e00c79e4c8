package httpapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"installments/internal/engine"
	"installments/internal/httpapi"
	"installments/internal/store/memory"
	"installments/pkg/config"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	eng := engine.New(store, nil, engine.Options{})
	h := httpapi.NewRouter(httpapi.Dependencies{
		Cfg:    config.Config{AppEnv: "dev"},
		Engine: eng,
		Store:  store,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Manager-ID", "mgr-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestPaymentLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/v1/contracts", map[string]any{
		"customerId":     "cust-1",
		"managerId":      "mgr-1",
		"currency":       "usd",
		"totalPrice":     "1300",
		"initialPayment": "100",
		"monthlyPayment": "100",
		"period":         12,
		"startDate":      "2025-03-10",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	contract := body["contract"].(map[string]any)
	contractID := contract["id"].(string)
	assert.Equal(t, "active", contract["status"])

	initial := body["initialPayment"].(map[string]any)
	initialID := initial["id"].(string)
	assert.Equal(t, "pending", initial["status"])

	resp, body = doJSON(t, srv, http.MethodPost, "/v1/payments/"+initialID+"/confirm", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "paid", body["payment"].(map[string]any)["status"])

	// Scheduled amount 100, 250 actually received at the cash desk.
	resp, body = doJSON(t, srv, http.MethodPost, "/v1/payments", map[string]any{
		"contractId":   contractID,
		"amount":       "100",
		"actualAmount": "250",
		"type":         "monthly",
		"targetMonth":  1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	monthlyID := body["payment"].(map[string]any)["id"].(string)

	resp, body = doJSON(t, srv, http.MethodPost, "/v1/payments/"+monthlyID+"/confirm", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["created"].([]any), 2)

	resp, body = doJSON(t, srv, http.MethodGet, "/v1/contracts/"+contractID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["payments"].([]any), 4)

	resp, body = doJSON(t, srv, http.MethodGet, "/v1/balances/mgr-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "350.00", body["balance"].(map[string]any)["dollar"])
}

func TestEditTermsOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	_, body := doJSON(t, srv, http.MethodPost, "/v1/contracts", map[string]any{
		"customerId":     "cust-1",
		"managerId":      "mgr-1",
		"currency":       "usd",
		"totalPrice":     "1200",
		"monthlyPayment": "100",
		"period":         12,
		"startDate":      "2025-03-10",
	})
	contractID := body["contract"].(map[string]any)["id"].(string)

	resp, body := doJSON(t, srv, http.MethodPatch, fmt.Sprintf("/v1/contracts/%s/terms", contractID), map[string]any{
		"monthlyPayment": "120",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "impact")

	// Over the ±50% limit.
	resp, body = doJSON(t, srv, http.MethodPatch, fmt.Sprintf("/v1/contracts/%s/terms", contractID), map[string]any{
		"monthlyPayment": "300",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, engine.CodeValidationFailed, body["error"].(map[string]any)["code"])
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, srv, http.MethodPost, "/v1/payments/missing/confirm", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, engine.CodePaymentNotFound, body["error"].(map[string]any)["code"])

	resp, body = doJSON(t, srv, http.MethodGet, "/v1/balances/nobody", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, engine.CodeBalanceNotFound, body["error"].(map[string]any)["code"])
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/balances/mgr-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthzIsPublic(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
