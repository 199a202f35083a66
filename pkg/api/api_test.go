package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flowstate/pkg/api"
	"github.com/dmitrymomot/flowstate/pkg/historystore"
	"github.com/dmitrymomot/flowstate/pkg/metrics"
	"github.com/dmitrymomot/flowstate/pkg/registry"
	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

func orderTable() *statemachine.Table {
	checkAmount := func(_ context.Context, _ statemachine.Snapshot, payload any) statemachine.State {
		p, ok := payload.(map[string]any)
		if !ok {
			return "created"
		}
		if amount, _ := p["amount"].(float64); amount >= 10 {
			p["note"] = "accepted"
			return "paid"
		}
		p["note"] = "too low"
		return "created"
	}
	return statemachine.NewTable().
		Add("created", "pay", statemachine.Computed(checkAmount)).
		Add("created", "cancel", statemachine.Literal("cancelled")).
		Add("paid", "ship", statemachine.Literal("shipped")).
		AddState("shipped").
		AddState("cancelled")
}

// brokenStore fails every write once broken is set.
type brokenStore struct {
	*historystore.Memory
	broken bool
}

func (s *brokenStore) Append(ctx context.Context, id string, entries ...statemachine.HistoryEntry) error {
	if s.broken {
		return errors.New("disk full")
	}
	return s.Memory.Append(ctx, id, entries...)
}

func newAPI(t *testing.T, store historystore.Store, opts ...api.Option) http.Handler {
	t.Helper()
	reg := registry.New(registry.StaticFactory(orderTable(), statemachine.WithTimestamps(false)), store)
	return api.New(reg, opts...)
}

func call(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestMachineLifecycle(t *testing.T) {
	t.Parallel()
	store := historystore.NewMemory()
	h := newAPI(t, store)

	rec, body := call(t, h, http.MethodPost, "/machines", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	name, _ := body["name"].(string)
	require.NotEmpty(t, name)
	assert.Equal(t, "created", body["state"])
	assert.NotEmpty(t, rec.Header().Get(api.RequestIDHeader))

	rec, body = call(t, h, http.MethodGet, "/machines/"+name, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"pay", "cancel"}, body["actions"])
	assert.NotContains(t, body, "previous")

	rec, body = call(t, h, http.MethodPost, "/machines/"+name+"/actions/pay", `{"amount": 5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "created", body["state"])
	assert.Equal(t, map[string]any{"amount": 5.0, "note": "too low"}, body["payload"])

	rec, body = call(t, h, http.MethodPost, "/machines/"+name+"/actions/pay", `{"amount": 12}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paid", body["state"])

	rec, body = call(t, h, http.MethodPost, "/machines/"+name+"/next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shipped", body["state"])

	rec, body = call(t, h, http.MethodGet, "/machines/"+name, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paid", body["previous"])
	assert.Equal(t, []any{}, body["actions"])

	rec, body = call(t, h, http.MethodGet, "/machines/"+name+"/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["history"], 4)

	stored, err := store.Load(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, statemachine.History{
		{Action: statemachine.InitAction, State: "created"},
		{Action: "pay", State: "created"},
		{Action: "pay", State: "paid"},
		{Action: "ship", State: "shipped"},
	}, stored)

	rec, body = call(t, h, http.MethodPost, "/machines/"+name+"/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "created", body["state"])

	rec, _ = call(t, h, http.MethodDelete, "/machines/"+name+"?purge=true", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	stored, err = store.Load(context.Background(), name)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestEngineErrors(t *testing.T) {
	t.Parallel()
	h := newAPI(t, historystore.NewMemory())

	tests := []struct {
		name      string
		setup     []string
		path      string
		code      string
		errorCode float64
	}{
		{"invalid action", nil, "/machines/m1/actions/ship", "invalid_action", 10},
		{"forked next", nil, "/machines/m2/next", "forked_next_action", 30},
		{"no next action", []string{"/machines/m3/actions/cancel"}, "/machines/m3/next", "no_next_action", 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for _, p := range tt.setup {
				rec, _ := call(t, h, http.MethodPost, p, "")
				require.Equal(t, http.StatusOK, rec.Code)
			}
			rec, body := call(t, h, http.MethodPost, tt.path, "")
			assert.Equal(t, http.StatusConflict, rec.Code)
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, tt.errorCode, body["error_code"])
			assert.NotEmpty(t, body["error"])
		})
	}

	t.Run("forked next lists actions", func(t *testing.T) {
		t.Parallel()
		_, body := call(t, h, http.MethodPost, "/machines/m4/next", "")
		assert.Equal(t, []any{"pay", "cancel"}, body["actions"])
	})
}

func TestRequestErrors(t *testing.T) {
	t.Parallel()
	h := newAPI(t, historystore.NewMemory(), api.WithMaxPayload(16))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"malformed payload", http.MethodPost, "/machines/a/actions/pay", `{"amount":`, http.StatusBadRequest, "invalid_payload"},
		{"payload too large", http.MethodPost, "/machines/a/actions/pay", `{"amount": 1234567890123}`, http.StatusRequestEntityTooLarge, "payload_too_large"},
		{"bad purge flag", http.MethodDelete, "/machines/a?purge=maybe", "", http.StatusBadRequest, "bad_request"},
		{"blank name", http.MethodGet, "/machines/%20", "", http.StatusBadRequest, "invalid_name"},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound, "not_found"},
		{"wrong method", http.MethodPut, "/machines/a", "", http.StatusMethodNotAllowed, "method_not_allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec, body := call(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestStoreFailureIsUnavailable(t *testing.T) {
	t.Parallel()
	store := &brokenStore{Memory: historystore.NewMemory()}
	h := newAPI(t, store)

	rec, _ := call(t, h, http.MethodGet, "/machines/m", "")
	require.Equal(t, http.StatusOK, rec.Code)

	store.broken = true
	rec, body := call(t, h, http.MethodPost, "/machines/m/actions/cancel", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "store_unavailable", body["code"])

	// The live instance was dropped, so the machine resumes from the store.
	store.broken = false
	_, body = call(t, h, http.MethodGet, "/machines/m", "")
	assert.Equal(t, "created", body["state"])
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	store := historystore.NewMemory()
	registryOpts := registry.WithMachineOptions(statemachine.WithObserver(collector.Observer()))
	r := registry.New(registry.StaticFactory(orderTable()), store, registryOpts)

	var ready bool
	h := api.New(r,
		api.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		api.WithReadinessCheck("store", func(context.Context) error {
			if !ready {
				return errors.New("warming up")
			}
			return nil
		}),
	)

	rec, body := call(t, h, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", body["status"])

	rec, body = call(t, h, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, map[string]any{"store": "warming up"}, body["checks"])

	ready = true
	rec, _ = call(t, h, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = call(t, h, http.MethodPost, "/machines/m/actions/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	h.ServeHTTP(mrec, req)
	assert.Equal(t, http.StatusOK, mrec.Code)
	assert.Contains(t, mrec.Body.String(), "flowstate_transitions_total")
}

func TestRequestIDPropagation(t *testing.T) {
	t.Parallel()
	h := newAPI(t, historystore.NewMemory())

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(api.RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(api.RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(api.RequestIDHeader, "not valid!")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	got := rec.Header().Get(api.RequestIDHeader)
	assert.NotEqual(t, "not valid!", got)
	assert.Len(t, got, 36)
}

func TestRequestIDExtractor(t *testing.T) {
	t.Parallel()
	extract := api.RequestIDExtractor()

	_, ok := extract(context.Background())
	assert.False(t, ok)

	var seen string
	probe := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = api.RequestID(r.Context())
		attr, ok := extract(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "request_id", attr.Key)
	})
	wrapped := api.RequestIDMiddleware(probe)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(api.RequestIDHeader, "req-1")
	wrapped.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "req-1", seen)
}
