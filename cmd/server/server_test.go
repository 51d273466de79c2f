package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/db"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/estimate"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/migrations"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/observability"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/offline"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/seed"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/store"
)

func newTestServer(t *testing.T) *server {
	t.Helper()

	database, err := db.Open(":memory:")
	require.NoError(t, err, "open sqlite db")
	t.Cleanup(func() {
		_ = database.Close()
	})

	ctx := context.Background()
	require.NoError(t, migrations.Up(ctx, database), "migrate")
	_, err = seed.Run(ctx, database, seed.Config{})
	require.NoError(t, err, "seed")

	return &server{
		store:    store.New(database),
		metrics:  observability.NewMetrics(prometheus.NewRegistry()),
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		workers:  4,
		currency: "MXN",
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "decode response %q", rr.Body.String())
	return v
}

func requireStatus(t *testing.T, want int, rr *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, want, rr.Code, rr.Body.String())
}

func createProject(t *testing.T, h http.Handler, name string) store.Project {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/api/projects", `{"name":"`+name+`","client":"Constructora Sur"}`)
	requireStatus(t, http.StatusCreated, rr)
	return decode[store.Project](t, rr)
}

func TestEstimateQueryPreview(t *testing.T) {
	h := newTestServer(t).routes()

	rr := do(t, h, http.MethodGet, "/api/estimate?length=6&width=4&workers=2", "")
	requireStatus(t, http.StatusOK, rr)

	est := decode[estimate.Estimate](t, rr)
	assert.Equal(t, 8, est.Layout.Totals.Joists)
	assert.Equal(t, 2, est.Comparison.System.Workers, "workers from query")
}

func TestEstimateUsesConfiguredWorkersAndStoredPrices(t *testing.T) {
	srv := newTestServer(t)
	srv.workers = 6
	h := srv.routes()

	requireStatus(t, http.StatusOK, do(t, h, http.MethodPut, "/api/prices", `{"vault":20}`))

	rr := do(t, h, http.MethodPost, "/api/estimate", `{"length":6,"width":4}`)
	requireStatus(t, http.StatusOK, rr)
	est := decode[estimate.Estimate](t, rr)
	assert.Equal(t, 6, est.Comparison.System.Workers, "default workers")
	assert.InDelta(t, 36*20, est.Comparison.System.Costs.Vaults, 1e-9, "vault cost from stored prices")
}

func TestEstimateRejectsInvalidInput(t *testing.T) {
	h := newTestServer(t).routes()

	cases := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"zero width", http.MethodPost, "/api/estimate", `{"length":6,"width":0}`},
		{"degenerate", http.MethodPost, "/api/layout", `{"length":0.2,"width":4}`},
		{"negative price", http.MethodPost, "/api/estimate", `{"length":6,"width":4,"prices":{"cement":-1}}`},
		{"bad query", http.MethodGet, "/api/estimate?length=abc&width=4", ""},
		{"empty body", http.MethodPost, "/api/estimate", ""},
		{"hairline vault", http.MethodPost, "/api/estimate", `{"length":6,"width":4,"options":{"vault_length":1e-12}}`},
		{"hairline spacing", http.MethodPost, "/api/layout", `{"length":6,"width":4,"options":{"axis_spacing":1e-9}}`},
		{"oversized slab", http.MethodPost, "/api/estimate", `{"length":1000000,"width":4}`},
		{"oversized wall", http.MethodPost, "/api/wall", `{"length":1000000,"height":2.4}`},
	}

	for _, tc := range cases {
		rr := do(t, h, tc.method, tc.path, tc.body)
		require.Equal(t, http.StatusBadRequest, rr.Code, "%s: %s", tc.name, rr.Body.String())
		assert.NotEmpty(t, decode[map[string]string](t, rr)["error"], tc.name)
	}
}

func TestParseEstimateQueryMessages(t *testing.T) {
	cases := map[string]string{
		"length=&width=4":                     "length debe ser numérico",
		"length=-1&width=4":                   "length debe ser mayor a 0",
		"length=6&width=4&margin_percent=150": "margin_percent debe estar entre 0 y 100",
		"length=6&width=4&daily_wage=-5":      "daily_wage debe ser mayor o igual a 0",
		"length=6&width=4&depth=30":           "depth debe ser 15, 20 o 25",
	}
	for raw, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/estimate?"+raw, nil)
		_, err := parseEstimateQuery(req.URL.Query())
		assert.EqualError(t, err, want, "query %q", raw)
	}
}

type layoutView struct {
	Depth int `json:"depth"`
	Rows  []struct {
		Available float64 `json:"available"`
	} `json:"rows"`
}

func TestLayoutAndWallEndpoints(t *testing.T) {
	h := newTestServer(t).routes()

	rr := do(t, h, http.MethodGet, "/api/layout?length=6&width=4&depth=25", "")
	requireStatus(t, http.StatusOK, rr)
	res := decode[layoutView](t, rr)
	assert.Equal(t, 25, res.Depth)
	assert.Len(t, res.Rows, 9)

	rr = do(t, h, http.MethodPost, "/api/wall", `{"length":5,"height":2.4}`)
	requireStatus(t, http.StatusOK, rr)
	wall := decode[map[string]any](t, rr)
	assert.EqualValues(t, 5, wall["columns"], "panel columns")
}

func TestProjectCalculationLifecycle(t *testing.T) {
	h := newTestServer(t).routes()
	p := createProject(t, h, "Casa Norte")

	rr := do(t, h, http.MethodPost, "/api/projects/"+p.ID+"/calculations",
		`{"length":6,"width":4,"prices":{"vault":19,"joist_15":95},"budget":{"margin_percent":10}}`)
	requireStatus(t, http.StatusCreated, rr)
	calc := decode[store.Calculation](t, rr)
	assert.Equal(t, p.ID, calc.ProjectID)
	assert.Equal(t, 36, calc.Estimate.Layout.Totals.VaultPieces)

	rr = do(t, h, http.MethodGet, "/api/projects/"+p.ID+"/calculations", "")
	list := decode[[]store.CalculationSummary](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, calc.ID, list[0].ID)

	rr = do(t, h, http.MethodGet, "/api/calculations/"+calc.ID, "")
	got := decode[store.Calculation](t, rr)
	assert.Equal(t, calc.Estimate.Budget.Totals.Total, got.Estimate.Budget.Totals.Total, "snapshot total")

	rr = do(t, h, http.MethodGet, "/api/calculations/"+calc.ID+"/xlsx", "")
	requireStatus(t, http.StatusOK, rr)
	assert.Contains(t, rr.Header().Get("Content-Type"), "spreadsheetml")

	requireStatus(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/projects/"+p.ID, ""))
	rr = do(t, h, http.MethodGet, "/api/calculations/"+calc.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code, "calculations go with the project")
}

func TestHandleCalculationTextReturnsPlainText(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	p, err := srv.store.CreateProject(ctx, store.Project{Name: "Bodega", Client: "Ing. Ruiz"})
	require.NoError(t, err)
	est, err := estimate.Run(estimate.Request{Length: 6, Width: 4})
	require.NoError(t, err)
	calc, err := srv.store.SaveCalculation(ctx, p.ID, est)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/calculations/"+calc.ID+"/text", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", calc.ID)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rr := httptest.NewRecorder()
	srv.handleCalculationText(rr, req)

	requireStatus(t, http.StatusOK, rr)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain"), rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	for _, want := range []string{"Bodega", "Cliente: Ing. Ruiz", "Total: 0.00 MXN", "Supuestos:"} {
		assert.Contains(t, body, want)
	}
}

func TestProjectValidationAndNotFound(t *testing.T) {
	h := newTestServer(t).routes()

	rr := do(t, h, http.MethodPost, "/api/projects", `{"name":"   "}`)
	requireStatus(t, http.StatusBadRequest, rr)
	assert.Contains(t, decode[map[string]string](t, rr)["error"], "name es requerido")

	for _, path := range []string{"/api/projects/nope", "/api/projects/nope/calculations", "/api/calculations/nope/text"} {
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, path, "").Code, path)
	}
}

func TestSyncIngestionIsIdempotent(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	post := func(kind, key, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/sync/"+kind, strings.NewReader(body))
		req.Header.Set(offline.IdempotencyHeader, key)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	project := `{"id":"p-1","name":"Obra offline","created_at":"2026-10-01T10:00:00Z","updated_at":"2026-10-01T10:00:00Z"}`
	requireStatus(t, http.StatusCreated, post("projects", "p-1", project))
	requireStatus(t, http.StatusOK, post("projects", "p-1", project))

	est, err := estimate.Run(estimate.Request{Length: 5, Width: 3})
	require.NoError(t, err)
	calc, err := json.Marshal(store.Calculation{ProjectID: "p-1", Estimate: est})
	require.NoError(t, err)

	requireStatus(t, http.StatusCreated, post("calculations", "c-1", string(calc)))
	requireStatus(t, http.StatusOK, post("calculations", "c-1", string(calc)))
	_, err = srv.store.GetCalculation(context.Background(), "c-1")
	require.NoError(t, err, "calculation stored under the idempotency key")

	orphan, err := json.Marshal(store.Calculation{ID: "c-2", ProjectID: "missing", Estimate: est})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, post("calculations", "c-2", string(orphan)).Code, "unknown project")

	requireStatus(t, http.StatusCreated, post("logs", "l-1", `{"project_id":"p-1","message":"Colado terminado"}`))
	assert.Equal(t, http.StatusNotFound, post("widgets", "w-1", `{}`).Code, "unknown kind")
}

type nopSender struct{}

func (nopSender) Send(context.Context, offline.Item) error { return nil }

func TestSaveQueuesCalculationForForwarding(t *testing.T) {
	srv := newTestServer(t)
	srv.outbox = offline.New(srv.store.DB(), nopSender{}, offline.Options{StartOnline: true})
	h := srv.routes()
	p := createProject(t, h, "Nave industrial")

	rr := do(t, h, http.MethodPost, "/api/projects/"+p.ID+"/calculations", `{"length":8,"width":5}`)
	requireStatus(t, http.StatusCreated, rr)
	calc := decode[store.Calculation](t, rr)

	pending, err := srv.outbox.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, calc.ID, pending[0].ID)
	assert.Equal(t, offline.KindCalculation, pending[0].Kind)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t).routes()

	requireStatus(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", ""))
	do(t, h, http.MethodGet, "/api/estimate?length=6&width=4", "")

	rr := do(t, h, http.MethodGet, "/metrics", "")
	assert.Contains(t, rr.Body.String(), `estimates_total{source="preview"} 1`)
}
