package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/config"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/db"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/layout"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/migrations"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/offline"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/pricing"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/store"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		DBPath:         filepath.Join(t.TempDir(), "campo.db"),
		DefaultWorkers: 4,
		Currency:       "MXN",
		SyncKafkaTopic: "estructura.sync",
	}
}

func execute(t *testing.T, cfg config.Config, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(cfg)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPlanPrintsSummary(t *testing.T) {
	out, err := execute(t, testConfig(t), "plan", "--length", "6", "--width", "4")
	require.NoError(t, err)

	assert.Contains(t, out, "depth 15 cm")
	assert.Contains(t, out, "joists: 8 at")
	assert.Contains(t, out, "vault rows: 9, pieces: 27 full + 9 adjustment")
}

func TestPlanJSONHonoursDepth(t *testing.T) {
	out, err := execute(t, testConfig(t), "plan", "-l", "6", "-w", "4", "--depth", "20", "--json")
	require.NoError(t, err)

	var res layout.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, layout.Depth20, res.Depth)
	assert.Len(t, res.Joists, 8)
}

func TestRejectsBadInput(t *testing.T) {
	cfg := testConfig(t)

	_, err := execute(t, cfg, "plan", "--length", "6", "--width", "4", "--depth", "30")
	assert.ErrorContains(t, err, "depth must be 15, 20 or 25")

	_, err = execute(t, cfg, "plan", "--length", "6", "--width", "0")
	assert.ErrorIs(t, err, layout.ErrInvalidDimensions)

	_, err = execute(t, cfg, "plan", "--length", "6")
	assert.Error(t, err, "width is required")
}

func TestCompareUsesPriceFile(t *testing.T) {
	cfg := testConfig(t)
	prices := filepath.Join(t.TempDir(), "precios.yaml")
	require.NoError(t, os.WriteFile(prices, []byte("cement: 230\nsand: 400\ngravel: 450\njoist_15: 95\nvault: 19\nmesh: 30\n"), 0o600))

	out, err := execute(t, cfg, "compare", "--length", "6", "--width", "4", "--prices", prices)
	require.NoError(t, err)
	assert.Contains(t, out, "traditional")
	assert.Contains(t, out, "concrete")
	assert.Contains(t, out, "30.0%")
}

func storePrices(t *testing.T, path string, prices pricing.PriceTable) {
	t.Helper()
	ctx := context.Background()
	database, err := db.Open(path)
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, migrations.Up(ctx, database))
	require.NoError(t, store.New(database).SavePrices(ctx, prices))
}

func TestBudgetUsesStoredPrices(t *testing.T) {
	cfg := testConfig(t)
	storePrices(t, cfg.DBPath, pricing.PriceTable{Cement: 230, Sand: 400, Gravel: 450, Vault: 20})

	out, err := execute(t, cfg, "budget", "--length", "6", "--width", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "- Bovedilla: 36.00 pza x 20.00 = 720.00 MXN")
	assert.NotContains(t, out, "Total: 0.00 MXN")

	prices := filepath.Join(t.TempDir(), "precios.yaml")
	require.NoError(t, os.WriteFile(prices, []byte("vault: 25\n"), 0o600))
	out, err = execute(t, cfg, "budget", "--length", "6", "--width", "4", "--prices", prices)
	require.NoError(t, err)
	assert.Contains(t, out, "- Bovedilla: 36.00 pza x 25.00 = 900.00 MXN", "price file takes precedence")
}

func TestSaveSnapshotsStoredPrices(t *testing.T) {
	cfg := testConfig(t)
	storePrices(t, cfg.DBPath, pricing.PriceTable{Vault: 20, Joist15: 95})

	_, err := execute(t, cfg, "save", "--length", "6", "--width", "4", "--project", "Obra Sur")
	require.NoError(t, err)

	database, err := db.Open(cfg.DBPath)
	require.NoError(t, err)
	defer database.Close()
	st := store.New(database)

	projects, err := st.ListProjects(context.Background(), "Obra Sur")
	require.NoError(t, err)
	require.Len(t, projects, 1)
	calcs, err := st.ListCalculations(context.Background(), projects[0].ID)
	require.NoError(t, err)
	require.Len(t, calcs, 1)

	calc, err := st.GetCalculation(context.Background(), calcs[0].ID)
	require.NoError(t, err)
	assert.InDelta(t, 720, calc.Estimate.Comparison.System.Costs.Vaults, 1e-9)
}

func TestExportTextAndXLSX(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, cfg, "export", "--length", "6", "--width", "4", "--project", "Casa Norte")
	require.NoError(t, err)
	assert.Contains(t, out, "Casa Norte")
	assert.Contains(t, out, "Total: 0.00 MXN")

	_, err = execute(t, cfg, "export", "--length", "6", "--width", "4", "--format", "xlsx")
	assert.ErrorContains(t, err, "needs --output")

	path := filepath.Join(t.TempDir(), "presupuesto.xlsx")
	_, err = execute(t, cfg, "export", "--length", "6", "--width", "4", "-f", "xlsx", "-o", path)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Presupuesto")
}

func TestSaveThenSyncReplaysInOrder(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, cfg, "save", "--length", "6", "--width", "4", "--project", "Obra Sur")
	require.NoError(t, err)
	assert.Contains(t, out, "(2 pending sync)")

	out, err = execute(t, cfg, "save", "--length", "5", "--width", "3", "--project", "obra sur")
	require.NoError(t, err)
	assert.Contains(t, out, `in project "Obra Sur" (3 pending sync)`)

	var (
		mu    sync.Mutex
		paths []string
		keys  []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			return
		}
		mu.Lock()
		paths = append(paths, r.URL.Path)
		keys = append(keys, r.Header.Get(offline.IdempotencyHeader))
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	out, err = execute(t, cfg, "sync", "--remote", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "sent 3, pending 0\n", out)
	assert.Equal(t, []string{"/api/sync/projects", "/api/sync/calculations", "/api/sync/calculations"}, paths)
	assert.NotContains(t, keys, "")

	out, err = execute(t, cfg, "sync", "--remote", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "sent 0, pending 0\n", out)
}

func TestSyncNeedsATarget(t *testing.T) {
	_, err := execute(t, testConfig(t), "sync")
	assert.ErrorContains(t, err, "set --remote or --brokers")
}

func TestSyncReportsUnreachableServer(t *testing.T) {
	cfg := testConfig(t)
	_, err := execute(t, cfg, "save", "--length", "6", "--width", "4", "--project", "Obra Sur")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err = execute(t, cfg, "sync", "--remote", srv.URL)
	assert.ErrorIs(t, err, offline.ErrOffline)
	assert.True(t, strings.Contains(err.Error(), "502"))
}
