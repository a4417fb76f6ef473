package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/genroute/internal/server"
	"github.com/ogulcanaydogan/genroute/pkg/cache"
	"github.com/ogulcanaydogan/genroute/pkg/estimator"
	"github.com/ogulcanaydogan/genroute/pkg/ledger"
	"github.com/ogulcanaydogan/genroute/pkg/model"
	"github.com/ogulcanaydogan/genroute/pkg/orchestrator"
	"github.com/ogulcanaydogan/genroute/pkg/policy"
	"github.com/ogulcanaydogan/genroute/pkg/providers"
	"github.com/ogulcanaydogan/genroute/pkg/storage"
)

type echoProvider struct{ id providers.ID }

func (p echoProvider) ID() providers.ID { return p.id }

func (p echoProvider) Complete(_ context.Context, prompt, _ string) (string, error) {
	if strings.HasPrefix(prompt, "fail") {
		return "", &providers.Error{Provider: p.id.String(), StatusCode: 500, Err: errors.New("upstream exploded")}
	}
	if strings.HasPrefix(prompt, "panic") {
		panic("provider bug")
	}
	return "echo: " + prompt, nil
}

func setupServer(t *testing.T) *server.Server {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 4}))

	registry := providers.NewRegistry()
	require.NoError(t, registry.Register(echoProvider{id: providers.MustParseID("openai:gpt-4o-mini")}))
	require.NoError(t, registry.Register(echoProvider{id: providers.MustParseID("ollama:llama3.1")}))

	l := ledger.New(store, ledger.Config{DefaultDailyTokens: 1000, DefaultDailyCost: 5}, nil, logger)
	orch := orchestrator.New(orchestrator.Deps{
		Providers: registry,
		Estimator: estimator.New(nil),
		Cache:     cache.New(cache.NewMemory(), "genai", time.Hour, logger),
		Policy:    policy.NewSelector(l, 2.0, logger),
		Ledger:    l,
		UsageLog:  store,
	}, orchestrator.Config{}, logger)

	return server.NewServer(orch, l, store, logger)
}

func do(t *testing.T, srv *server.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	srv := setupServer(t)

	w := do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestServer_Generate(t *testing.T) {
	srv := setupServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/generate", model.GenerationRequest{
		Task: "summarize", Prompt: "hello there", OrganizationID: "org_1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res model.GenerationResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, "echo: hello there", res.Text)
	assert.Equal(t, "openai:gpt-4o-mini", res.Provider)
	assert.False(t, res.FromCache)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "openai:gpt-4o-mini", w.Header().Get("X-Genroute-Provider"))
	assert.Equal(t, "miss", w.Header().Get("X-Genroute-Cache"))
	assert.NotEmpty(t, w.Header().Get("X-Genroute-Cost"))

	w = do(t, srv, http.MethodPost, "/api/v1/generate", model.GenerationRequest{
		Task: "summarize", Prompt: "hello there", OrganizationID: "org_2",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hit", w.Header().Get("X-Genroute-Cache"))
}

func TestServer_Generate_BadRequests(t *testing.T) {
	srv := setupServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", `{"task":`},
		{"unknown field", `{"task":"summarize","prompt":"x","temperature":0.2}`},
		{"missing task", model.GenerationRequest{Prompt: "x"}},
		{"empty prompt", model.GenerationRequest{Task: "summarize"}},
		{"bad provider", model.GenerationRequest{Task: "summarize", Prompt: "x", Provider: "gpt-4o"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/api/v1/generate", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestServer_Generate_ProviderFailure(t *testing.T) {
	srv := setupServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/generate", model.GenerationRequest{Task: "summarize", Prompt: "fail please"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "exploded")
}

func TestServer_Generate_PanicRecovered(t *testing.T) {
	srv := setupServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/generate", model.GenerationRequest{Task: "summarize", Prompt: "panic now"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServer_Batch(t *testing.T) {
	srv := setupServer(t)

	reqs := make([]model.GenerationRequest, 10)
	for i := range reqs {
		reqs[i] = model.GenerationRequest{Task: "summarize", Prompt: fmt.Sprintf("item %d", i)}
	}
	reqs[3].Prompt = "fail 3"

	w := do(t, srv, http.MethodPost, "/api/v1/generate/batch", map[string]any{"requests": reqs})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Results []struct {
			Result *model.GenerationResult `json:"result"`
			Error  string                  `json:"error"`
			Status int                     `json:"status"`
		} `json:"results"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Results, 10)
	for i, r := range resp.Results {
		if i == 3 {
			assert.Nil(t, r.Result)
			assert.Equal(t, http.StatusBadGateway, r.Status)
			continue
		}
		require.NotNil(t, r.Result, "item %d", i)
		assert.Equal(t, fmt.Sprintf("echo: item %d", i), r.Result.Text)
	}
}

func TestServer_Batch_Limits(t *testing.T) {
	srv := setupServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/generate/batch", map[string]any{"requests": []model.GenerationRequest{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	tooMany := make([]model.GenerationRequest, server.MaxBatchSize+1)
	w = do(t, srv, http.MethodPost, "/api/v1/generate/batch", map[string]any{"requests": tooMany})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_BudgetLifecycle(t *testing.T) {
	srv := setupServer(t)

	w := do(t, srv, http.MethodPut, "/api/v1/organizations/org_42/budget", map[string]any{
		"daily_token_limit": 2000, "daily_cost_limit": 3.5,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var b model.Budget
	require.NoError(t, json.NewDecoder(w.Body).Decode(&b))
	assert.Equal(t, int64(2000), b.DailyTokenLimit)
	assert.True(t, b.Active)

	w = do(t, srv, http.MethodPost, "/api/v1/generate", model.GenerationRequest{
		Task: "summarize", Prompt: strings.Repeat("p", 400), OrganizationID: "org_42",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/organizations/org_42/usage", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats model.UsageStats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, "org_42", stats.OrganizationID)
	assert.Equal(t, int64(2000), stats.TokensLimit)
	assert.Positive(t, stats.TokensUsed)

	w = do(t, srv, http.MethodDelete, "/api/v1/organizations/org_42/budget", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, srv, http.MethodDelete, "/api/v1/organizations/org_42/budget", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_SetBudget_Invalid(t *testing.T) {
	srv := setupServer(t)

	w := do(t, srv, http.MethodPut, "/api/v1/organizations/org_1/budget", map[string]any{
		"daily_token_limit": 0, "daily_cost_limit": 1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_UsageAndSummary(t *testing.T) {
	srv := setupServer(t)

	for _, prompt := range []string{"one", "two"} {
		w := do(t, srv, http.MethodPost, "/api/v1/generate", model.GenerationRequest{
			Task: "summarize", Prompt: prompt, OrganizationID: "org_7",
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := do(t, srv, http.MethodGet, "/api/v1/usage?org=org_7&provider=openai:gpt-4o-mini", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var records []model.UsageRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&records))
	assert.Len(t, records, 2)

	w = do(t, srv, http.MethodGet, "/api/v1/usage?org=nobody", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = do(t, srv, http.MethodGet, "/api/v1/summary?period=daily&org=org_7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary model.UsageSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
	assert.Equal(t, int64(2), summary.RecordCount)

	w = do(t, srv, http.MethodGet, "/api/v1/summary?period=yearly", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	srv := setupServer(t)
	w := do(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
