package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hustled/internal/business"
	"hustled/internal/config"
	"hustled/internal/economy"
	"hustled/internal/kv"
	"hustled/internal/notify"
	"hustled/internal/roulette"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	accounts, err := kv.Open[economy.Account](ctx, kv.NewMemorySnapshot())
	require.NoError(t, err)
	businesses, err := kv.Open[business.Business](ctx, kv.NewMemorySnapshot())
	require.NoError(t, err)
	applications, err := kv.Open[business.Application](ctx, kv.NewMemorySnapshot())
	require.NoError(t, err)

	registry := business.NewRegistry(businesses, applications, accounts, notify.Func(
		func(context.Context, string, string) error { return nil },
	), nil)
	econ := economy.NewService(accounts, registry, nil)
	eng := roulette.NewEngine(accounts, nil, 2*time.Second, nil)

	cfg := config.APIConfig{
		AdminToken:   "let-me-in",
		SessionIdle:  time.Minute,
		LeaderboardN: 10,
	}
	server := New(cfg, nil, econ, registry, eng)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		ts.Close()
		eng.Wait()
	})
	return ts
}

func call(t *testing.T, ts *httptest.Server, method, path, actorID string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if actorID != "" {
		req.Header.Set("X-Actor-ID", actorID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestMissingActorHeaderRejected(t *testing.T) {
	ts := newTestServer(t)
	status, _ := call(t, ts, http.MethodGet, "/v1/balance", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestBalanceCreatesAccountLazily(t *testing.T) {
	ts := newTestServer(t)
	status, out := call(t, ts, http.MethodGet, "/v1/balance", "alice", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(economy.StarterBalance), out["balance"])
}

func TestWorkThenCooldown(t *testing.T) {
	ts := newTestServer(t)

	status, out := call(t, ts, http.MethodPost, "/v1/work", "alice", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, out["scenario"])

	status, out = call(t, ts, http.MethodPost, "/v1/work", "alice", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.NotEmpty(t, out["next_eligible"])
}

func TestRobSelfRejected(t *testing.T) {
	ts := newTestServer(t)
	status, _ := call(t, ts, http.MethodPost, "/v1/rob", "alice", map[string]any{"target_id": "alice"}, nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestAdminCreditRequiresToken(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]any{"actor_id": "alice", "amount": 500}

	status, _ := call(t, ts, http.MethodPost, "/v1/admin/credit", "op", body, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, out := call(t, ts, http.MethodPost, "/v1/admin/credit", "op", body,
		map[string]string{"X-Admin-Token": "let-me-in"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(economy.StarterBalance+500), out["balance"])
}

func TestRouletteBetLifecycle(t *testing.T) {
	ts := newTestServer(t)
	credit := map[string]string{"X-Admin-Token": "let-me-in"}
	_, _ = call(t, ts, http.MethodPost, "/v1/admin/credit", "op",
		map[string]any{"actor_id": "alice", "amount": 1000}, credit)

	status, _ := call(t, ts, http.MethodPost, "/v1/roulette", "alice",
		map[string]any{"color": "red", "amount": 300}, nil)
	require.Equal(t, http.StatusAccepted, status)

	status, _ = call(t, ts, http.MethodPost, "/v1/roulette", "alice",
		map[string]any{"color": "black", "amount": 300}, nil)
	require.Equal(t, http.StatusConflict, status)

	status, out := call(t, ts, http.MethodGet, "/v1/roulette", "alice", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, out["pending"])
}

func TestBusinessAndApplicationFlow(t *testing.T) {
	ts := newTestServer(t)
	credit := map[string]string{"X-Admin-Token": "let-me-in"}
	_, _ = call(t, ts, http.MethodPost, "/v1/admin/credit", "owner",
		map[string]any{"actor_id": "owner", "amount": 10000}, credit)

	status, out := call(t, ts, http.MethodPost, "/v1/businesses", "owner",
		map[string]any{"name": "Cafe", "description": "coffee"}, nil)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "Cafe", out["name"])

	// Creating a second one conflicts.
	status, _ = call(t, ts, http.MethodPost, "/v1/businesses", "owner",
		map[string]any{"name": "Again"}, nil)
	require.Equal(t, http.StatusConflict, status)

	// The applicant walks the three prompts over the session endpoints.
	status, step := call(t, ts, http.MethodPost, "/v1/businesses/Cafe/apply", "worker", nil, nil)
	require.Equal(t, http.StatusAccepted, status)
	sessionID, _ := step["session_id"].(string)
	require.NotEmpty(t, sessionID)
	require.NotEmpty(t, step["prompt"])

	for _, answer := range []string{"money", "none", "weekends"} {
		status, step = call(t, ts, http.MethodPost, "/v1/applications/sessions/"+sessionID+"/reply", "worker",
			map[string]any{"text": answer}, nil)
		require.Equal(t, http.StatusOK, status)
	}
	require.Equal(t, true, step["done"])
	result, _ := step["result"].(map[string]any)
	appID, _ := result["id"].(string)
	require.NotEmpty(t, appID)

	// Only the session owner may reply.
	status, _ = call(t, ts, http.MethodPost, "/v1/applications/sessions/"+sessionID+"/reply", "mallory",
		map[string]any{"text": "hi"}, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, apps := call(t, ts, http.MethodGet, "/v1/applications", "owner", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, apps["applications"], 1)

	status, approved := call(t, ts, http.MethodPost, "/v1/applications/"+appID+"/approve", "owner", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "approved", approved["status"])

	status, mine := call(t, ts, http.MethodGet, "/v1/businesses/mine", "owner", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(1), mine["employee_count"])

	status, _ = call(t, ts, http.MethodPost, "/v1/businesses/employees/worker/fire", "owner", nil, nil)
	require.Equal(t, http.StatusOK, status)
}
