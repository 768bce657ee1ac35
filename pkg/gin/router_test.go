package gin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tips "github.com/attentionrush/tips"
	"github.com/attentionrush/tips/pkg/metrics"
	signersevm "github.com/attentionrush/tips/signers/evm"
	"github.com/attentionrush/tips/test/mocks/wallet"
)

const (
	testFrom      = "0x1111111111111111111111111111111111111111"
	testAuthor    = "0x2222222222222222222222222222222222222222"
	testUniversal = "0x3333333333333333333333333333333333333333"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubFeed struct {
	casts []tips.ContentItem
	err   error
}

func (f stubFeed) FetchFeed(ctx context.Context) ([]tips.ContentItem, error) {
	return f.casts, f.err
}

type stubConnector struct {
	account signersevm.Account
	err     error
}

func (s stubConnector) Connect(ctx context.Context, domain string, interactive bool) (signersevm.Account, error) {
	return s.account, s.err
}

type testAPI struct {
	router    *gin.Engine
	deps      Deps
	submitter *wallet.Submitter
}

func newTestAPI(t *testing.T, mutate func(*Deps)) *testAPI {
	t.Helper()
	submitter := wallet.New()
	executor, err := tips.NewTransferExecutor(submitter, tips.TransferConfig{}, tips.WithRetryPolicy(0, time.Millisecond))
	require.NoError(t, err)

	config := tips.DefaultSessionConfig()
	config.BatchSize = 1
	config.EngagementInterval = time.Hour

	deps := Deps{
		Registry:      tips.NewRegistry(),
		Transferrer:   executor,
		SessionConfig: config,
		Hub:           NewHub(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	t.Cleanup(deps.Registry.CloseAll)
	return &testAPI{router: NewRouter(deps), deps: deps, submitter: submitter}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) createSession(t *testing.T) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/sessions", gin.H{"from": testFrom})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp createSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func testCast(hash string) tips.ContentItem {
	return tips.ContentItem{Hash: hash, Author: tips.Author{FID: 1, Verifications: []string{testAuthor}}}
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, nil)
	w := api.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestGetFeed(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		api := newTestAPI(t, func(d *Deps) { d.Feed = stubFeed{casts: []tips.ContentItem{testCast("0x01")}} })
		w := api.do(t, http.MethodGet, "/api/feed", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Casts []tips.ContentItem `json:"casts"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Casts, 1)
		assert.Equal(t, "0x01", body.Casts[0].Hash)
	})

	t.Run("upstream error", func(t *testing.T) {
		api := newTestAPI(t, func(d *Deps) { d.Feed = stubFeed{err: errors.New("Neynar API: HTTP 500 (Status: 500)")} })
		w := api.do(t, http.MethodGet, "/api/feed", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), "Neynar API")
	})

	t.Run("not configured", func(t *testing.T) {
		api := newTestAPI(t, nil)
		w := api.do(t, http.MethodGet, "/api/feed", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestCreateSession(t *testing.T) {
	t.Run("explicit payer", func(t *testing.T) {
		api := newTestAPI(t, nil)
		id := api.createSession(t)

		w := api.do(t, http.MethodGet, "/api/sessions/"+id, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var status tips.SessionStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, testFrom, status.From)
		assert.Equal(t, 1, api.deps.Registry.Len())
	})

	t.Run("wallet connect", func(t *testing.T) {
		api := newTestAPI(t, func(d *Deps) {
			d.Wallet = stubConnector{account: signersevm.Account{Universal: testUniversal, Sub: testFrom}}
		})
		w := api.do(t, http.MethodPost, "/api/sessions", gin.H{"interactive": true})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp createSessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, testFrom, resp.From)
		assert.Equal(t, testUniversal, resp.Universal)
	})

	t.Run("wallet not connected", func(t *testing.T) {
		api := newTestAPI(t, func(d *Deps) { d.Wallet = stubConnector{err: signersevm.ErrNotConnected} })
		w := api.do(t, http.MethodPost, "/api/sessions", gin.H{})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("no payer and no wallet", func(t *testing.T) {
		api := newTestAPI(t, nil)
		w := api.do(t, http.MethodPost, "/api/sessions", gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeleteSession(t *testing.T) {
	api := newTestAPI(t, nil)
	id := api.createSession(t)

	assert.Equal(t, http.StatusNoContent, api.do(t, http.MethodDelete, "/api/sessions/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/api/sessions/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodDelete, "/api/sessions/"+id, nil).Code)
}

func TestVisibilityPaysOnce(t *testing.T) {
	api := newTestAPI(t, nil)
	id := api.createSession(t)
	cast := testCast("0xabc")

	w := api.do(t, http.MethodPost, "/api/sessions/"+id+"/visibility", gin.H{"cast": cast, "intersecting": true, "ratio": 0.5})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"fired":false,"pending":0}`, w.Body.String())

	w = api.do(t, http.MethodPost, "/api/sessions/"+id+"/visibility", gin.H{"cast": cast, "intersecting": true, "ratio": 1.0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"fired":true`)

	session, err := api.deps.Registry.Get(id)
	require.NoError(t, err)
	session.Wait()
	assert.True(t, session.PaidSet().Contains("0xabc"))

	w = api.do(t, http.MethodPost, "/api/sessions/"+id+"/visibility", gin.H{"cast": cast, "intersecting": true, "ratio": 1.0})
	assert.Contains(t, w.Body.String(), `"fired":false`)
	assert.Equal(t, 1, api.submitter.Count())
}

func TestReleaseVisibility(t *testing.T) {
	api := newTestAPI(t, nil)
	id := api.createSession(t)

	api.do(t, http.MethodPost, "/api/sessions/"+id+"/visibility", gin.H{"cast": testCast("0xabc"), "intersecting": false, "ratio": 0})
	assert.Equal(t, http.StatusNoContent, api.do(t, http.MethodDelete, "/api/sessions/"+id+"/visibility/0xabc", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodDelete, "/api/sessions/"+id+"/visibility/0xabc", nil).Code)
}

func TestSetSelection(t *testing.T) {
	api := newTestAPI(t, nil)
	id := api.createSession(t)

	w := api.do(t, http.MethodPut, "/api/sessions/"+id+"/selection", gin.H{"cast": testCast("0xsel")})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"selected":"0xsel"`)
	assert.Eventually(t, func() bool { return api.submitter.Count() == 1 }, time.Second, 5*time.Millisecond)

	w = api.do(t, http.MethodPut, "/api/sessions/"+id+"/selection", gin.H{"cast": nil})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"selected"`)

	w = api.do(t, http.MethodPut, "/api/sessions/"+id+"/selection", gin.H{"cast": gin.H{"text": "no hash"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	api := newTestAPI(t, func(d *Deps) { d.RateLimiter = NewRateLimiter(0.001, 2) })

	assert.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/sessions", gin.H{"from": testFrom}).Code)
	assert.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/sessions", gin.H{"from": testFrom}).Code)
	assert.Equal(t, http.StatusTooManyRequests, api.do(t, http.MethodPost, "/api/sessions", gin.H{"from": testFrom}).Code)

	// reads are not limited
	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/healthz", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	api := newTestAPI(t, func(d *Deps) {
		d.Metrics = m
		d.Gatherer = reg
		m.InstrumentRegistry(d.Registry)
	})
	api.createSession(t)

	w := api.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "attentionrush_sessions_active 1")
}

func TestEventStream(t *testing.T) {
	api := newTestAPI(t, nil)
	id := api.createSession(t)

	server := httptest.NewServer(api.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/sessions/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return api.deps.Hub.Subscribers(id) == 1 }, time.Second, 5*time.Millisecond)

	w := api.do(t, http.MethodPost, "/api/sessions/"+id+"/visibility", gin.H{"cast": testCast("0xev"), "intersecting": true, "ratio": 1.0})
	require.Equal(t, http.StatusOK, w.Code)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	seen := map[string]bool{}
	for !seen[EventBatchSent] || !seen[EventQueued] {
		var event Event
		require.NoError(t, conn.ReadJSON(&event))
		assert.Equal(t, id, event.Session)
		assert.Equal(t, []string{"0xev"}, event.Casts)
		seen[event.Type] = true
	}

	// ending the session closes the stream
	require.Equal(t, http.StatusNoContent, api.do(t, http.MethodDelete, "/api/sessions/"+id, nil).Code)
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestEventStreamUnknownSession(t *testing.T) {
	api := newTestAPI(t, nil)
	w := api.do(t, http.MethodGet, "/api/sessions/missing/events", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
