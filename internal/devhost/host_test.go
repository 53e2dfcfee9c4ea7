package devhost

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/webbridge/internal/bridge"
	"github.com/danmuck/webbridge/internal/protocol"
	"github.com/danmuck/webbridge/internal/testutil/testlog"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBridge struct {
	mu       sync.Mutex
	requests []bridge.Request
	messages []string
}

func (b *fakeBridge) Forward(_ context.Context, req bridge.Request, w bridge.ResponseWriter) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()

	switch {
	case strings.HasPrefix(req.URL, "bldr:///index.html"):
		w.Start(bridge.ResponseStart{Status: http.StatusOK, Mime: "text/html", Headers: map[string]string{"X-A": "1", "Content-Length": "13"}})
		w.Write([]byte("<html></html>"))
		w.Finish()
	case strings.HasPrefix(req.URL, "bldr:///api"):
		w.Start(bridge.ResponseStart{Status: http.StatusCreated, Mime: "application/json"})
		w.Write(req.Body)
		w.Finish()
	default:
		w.Start(bridge.ResponseStart{Status: http.StatusBadGateway, Mime: bridge.ErrorMime})
		w.Finish()
	}
}

func (b *fakeBridge) HandleMessage(msg string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
	return strings.HasPrefix(msg, bridge.EvalMessagePrefix)
}

func (b *fakeBridge) lastRequest() bridge.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1]
}

func (b *fakeBridge) received() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.messages...)
}

func newTestHost(t *testing.T, cfg Config) (*httptest.Server, *fakeBridge, *Hub) {
	t.Helper()
	b := &fakeBridge{}
	hub := NewHub(zerolog.Nop())
	h := New(cfg, b, hub, zerolog.Nop())
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)
	return srv, b, hub
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func TestStartURL(t *testing.T) {
	testlog.Start(t)
	assert.Equal(t, "bldr:///index.html", StartURL(""))
	assert.Equal(t, "bldr:///index.html?webDocumentId=doc+1", StartURL("doc 1"))
	assert.Equal(t, "bldr:///a?b=c", SchemeURL("/a?b=c"))
}

func TestRootRedirectsToStartURL(t *testing.T) {
	testlog.Start(t)
	srv, _, _ := newTestHost(t, Config{StartURL: StartURL("w1")})

	resp, err := noRedirect().Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/index.html?webDocumentId=w1", resp.Header.Get("Location"))
}

func TestForwardInjectsClientIntoHTML(t *testing.T) {
	testlog.Start(t)
	srv, b, _ := newTestHost(t, Config{InjectClient: true})

	resp, err := http.Get(srv.URL + "/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
	assert.Equal(t, "1", resp.Header.Get("X-A"))
	assert.Equal(t, "<html></html>"+clientScriptTag, string(body))
	assert.Equal(t, "bldr:///index.html", b.lastRequest().URL)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestForwardPassesBodyAndHeaders(t *testing.T) {
	testlog.Start(t)
	srv, b, _ := newTestHost(t, Config{})

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/items?x=1", strings.NewReader(`{"n":1}`))
	require.NoError(t, err)
	req.Header.Set("X-Token", "abc")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, `{"n":1}`, string(body))
	got := b.lastRequest()
	assert.Equal(t, "POST", got.Method)
	assert.Equal(t, "bldr:///api/items?x=1", got.URL)
	assert.Equal(t, "abc", got.Headers["X-Token"])
}

func TestForwardRejectsOversizeBody(t *testing.T) {
	testlog.Start(t)
	srv, _, _ := newTestHost(t, Config{MaxBodyBytes: 4})

	resp, err := http.Post(srv.URL+"/api", "text/plain", strings.NewReader("too large"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestExternalLinksDeny(t *testing.T) {
	testlog.Start(t)
	srv, b, _ := newTestHost(t, Config{Init: protocol.HostInit{ExternalLinks: protocol.ExternalLinksDeny}})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/index.html", nil)
	require.NoError(t, err)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, b.requests)

	resp, err = http.Get(srv.URL + "/index.html")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDebugEndpointFollowsDevTools(t *testing.T) {
	testlog.Start(t)
	srv, _, _ := newTestHost(t, Config{})
	resp, err := http.Get(srv.URL + "/__bridge/debug")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode, "without dev tools the path is forwarded")

	srv, _, _ = newTestHost(t, Config{Init: protocol.HostInit{DevTools: true}})
	resp, err = http.Get(srv.URL + "/__bridge/debug")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"dev_tools":true`)
}

func TestHealthMetricsAndClientScript(t *testing.T) {
	testlog.Start(t)
	srv, _, _ := newTestHost(t, Config{})
	for _, path := range []string{"/__bridge/health", "/metrics", "/__bridge/client.js"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestAdminTokenGuardsMetrics(t *testing.T) {
	testlog.Start(t)
	srv, _, _ := newTestHost(t, Config{AdminToken: "tok"})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/metrics", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/__bridge/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health stays open")
}

func TestHubWithoutPage(t *testing.T) {
	testlog.Start(t)
	hub := NewHub(zerolog.Nop())
	require.ErrorIs(t, hub.Execute("1"), ErrNoPage)
}

func TestHubExecuteFailsWhenPagesAreBusy(t *testing.T) {
	testlog.Start(t)
	hub := NewHub(zerolog.Nop())
	p := hub.subscribe()
	defer hub.unsubscribe(p)

	for i := 0; i < pageSendBuffer; i++ {
		require.NoError(t, hub.Execute("1"))
	}
	require.ErrorIs(t, hub.Execute("1"), ErrPageBusy)

	<-p.send
	require.NoError(t, hub.Execute("2"), "a drained page accepts code again")
}

func TestHubRoundTrip(t *testing.T) {
	testlog.Start(t)
	srv, b, hub := newTestHost(t, Config{})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/__bridge/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Pages() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Execute("document.title"))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "document.title", string(data))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("__bldr_eval:e0:r:Bridge")))
	require.Eventually(t, func() bool { return len(b.received()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"__bldr_eval:e0:r:Bridge"}, b.received())

	conn.Close()
	require.Eventually(t, func() bool { return hub.Pages() == 0 }, 2*time.Second, 10*time.Millisecond)
}
