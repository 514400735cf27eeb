package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"

	"frpanel/internal/config"
	"frpanel/internal/frpconf"
	"frpanel/internal/handlers"
	"frpanel/internal/middleware"
	"frpanel/internal/metrics"
	"frpanel/internal/service"
)

const webAndSSH = `serverAddr = "10.0.0.1"
serverPort = 7000

[[proxies]]
name = "web"
type = "tcp"
localIP = "127.0.0.1"
localPort = 80
remotePort = 8080

[[proxies]]
name = "ssh"
type = "tcp"
localIP = "127.0.0.1"
localPort = 22
remotePort = 6000
`

type testEnv struct {
	router *Router
	doc    string
	pm     *service.ProcessManager
}

func newTestEnv(t *testing.T, content string, proc config.ProcessConfig) *testEnv {
	t.Helper()

	doc := filepath.Join(t.TempDir(), "frpc.toml")
	if content != "" {
		if err := os.WriteFile(doc, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if proc.Command == "" {
		proc.Command = filepath.Join(filepath.Dir(doc), "frpc")
	}
	proc.Name = "frpc"
	proc.DocumentPath = doc
	if proc.StopTimeout == 0 {
		proc.StopTimeout = 5
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	cs := service.NewConfigService(frpconf.NewStore(doc), logger, m)
	pm := service.NewProcessManager(proc, service.NewLogBuffer(100), logger, m)
	t.Cleanup(func() { pm.Shutdown(context.Background()) })

	return &testEnv{router: NewRouter(cs, pm, logger, m), doc: doc, pm: pm}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type documentBody struct {
	Success bool `json:"success"`
	Data    struct {
		ServerInfo frpconf.ServerInfo   `json:"serverInfo"`
		Proxies    []frpconf.ProxyEntry `json:"proxies"`
	} `json:"data"`
	FilePath string `json:"filePath"`
}

func proxyNames(d documentBody) []string {
	out := make([]string, 0, len(d.Data.Proxies))
	for _, p := range d.Data.Proxies {
		out = append(out, p.Name())
	}
	return out
}

func TestRouter_GetProxies(t *testing.T) {
	env := newTestEnv(t, webAndSSH, config.ProcessConfig{})

	rec := env.do(t, http.MethodGet, "/api/proxies", "")
	assert.Equal(t, rec.Code, http.StatusOK)

	body := decode[documentBody](t, rec)
	assert.Equal(t, body.Success, true)
	assert.Equal(t, body.FilePath, env.doc)
	assert.Equal(t, body.Data.ServerInfo.ServerAddr, "10.0.0.1")
	assert.Equal(t, body.Data.ServerInfo.ServerPort, "7000")
	assert.Equal(t, body.Data.ServerInfo.AuthMethod, frpconf.AuthNone)
	assert.Equal(t, proxyNames(body), []string{"web", "ssh"})

	remotePort, _ := body.Data.Proxies[1].Get("remotePort")
	assert.Equal(t, remotePort, "6000")
}

func TestRouter_DeleteThenList(t *testing.T) {
	env := newTestEnv(t, webAndSSH, config.ProcessConfig{})

	rec := env.do(t, http.MethodDelete, "/api/proxies/0", "")
	assert.Equal(t, rec.Code, http.StatusOK)
	del := decode[handlers.DeleteResponse](t, rec)
	assert.Equal(t, del.Name, "web")

	body := decode[documentBody](t, env.do(t, http.MethodGet, "/api/proxies", ""))
	assert.Equal(t, proxyNames(body), []string{"ssh"})
}

func TestRouter_DeleteBadIndex(t *testing.T) {
	env := newTestEnv(t, webAndSSH, config.ProcessConfig{})

	for _, path := range []string{"/api/proxies/2", "/api/proxies/-1", "/api/proxies/abc"} {
		rec := env.do(t, http.MethodDelete, path, "")
		assert.Equal(t, rec.Code, http.StatusBadRequest)
		assert.Equal(t, decode[handlers.ErrorResponse](t, rec).Error.Code, "INVALID_INDEX")
	}

	data, err := os.ReadFile(env.doc)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, string(data), webAndSSH)
}

func TestRouter_AddProxy(t *testing.T) {
	env := newTestEnv(t, webAndSSH, config.ProcessConfig{})

	rec := env.do(t, http.MethodPost, "/api/proxies",
		`{"name":"rdp","type":"tcp","localIP":"127.0.0.1","localPort":3389,"remotePort":"7389"}`)
	assert.Equal(t, rec.Code, http.StatusOK)

	body := decode[documentBody](t, env.do(t, http.MethodGet, "/api/proxies", ""))
	assert.Equal(t, proxyNames(body), []string{"web", "ssh", "rdp"})

	data, err := os.ReadFile(env.doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), "name = \"rdp\"\ntype = \"tcp\"\nlocalIP = \"127.0.0.1\"\nlocalPort = 3389\nremotePort = 7389\n") {
		t.Fatalf("unexpected document:\n%s", data)
	}
}

func TestRouter_AddProxyValidation(t *testing.T) {
	env := newTestEnv(t, webAndSSH, config.ProcessConfig{})

	tests := []struct {
		name  string
		body  string
		code  string
		field string
	}{
		{"missing field", `{"name":"x","type":"tcp","localPort":1,"remotePort":2}`, "VALIDATION_ERROR", "localIP"},
		{"bad port", `{"name":"x","type":"tcp","localIP":"a","localPort":0,"remotePort":2}`, "VALIDATION_ERROR", "localPort"},
		{"duplicate", `{"name":"web","type":"tcp","localIP":"a","localPort":1,"remotePort":2}`, "VALIDATION_ERROR", "name"},
		{"not json", `{"name":`, "BAD_REQUEST", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/proxies", tt.body)
			assert.Equal(t, rec.Code, http.StatusBadRequest)
			resp := decode[handlers.ErrorResponse](t, rec)
			assert.Equal(t, resp.Success, false)
			assert.Equal(t, resp.Error.Code, tt.code)
			assert.Equal(t, resp.Error.Field, tt.field)
		})
	}
}

func TestRouter_ReplaceServerConfig(t *testing.T) {
	env := newTestEnv(t, webAndSSH, config.ProcessConfig{})

	rec := env.do(t, http.MethodPut, "/api/server-config",
		`{"serverAddr":"frp.example.com","serverPort":7001,"authMethod":"token","token":"s3cret"}`)
	assert.Equal(t, rec.Code, http.StatusOK)

	body := decode[documentBody](t, env.do(t, http.MethodGet, "/api/proxies", ""))
	assert.Equal(t, body.Data.ServerInfo, frpconf.ServerInfo{
		ServerAddr: "frp.example.com",
		ServerPort: "7001",
		AuthMethod: frpconf.AuthToken,
		Token:      "s3cret",
	})
	assert.Equal(t, proxyNames(body), []string{"web", "ssh"})

	rec = env.do(t, http.MethodPut, "/api/server-config", `{"serverAddr":"frp.example.com","serverPort":"x"}`)
	assert.Equal(t, rec.Code, http.StatusBadRequest)
	assert.Equal(t, decode[handlers.ErrorResponse](t, rec).Error.Field, "serverPort")
}

func TestRouter_MissingDocument(t *testing.T) {
	env := newTestEnv(t, "", config.ProcessConfig{})

	rec := env.do(t, http.MethodGet, "/api/proxies", "")
	assert.Equal(t, rec.Code, http.StatusNotFound)
	assert.Equal(t, decode[handlers.ErrorResponse](t, rec).Error.Code, "DOCUMENT_NOT_FOUND")

	rec = env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, rec.Code, http.StatusServiceUnavailable)
}

func TestRouter_StartWithoutBinary(t *testing.T) {
	env := newTestEnv(t, webAndSSH, config.ProcessConfig{})

	rec := env.do(t, http.MethodPost, "/api/client/start", "")
	assert.Equal(t, rec.Code, http.StatusNotFound)
	assert.Equal(t, decode[handlers.ErrorResponse](t, rec).Error.Code, "NOT_FOUND")
}

func TestRouter_StopWithoutClient(t *testing.T) {
	env := newTestEnv(t, webAndSSH, config.ProcessConfig{})

	rec := env.do(t, http.MethodPost, "/api/client/stop", "")
	assert.Equal(t, rec.Code, http.StatusOK)
	stop := decode[handlers.StopResponse](t, rec)
	assert.Equal(t, stop.Success, true)
	assert.Equal(t, stop.Stopped, false)

	rec = env.do(t, http.MethodPost, "/api/stop-frpc", "")
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, decode[handlers.LegacyStopResponse](t, rec).Success, false)
}

func TestRouter_LegacyStartWithoutBinary(t *testing.T) {
	env := newTestEnv(t, webAndSSH, config.ProcessConfig{})

	rec := env.do(t, http.MethodPost, "/api/connect-frps", "")
	assert.Equal(t, rec.Code, http.StatusNotFound)
	resp := decode[handlers.LegacyErrorResponse](t, rec)
	assert.Equal(t, resp.Success, false)
	if !strings.Contains(resp.Error, "executable not found") {
		t.Fatalf("error = %q", resp.Error)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, webAndSSH, config.ProcessConfig{})

	assert.Equal(t, env.do(t, http.MethodGet, "/health", "").Code, http.StatusOK)
	assert.Equal(t, env.do(t, http.MethodGet, "/ready", "").Code, http.StatusOK)
	env.do(t, http.MethodGet, "/api/proxies", "")

	rec := env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, rec.Code, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `frpanel_http_requests_total{code="200",method="GET",route="/api/proxies"}`) {
		t.Fatalf("request counter missing from:\n%s", rec.Body.String())
	}
}

func TestRouter_RequestID(t *testing.T) {
	env := newTestEnv(t, webAndSSH, config.ProcessConfig{})

	rec := env.do(t, http.MethodGet, "/health", "")
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatal("no request id assigned")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, rec.Header().Get(middleware.RequestIDHeader), "abc-123")
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, webAndSSH, config.ProcessConfig{})
	assert.Equal(t, env.do(t, http.MethodPatch, "/api/proxies", "").Code, http.StatusMethodNotAllowed)
}
