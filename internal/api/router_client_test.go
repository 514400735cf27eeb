//go:build !windows

package api

import (
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"frpanel/internal/config"
	"frpanel/internal/handlers"
	"frpanel/internal/models"
)

func TestRouter_ClientLifecycle(t *testing.T) {
	env := newTestEnv(t, webAndSSH, config.ProcessConfig{
		Command: "/bin/sh",
		Args:    []string{"-c", `echo "[I] [proxy web] start proxy success"; exec sleep 30`},
	})

	rec := env.do(t, http.MethodPost, "/api/client/start", "")
	assert.Equal(t, rec.Code, http.StatusOK)
	start := decode[handlers.StartResponse](t, rec)
	if start.Pid <= 0 {
		t.Fatalf("pid = %d", start.Pid)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		st := decode[handlers.StatusResponse](t, env.do(t, http.MethodGet, "/api/client/status", ""))
		if st.Process.State == models.StateRunning {
			assert.Equal(t, st.Process.Pid, start.Pid)
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("client never reported running, state %s", st.Process.State)
		}
		time.Sleep(20 * time.Millisecond)
	}

	logs := decode[handlers.LogsResponse](t, env.do(t, http.MethodGet, "/api/client/logs", ""))
	assert.Equal(t, logs.IsRunning, true)
	if logs.Pid == nil || *logs.Pid != start.Pid {
		t.Fatalf("logs pid = %v, want %d", logs.Pid, start.Pid)
	}
	var sawMarker bool
	for _, e := range logs.Logs {
		if e.Channel == models.ChannelStdout && strings.Contains(e.Text, "start proxy success") {
			sawMarker = true
		}
	}
	if !sawMarker {
		t.Fatalf("stdout line missing from %+v", logs.Logs)
	}

	limited := decode[handlers.LogsResponse](t, env.do(t, http.MethodGet, "/api/client/logs?limit=1", ""))
	assert.Equal(t, len(limited.Logs), 1)

	restart := decode[handlers.StartResponse](t, env.do(t, http.MethodPost, "/api/client/restart", ""))
	if restart.Pid == start.Pid || restart.Pid <= 0 {
		t.Fatalf("restart pid = %d, previous %d", restart.Pid, start.Pid)
	}
	st := decode[handlers.StatusResponse](t, env.do(t, http.MethodGet, "/api/client/status", ""))
	assert.Equal(t, st.Process.Pid, restart.Pid)

	stop := decode[handlers.StopResponse](t, env.do(t, http.MethodPost, "/api/client/stop", ""))
	assert.Equal(t, stop.Stopped, true)
	stop = decode[handlers.StopResponse](t, env.do(t, http.MethodPost, "/api/client/stop", ""))
	assert.Equal(t, stop.Stopped, false)

	st = decode[handlers.StatusResponse](t, env.do(t, http.MethodGet, "/api/client/status", ""))
	assert.Equal(t, st.Process.State, models.StateStopped)
	assert.Equal(t, st.Process.Running, false)
}

var legacyLine = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z\] `)

func TestRouter_LegacyRoutes(t *testing.T) {
	env := newTestEnv(t, webAndSSH, config.ProcessConfig{
		Command: "/bin/sh",
		Args:    []string{"-c", `echo "login to server success"; echo "dial failed" >&2; exec sleep 30`},
	})

	rec := env.do(t, http.MethodPost, "/api/connect-frps", "")
	assert.Equal(t, rec.Code, http.StatusOK)
	start := decode[handlers.LegacyStartResponse](t, rec)
	assert.Equal(t, start.Success, true)
	assert.Equal(t, start.ConfigPath, env.doc)
	assert.Equal(t, start.FrpcPath, "/bin/sh")
	if start.Pid <= 0 {
		t.Fatalf("pid = %d", start.Pid)
	}

	var logs handlers.LegacyLogsResponse
	deadline := time.Now().Add(10 * time.Second)
	for {
		logs = decode[handlers.LegacyLogsResponse](t, env.do(t, http.MethodGet, "/api/frpc-logs", ""))
		joined := strings.Join(logs.Logs, "\n")
		if strings.Contains(joined, "login to server success") && strings.Contains(joined, "ERROR: dial failed") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("client output missing from %q", logs.Logs)
		}
		time.Sleep(20 * time.Millisecond)
	}
	for _, l := range logs.Logs {
		if !legacyLine.MatchString(l) {
			t.Fatalf("line %q lacks a timestamp prefix", l)
		}
	}
	assert.Equal(t, logs.IsRunning, true)
	if logs.Pid == nil || *logs.Pid != start.Pid {
		t.Fatalf("logs pid = %v, want %d", logs.Pid, start.Pid)
	}

	stop := decode[handlers.LegacyStopResponse](t, env.do(t, http.MethodPost, "/api/stop-frpc", ""))
	assert.Equal(t, stop.Success, true)

	rec = env.do(t, http.MethodPost, "/api/stop-frpc", "")
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, decode[handlers.LegacyStopResponse](t, rec).Success, false)

	logs = decode[handlers.LegacyLogsResponse](t, env.do(t, http.MethodGet, "/api/frpc-logs", ""))
	assert.Equal(t, logs.IsRunning, false)
	if logs.Pid != nil {
		t.Fatalf("pid = %d after stop", *logs.Pid)
	}
}

func TestRouter_ClientLogsBadLimit(t *testing.T) {
	env := newTestEnv(t, webAndSSH, config.ProcessConfig{})
	rec := env.do(t, http.MethodGet, "/api/client/logs?limit=-2", "")
	assert.Equal(t, rec.Code, http.StatusBadRequest)
}
