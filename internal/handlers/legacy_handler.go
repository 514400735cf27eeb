package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"frpanel/internal/models"
	"frpanel/internal/service"
)

// The /api/connect-frps, /api/stop-frpc and /api/frpc-logs routes answer
// in the shapes earlier panels were written against: failures carry a
// plain error string and log entries are preformatted lines.

const legacyTimeFormat = "2006-01-02T15:04:05.000Z07:00"

type LegacyErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type LegacyStartResponse struct {
	Success    bool   `json:"success"`
	Connected  bool   `json:"connected"`
	Message    string `json:"message"`
	FrpcPath   string `json:"frpcPath"`
	ConfigPath string `json:"configPath"`
	Pid        int    `json:"pid"`
}

type LegacyStopResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type LegacyLogsResponse struct {
	Success   bool     `json:"success"`
	Logs      []string `json:"logs"`
	IsRunning bool     `json:"isRunning"`
	Pid       *int     `json:"pid"`
}

func writeLegacyError(w http.ResponseWriter, err error) {
	status, e := apiErrorFor(err)
	writeJSON(w, status, LegacyErrorResponse{Success: false, Error: e.Message})
}

// formatLegacyLine renders e as "[timestamp] text", with stderr lines
// marked "ERROR: ".
func formatLegacyLine(e models.LogEntry) string {
	text := e.Text
	if e.Channel == models.ChannelStderr {
		text = "ERROR: " + text
	}
	return fmt.Sprintf("[%s] %s", e.Timestamp.UTC().Format(legacyTimeFormat), text)
}

func (h *ProcessHandler) LegacyStart(w http.ResponseWriter, r *http.Request) {
	pid, err := h.pm.StartProcess(r.Context())
	if err != nil {
		writeLegacyError(w, err)
		return
	}

	cfg := h.pm.Config()
	writeJSON(w, http.StatusOK, LegacyStartResponse{
		Success:    true,
		Connected:  true,
		Message:    "client is starting, follow the logs for progress",
		FrpcPath:   cfg.Command,
		ConfigPath: cfg.DocumentPath,
		Pid:        pid,
	})
}

func (h *ProcessHandler) LegacyStop(w http.ResponseWriter, r *http.Request) {
	err := h.pm.StopProcess(r.Context())
	if errors.Is(err, service.ErrNoProcessRunning) {
		writeJSON(w, http.StatusOK, LegacyStopResponse{Success: false, Message: "no client process running"})
		return
	}
	if err != nil {
		writeLegacyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LegacyStopResponse{Success: true, Message: "client stopped"})
}

func (h *ProcessHandler) LegacyLogs(w http.ResponseWriter, r *http.Request) {
	entries := h.pm.Logs()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, formatLegacyLine(e))
	}

	st := h.pm.Status()
	resp := LegacyLogsResponse{Success: true, Logs: lines, IsRunning: st.Running}
	if st.Running {
		resp.Pid = &st.Pid
	}
	writeJSON(w, http.StatusOK, resp)
}
