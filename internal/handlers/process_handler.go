package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"frpanel/internal/models"
	"frpanel/internal/service"
)

type ProcessHandler struct {
	pm *service.ProcessManager
}

func NewProcessHandler(pm *service.ProcessManager) *ProcessHandler {
	return &ProcessHandler{pm: pm}
}

type StartResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Pid     int    `json:"pid"`
}

type StopResponse struct {
	Success bool   `json:"success"`
	Stopped bool   `json:"stopped"`
	Message string `json:"message"`
}

type StatusResponse struct {
	Success bool           `json:"success"`
	Process models.Process `json:"process"`
}

type LogsResponse struct {
	Success   bool              `json:"success"`
	Logs      []models.LogEntry `json:"logs"`
	IsRunning bool              `json:"isRunning"`
	Pid       *int              `json:"pid"`
}

func (h *ProcessHandler) StartProcess(w http.ResponseWriter, r *http.Request) {
	pid, err := h.pm.StartProcess(r.Context())
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StartResponse{
		Success: true,
		Message: "client is starting, follow the logs for progress",
		Pid:     pid,
	})
}

func (h *ProcessHandler) RestartProcess(w http.ResponseWriter, r *http.Request) {
	pid, err := h.pm.RestartProcess(r.Context())
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StartResponse{
		Success: true,
		Message: "client restarted",
		Pid:     pid,
	})
}

func (h *ProcessHandler) StopProcess(w http.ResponseWriter, r *http.Request) {
	err := h.pm.StopProcess(r.Context())
	if errors.Is(err, service.ErrNoProcessRunning) {
		writeJSON(w, http.StatusOK, StopResponse{
			Success: true,
			Stopped: false,
			Message: "no client process running",
		})
		return
	}
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StopResponse{
		Success: true,
		Stopped: true,
		Message: "client stopped",
	})
}

func (h *ProcessHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Success: true, Process: h.pm.Status()})
}

// GetLogs returns the buffered client log, oldest first. An optional limit
// query parameter keeps only the newest entries.
func (h *ProcessHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	var logs []models.LogEntry
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		logs = h.pm.GetLogs(n)
	} else {
		logs = h.pm.Logs()
	}

	st := h.pm.Status()
	resp := LogsResponse{Success: true, Logs: logs, IsRunning: st.Running}
	if st.Running {
		resp.Pid = &st.Pid
	}
	writeJSON(w, http.StatusOK, resp)
}
