package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"frpanel/internal/frpconf"
	"frpanel/internal/service"
)

const maxBodySize = 64 << 10

type ConfigHandler struct {
	cs *service.ConfigService
}

func NewConfigHandler(cs *service.ConfigService) *ConfigHandler {
	return &ConfigHandler{cs: cs}
}

type DocumentResponse struct {
	Success bool `json:"success"`
	*service.DocumentView
}

type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Name    string `json:"name"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number")
	}
	*f = flexString(n.String())
	return nil
}

type serverConfigRequest struct {
	ServerAddr string     `json:"serverAddr"`
	ServerPort flexString `json:"serverPort"`
	AuthMethod string     `json:"authMethod"`
	Token      string     `json:"token"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (h *ConfigHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	view, err := h.cs.ReadDocument()
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Success: true, DocumentView: view})
}

func (h *ConfigHandler) AddProxy(w http.ResponseWriter, r *http.Request) {
	var p frpconf.ProxyEntry
	if err := decodeBody(w, r, &p); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.cs.AddProxy(p.Canonical()); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{
		Success: true,
		Message: fmt.Sprintf("proxy %q added", p.Name()),
	})
}

func (h *ConfigHandler) DeleteProxy(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, APIError{Code: "INVALID_INDEX", Message: "index must be an integer", Field: "index"})
		return
	}

	name, err := h.cs.DeleteProxy(index)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{
		Success: true,
		Message: fmt.Sprintf("proxy %q deleted", name),
		Name:    name,
	})
}

func (h *ConfigHandler) ReplaceServerConfig(w http.ResponseWriter, r *http.Request) {
	var req serverConfigRequest
	if err := decodeBody(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	method := frpconf.AuthMethod(req.AuthMethod)
	if method == "" {
		method = frpconf.AuthNone
	}
	err := h.cs.ReplaceServerConfig(frpconf.ServerInfo{
		ServerAddr: req.ServerAddr,
		ServerPort: string(req.ServerPort),
		AuthMethod: method,
		Token:      req.Token,
	})
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "server config updated"})
}
