package api

import (
	"log/slog"
	"net/http"

	"frpanel/internal/handlers"
	"frpanel/internal/metrics"
	"frpanel/internal/middleware"
	"frpanel/internal/service"

	"github.com/gorilla/mux"
)

type Router struct {
	*mux.Router
}

func NewRouter(cs *service.ConfigService, pm *service.ProcessManager, logger *slog.Logger, m *metrics.Metrics) *Router {
	r := mux.NewRouter()

	cfgHandler := handlers.NewConfigHandler(cs)
	procHandler := handlers.NewProcessHandler(pm)

	r.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/ready", handlers.ReadyCheck(cs.Exists)).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/proxies", cfgHandler.GetDocument).Methods(http.MethodGet)
	api.HandleFunc("/proxies", cfgHandler.AddProxy).Methods(http.MethodPost)
	api.HandleFunc("/proxies/{index}", cfgHandler.DeleteProxy).Methods(http.MethodDelete)
	api.HandleFunc("/server-config", cfgHandler.ReplaceServerConfig).Methods(http.MethodPut)

	api.HandleFunc("/client/start", procHandler.StartProcess).Methods(http.MethodPost)
	api.HandleFunc("/client/stop", procHandler.StopProcess).Methods(http.MethodPost)
	api.HandleFunc("/client/restart", procHandler.RestartProcess).Methods(http.MethodPost)
	api.HandleFunc("/client/status", procHandler.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/client/logs", procHandler.GetLogs).Methods(http.MethodGet)

	// Older panels use these paths.
	api.HandleFunc("/connect-frps", procHandler.LegacyStart).Methods(http.MethodPost)
	api.HandleFunc("/stop-frpc", procHandler.LegacyStop).Methods(http.MethodPost)
	api.HandleFunc("/frpc-logs", procHandler.LegacyLogs).Methods(http.MethodGet)

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))

	return &Router{Router: r}
}
