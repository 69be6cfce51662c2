package corrosion

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/devfire/corrosion/collectors"
)

// ApiServer exposes a read-only status API next to the proxy: the resolved
// fault policy, the active connections, and the prometheus metrics when any
// are enabled. It never mutates proxy state.
type ApiServer struct {
	Proxy   *Proxy
	Metrics *collectors.MetricsContainer
	Logger  zerolog.Logger
}

func NewApiServer(proxy *Proxy, metrics *collectors.MetricsContainer, logger zerolog.Logger) *ApiServer {
	if metrics == nil {
		metrics = collectors.NewMetricsContainer(nil)
	}
	return &ApiServer{
		Proxy:   proxy,
		Metrics: metrics,
		Logger:  logger,
	}
}

func (server *ApiServer) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/version", server.VersionShow).Methods("GET")
	r.HandleFunc("/policy", server.PolicyShow).Methods("GET")
	r.HandleFunc("/connections", server.ConnectionIndex).Methods("GET")
	if server.Metrics.AnyMetricsEnabled() {
		r.Handle("/metrics", server.Metrics.Handler()).Methods("GET")
	}
	return r
}

func (server *ApiServer) Listen(addr string) error {
	server.Logger.Info().
		Str("addr", addr).
		Msg("Starting status API")
	return http.ListenAndServe(addr, server.Routes())
}

func (server *ApiServer) PolicyShow(response http.ResponseWriter, request *http.Request) {
	server.writeJSON(response, server.Proxy.Policy())
}

func (server *ApiServer) ConnectionIndex(response http.ResponseWriter, request *http.Request) {
	server.writeJSON(response, server.Proxy.Connections())
}

func (server *ApiServer) VersionShow(response http.ResponseWriter, request *http.Request) {
	server.writeJSON(response, map[string]string{"version": Version})
}

func (server *ApiServer) writeJSON(response http.ResponseWriter, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(response, err.Error(), http.StatusInternalServerError)
		return
	}
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(http.StatusOK)
	if _, err := response.Write(body); err != nil {
		server.Logger.Warn().Err(err).Msg("Failed to write response to client")
	}
}
