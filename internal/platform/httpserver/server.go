package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	payoutservice "paymaster/contexts/settlement/payout-service"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "paymaster/internal/platform/httpserver/docs"
)

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	payout payoutservice.Module
}

func New(
	payout payoutservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		payout: payout,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the route table for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/payouts/distributions", s.handleCreateDistribution)
	s.mux.HandleFunc("GET /v1/payouts/distributions/{distribution_id}", s.handleGetDistribution)
	s.mux.HandleFunc("POST /v1/payouts/distributions/{distribution_id}/execute", s.handleExecuteDistribution)
	s.mux.HandleFunc("POST /v1/payouts/distributions/{distribution_id}/retries", s.handleRetryDistribution)
	s.mux.HandleFunc("GET /v1/payouts/distributions/{distribution_id}/batches", s.handleListBatches)
	s.mux.HandleFunc("GET /v1/payouts/batches/{batch_id}/holders", s.handleListHolders)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
