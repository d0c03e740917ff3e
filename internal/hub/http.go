package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kazz187/agenthub/internal/config"
	"github.com/kazz187/agenthub/pkg/cerr"
	"github.com/kazz187/agenthub/pkg/clog"
)

// StatusServer exposes a small read-only HTTP surface next to the stdio
// session: a health probe and aggregate hub state for dashboards. All
// mutations go through the session boundary, never through HTTP.
type StatusServer struct {
	server *http.Server
	env    *config.Env
	hub    *Hub
}

func NewStatusServer(env *config.Env, hub *Hub) *StatusServer {
	return &StatusServer{
		env: env,
		hub: hub,
	}
}

func (s *StatusServer) ListenAndServe(ctx context.Context) error {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(clog.SlogChiMiddleware())
		r.Get("/status", s.handleStatus)
		r.Get("/agents", s.handleAgents)
		r.Get("/features", s.handleFeatures)
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)

	addr := net.JoinHostPort(s.env.StatusHost, s.env.StatusPort)
	slog.Info("starting status server", "addr", addr)

	s.server = &http.Server{
		Addr: addr,
		Handler: h2c.NewHandler(cors.New(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"*"},
		}).Handler(mux), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *StatusServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.hub.GetHubStatus(r.Context(), GetHubStatusParams{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, status)
}

func (s *StatusServer) handleAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.hub.agents.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, agents)
}

func (s *StatusServer) handleFeatures(w http.ResponseWriter, r *http.Request) {
	features, err := s.hub.engine.ListFeatures(r.Context(), "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, features)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.WarnContext(r.Context(), "failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	clog.AddError(r.Context(), err)
	code := cerr.Unknown
	msg := "server error"
	var cErr *cerr.Error
	if errors.As(err, &cErr) {
		code = cErr.Code
		msg = cErr.Msg
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code.HTTPCode())
	if err := json.NewEncoder(w).Encode(map[string]string{
		"code":    code.String(),
		"message": msg,
	}); err != nil {
		slog.WarnContext(r.Context(), "failed to encode error response", "error", err)
	}
}
