package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/potato/pkg/metrics"
	"github.com/cuemby/potato/pkg/storage"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Endpoint binds a URL path to the pipeline it serves
type Endpoint struct {
	Path string
	Kind storage.PipelineKind
}

// Endpoints lists the analytic routes
var Endpoints = []Endpoint{
	{Path: "/tweets_per_day", Kind: storage.PipelineDailyCounts},
	{Path: "/unique_users", Kind: storage.PipelineUniqueUsers},
	{Path: "/average_likes", Kind: storage.PipelineAverageLikes},
	{Path: "/tweet_locations", Kind: storage.PipelineTopPlaces},
	{Path: "/tweet_times", Kind: storage.PipelineTimeOfDay},
	{Path: "/top_user", Kind: storage.PipelineTopUser},
}

// Server serves the analytic queries over HTTP
type Server struct {
	store   storage.Store
	health  *metrics.HealthChecker
	logger  zerolog.Logger
	handler http.Handler
	http    *http.Server
}

// NewServer creates a server answering from store
func NewServer(store storage.Store, health *metrics.HealthChecker, logger zerolog.Logger) *Server {
	s := &Server{
		store:  store,
		health: health,
		logger: logger,
	}

	r := mux.NewRouter()
	for _, ep := range Endpoints {
		r.HandleFunc(ep.Path, s.analytic(ep.Kind)).Methods(http.MethodGet)
	}
	r.HandleFunc("/health", health.HealthHandler()).Methods(http.MethodGet)
	r.HandleFunc("/ready", health.ReadyHandler()).Methods(http.MethodGet)
	r.HandleFunc("/live", health.LivenessHandler()).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.Use(s.instrument)

	s.handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger: logger}),
		handlers.PrintRecoveryStack(false),
	)(r)

	return s
}

// Handler returns the root handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on addr and blocks until the server stops. It returns nil
// after a Shutdown.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("API listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) analytic(kind storage.PipelineKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()
		q := storage.Query{Kind: kind, Term: params.Get("term")}

		if kind == storage.PipelineTimeOfDay {
			g, err := storage.ParseGranularity(params.Get("granularity"))
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			q.Granularity = g
		}

		timer := metrics.NewTimer()
		docs, err := s.store.Aggregate(r.Context(), q)
		timer.ObserveDurationVec(metrics.AggregateDuration, string(kind))
		if err != nil {
			s.logger.Error().Err(err).Str("pipeline", string(kind)).Str("term", q.Term).Msg("Aggregation failed")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		body, err := EncodeDocuments(docs)
		if err != nil {
			s.logger.Error().Err(err).Str("pipeline", string(kind)).Msg("Failed to encode results")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

// statusRecorder remembers the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request metrics and writes an access log entry
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		timer := metrics.NewTimer()
		next.ServeHTTP(rec, r)

		metrics.APIRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, endpoint)

		s.logger.Info().
			Str("method", r.Method).
			Str("path", endpoint).
			Str("query", r.URL.RawQuery).
			Int("status", rec.status).
			Dur("duration", timer.Duration()).
			Msg("Request")
	})
}

type recoveryLogger struct {
	logger zerolog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error().Msg(fmt.Sprint(v...))
}
