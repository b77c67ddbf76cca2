// Package http exposes the triage router and the data layer over HTTP and
// websocket.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apperrors "github.com/scttfrdmn/decisionkit/decisionkit-go/adapter/errors"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/data"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/observability"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/triage"
)

const (
	// DefaultRequestTimeout bounds a single query.
	DefaultRequestTimeout = 120 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 5 * time.Second

	maxRequestBytes = 1 << 20
)

// DataStore is the part of data.Manager the server needs.
type DataStore interface {
	Get(ctx context.Context, domain decisionkit.Domain) data.Dataset
	Refresh(ctx context.Context, domain decisionkit.Domain) (data.Dataset, error)
	RefreshAll(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. "0.0.0.0:5000".
	Addr string

	// CORSOrigins lists the allowed origins. Empty allows any origin.
	CORSOrigins []string

	// RequestTimeout bounds each query. Zero means DefaultRequestTimeout.
	RequestTimeout time.Duration

	// Debug adds error details to 500 responses.
	Debug bool

	// Gatherer backs /metrics. Nil uses the default prometheus registry.
	Gatherer prometheus.Gatherer

	Audit  *observability.AuditLogger
	Logger *slog.Logger
}

// Server serves the query API.
type Server struct {
	router  *triage.Router
	data    DataStore
	opts    Options
	logger  *slog.Logger
	handler http.Handler

	upgrader websocket.Upgrader
	ws       wsTimings

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a server for router and store.
func NewServer(router *triage.Router, store DataStore, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		router: router,
		data:   store,
		opts:   opts,
		logger: opts.Logger,
		ws:     defaultWSTimings(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/query", s.handleQuery).Methods(http.MethodPost)
	r.HandleFunc("/api/classify", s.handleClassify).Methods(http.MethodPost)
	r.HandleFunc("/api/data/refresh", s.handleRefreshAll).Methods(http.MethodPost)
	r.HandleFunc("/api/data/refresh/{domain}", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/data/{domain}", s.handleData).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/ws", s.handleWebSocket).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	s.handler = otelhttp.NewHandler(c.Handler(r), "decisionkit.http")
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on opts.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	srv := s.server
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("decisionkit listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	s.logger.Info("decisionkit shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.CORSOrigins) == 0 {
		return true
	}
	for _, o := range s.opts.CORSOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

type queryRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type queryResponse struct {
	Status         string `json:"status"`
	Response       string `json:"response"`
	Agent          string `json:"agent"`
	Domain         string `json:"domain"`
	ConversationID string `json:"conversation_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.opts.Audit.LogValidationFailure(r.Context(), "/api/query", "invalid JSON body")
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	resp, status, err := s.answer(r.Context(), req)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// answer runs one query and maps failures to an HTTP status.
func (s *Server) answer(ctx context.Context, req queryRequest) (*queryResponse, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	result, err := s.router.ProcessQuery(ctx, req.Query, req.ConversationID)
	if err != nil {
		var invalid *apperrors.InvalidQueryError
		if errors.As(err, &invalid) {
			s.opts.Audit.LogValidationFailure(ctx, "/api/query", invalid.Message)
			return nil, http.StatusBadRequest, errors.New(invalid.Message)
		}
		s.logger.ErrorContext(ctx, "query failed", "error", err)
		s.opts.Audit.LogQueryFailure(ctx, req.ConversationID, err)
		return nil, http.StatusInternalServerError, s.internalError(err)
	}

	if result.Err != nil {
		s.opts.Audit.LogQueryFailure(ctx, result.ConversationID, result.Err)
	} else {
		s.opts.Audit.LogQuery(ctx, result.ConversationID, string(result.Domain), result.RoutedAgent, result.IsClearMatch)
	}
	return &queryResponse{
		Status:         "success",
		Response:       result.Response,
		Agent:          result.Agent,
		Domain:         string(result.Domain),
		ConversationID: result.ConversationID,
	}, http.StatusOK, nil
}

func (s *Server) internalError(err error) error {
	if s.opts.Debug {
		return err
	}
	return errors.New("internal server error")
}

type classifyResponse struct {
	triage.Analysis
	Query         string               `json:"query"`
	RankedDomains []decisionkit.Domain `json:"ranked_domains"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		s.opts.Audit.LogValidationFailure(r.Context(), "/api/classify", "Query is required")
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}
	analysis := s.router.Classifier().Analyze(query)
	writeJSON(w, http.StatusOK, classifyResponse{
		Analysis:      analysis,
		Query:         query,
		RankedDomains: analysis.RankedDomains(),
	})
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	if err := s.data.RefreshAll(r.Context()); err != nil {
		s.opts.Audit.LogDataRefresh(r.Context(), "", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.opts.Audit.LogDataRefresh(r.Context(), "", nil)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Data refreshed successfully",
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	domain, ok := s.domainVar(w, r)
	if !ok {
		return
	}
	ds, err := s.data.Refresh(r.Context(), domain)
	s.opts.Audit.LogDataRefresh(r.Context(), string(domain), err)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "success",
		"message":      fmt.Sprintf("%s data refreshed successfully", domain),
		"last_updated": ds.LastUpdated(),
	})
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	domain, ok := s.domainVar(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.data.Get(r.Context(), domain))
}

func (s *Server) domainVar(w http.ResponseWriter, r *http.Request) (decisionkit.Domain, bool) {
	domain, err := decisionkit.ParseDomain(mux.Vars(r)["domain"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return domain, true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.SystemStatus(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
