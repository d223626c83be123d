// Package api serves the scoring endpoint and the login gateway route.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-loginguard/pkg/alerter"
	"go-loginguard/pkg/analyzer"
	"go-loginguard/pkg/logger"
	"go-loginguard/pkg/metrics"
	"go-loginguard/pkg/models"
)

const maxBodyBytes = 1 << 20

type Options struct {
	Addr           string
	RedirectURL    string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ModelTrees     int
	// Console receives the per-login summary of the gateway route.
	Console io.Writer
}

type Server struct {
	analyzer    *analyzer.LoginAnalyzer
	proxies     *TrustedProxies
	redirectURL string
	modelTrees  int
	console     io.Writer
	server      *http.Server
}

func NewServer(opts Options, la *analyzer.LoginAnalyzer) *Server {
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	s := &Server{
		analyzer:    la,
		proxies:     NewTrustedProxies(opts.TrustedProxies),
		redirectURL: opts.RedirectURL,
		modelTrees:  opts.ModelTrees,
		console:     opts.Console,
	}
	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/{$}", s.handleGateway)
	return loggingMiddleware(mux)
}

// Start serves in the background; a listener failure is sent on the
// returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	logger.Log.Infof("HTTP server listening on %s", s.server.Addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	in, err := decodeLogin(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		metrics.InvalidRequests.Inc()
		logger.Log.Warnf("rejected predict request from %s: %v", r.RemoteAddr, err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	rec := s.analyzer.ProcessLogin(r.Context(), in, "api")
	writeJSON(w, http.StatusOK, predictResponse{Classification: rec.Classification})
}

// handleGateway classifies the caller's own login from request metadata,
// then sends the browser on to the application.
func (s *Server) handleGateway(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	in := models.LoginInput{
		IP:        s.proxies.ClientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
		Identity:  headerOr(r, "X-User-ID", "N/A"),
		Role:      headerOr(r, "X-User-Role", "N/A"),
	}
	rec := s.analyzer.ProcessLogin(r.Context(), in, "gateway")
	alerter.PrintEvent(s.console, rec)

	http.Redirect(w, r, s.redirectURL, http.StatusFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"model_trees": s.modelTrees,
	})
}

func headerOr(r *http.Request, name, fallback string) string {
	if v := r.Header.Get(name); v != "" {
		return v
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorf("write response: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Log.Debugf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
