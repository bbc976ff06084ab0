package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/comps-intel/internal/cache"
	"github.com/sells-group/comps-intel/internal/selector"
)

const serviceName = "comps-intel"

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP analysis server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initAnalyzer(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		h := buildRouter(&handlers{analyze: env.Analyzer.Analyze, cache: env.Cache}, cfg.Server.CORSOrigins)
		return startServer(ctx, resolvePort(servePort, cfg.Server.Port), h)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

// startServer serves h on port until ctx is done, then drains in-flight
// requests.
func startServer(ctx context.Context, port int, h http.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- eris.Wrap(err, "server listen")
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return <-errCh
}

type handlers struct {
	analyze analyzeFunc
	cache   *cache.Cache
}

type analyzeRequest struct {
	CopilotResponse string `json:"copilot_response"`
	TargetCompany   string `json:"target_company"`
}

func buildRouter(h *handlers, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "online", "service": serviceName})
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/analyze", h.handleAnalyze)
	r.Get("/cache/stats", h.handleCacheStats)
	r.Delete("/cache", h.handleCacheClear)
	return r
}

func (h *handlers) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.TargetCompany) == "" {
		respondError(w, http.StatusBadRequest, "target_company is required")
		return
	}

	candidates := selector.ExtractPaths(req.CopilotResponse)
	res, err := h.analyze(r.Context(), req.TargetCompany, candidates)
	if err != nil {
		zap.L().Error("analysis failed",
			zap.String("company", req.TargetCompany),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "analysis failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *handlers) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *handlers) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Clear(r.Context()); err != nil {
		zap.L().Warn("cache clear incomplete", zap.Error(err))
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "cache cleared", "cache_size": 0})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
