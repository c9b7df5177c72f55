package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/homebid/match-cli/internal/match"
	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/internal/search"
	"github.com/homebid/match-cli/pkg/embed"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the matching API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initServer(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           env.routes(ctx, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// routes builds the HTTP router. matchCtx outlives individual requests and
// scopes the async match runs intake kicks off.
func (e *serverEnv) routes(matchCtx context.Context, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
	}

	r.Get("/health", e.handleHealth)
	r.Get("/search", e.handleSearch)
	r.Route("/bidcards", func(r chi.Router) {
		r.Post("/", e.handleCreateBidCard(matchCtx))
		r.Get("/{id}", e.handleGetBidCard)
		r.Post("/{id}/match", e.handleMatch)
		r.Get("/{id}/matches", e.handleLatestMatches)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (e *serverEnv) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := e.checker.RunAll(r.Context())
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (e *serverEnv) handleSearch(w http.ResponseWriter, r *http.Request) {
	if e.searcher == nil {
		writeError(w, http.StatusServiceUnavailable, "search requires an embedding key")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	results, err := e.searcher.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		var se *embed.ServiceError
		switch {
		case search.IsValidation(err):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &se):
			writeError(w, http.StatusBadGateway, "embedding service unavailable")
		default:
			zap.L().Error("search failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "search failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (e *serverEnv) handleGetBidCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bc, err := e.store.GetBidCard(r.Context(), id)
	if err != nil {
		zap.L().Error("get bid card failed", zap.String("bid_card_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get bid card failed")
		return
	}
	if bc == nil {
		writeError(w, http.StatusNotFound, "bid card not found")
		return
	}
	writeJSON(w, http.StatusOK, bc)
}

func (e *serverEnv) handleMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bc, err := e.store.GetBidCard(r.Context(), id)
	if err != nil {
		zap.L().Error("get bid card failed", zap.String("bid_card_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get bid card failed")
		return
	}
	if bc == nil {
		writeError(w, http.StatusNotFound, "bid card not found")
		return
	}

	results, err := e.matcher.Match(r.Context(), bc)
	if err != nil {
		zap.L().Error("match failed", zap.String("bid_card_id", id), zap.Error(err))
		if match.IsRepositoryUnavailable(err) {
			writeError(w, http.StatusServiceUnavailable, "matching temporarily unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "matching failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bid_card_id": id, "matches": results})
}

func (e *serverEnv) handleLatestMatches(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	results, err := e.store.LatestMatches(r.Context(), id)
	if err != nil {
		zap.L().Error("latest matches failed", zap.String("bid_card_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "latest matches failed")
		return
	}
	if results == nil {
		results = []model.MatchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bid_card_id": id, "matches": results})
}
