// Package server exposes indexing and matching over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kenzatoreis/hiringbuddy/internal/ai"
	"github.com/kenzatoreis/hiringbuddy/internal/indexer"
	"github.com/kenzatoreis/hiringbuddy/internal/retrieval"
	"github.com/kenzatoreis/hiringbuddy/internal/store"
	"go.uber.org/zap"
)

// OwnerHeader carries the caller identity. Authentication happens upstream.
const OwnerHeader = "X-Owner-ID"

const (
	shutdownTimeout = 10 * time.Second
	maxBodyBytes    = 4 << 20
)

type Server struct {
	indexer   *indexer.Indexer
	retriever *retrieval.Retriever
	store     store.Store
	// assessor is optional; assessment requests fail with 501 without it.
	assessor ai.Assessor
	logger   *zap.Logger
}

func New(idx *indexer.Indexer, retriever *retrieval.Retriever, st store.Store, assessor ai.Assessor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		indexer:   idx,
		retriever: retriever,
		store:     st,
		assessor:  assessor,
		logger:    logger,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(requireOwner)

		r.Post("/documents", s.handleIndex)
		r.Get("/documents", s.handleListDocuments)
		r.Delete("/documents", s.handleDeleteOwner)
		r.Delete("/documents/{documentID}", s.handleDeleteDocument)
		r.Post("/match", s.handleMatch)
		r.Get("/sections/{documentID}", s.handleSection)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
