package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/voyago/audittrail/internal/aterrors"
	"github.com/voyago/audittrail/internal/config"
	"github.com/voyago/audittrail/internal/store"
	"github.com/voyago/audittrail/pkg/log"
)

// Server exposes the read-only change-record query API.
type Server struct {
	cfg       *config.Config
	log       logrus.FieldLogger
	dataStore store.Store
}

func New(cfg *config.Config, logger logrus.FieldLogger, dataStore store.Store) *Server {
	return &Server{
		cfg:       cfg,
		log:       logger,
		dataStore: dataStore,
	}
}

func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(ActorContext)

	router.Get("/healthz", s.health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/changerecords", s.listChangeRecords)
		r.Get("/changerecords/{id}", s.getChangeRecord)
	})
	return router
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Service.Address,
		Handler:      s.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Infof("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Infof("Listening on %s", s.cfg.Service.Address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) listChangeRecords(w http.ResponseWriter, r *http.Request) {
	params := store.ListParams{
		EntityType: r.URL.Query().Get("entityType"),
		EntityID:   r.URL.Query().Get("entityId"),
		Operation:  r.URL.Query().Get("operation"),
		ChangedBy:  r.URL.Query().Get("changedBy"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		params.Limit = parsed
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		parsed, err := strconv.Atoi(offset)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid offset", http.StatusBadRequest)
			return
		}
		params.Offset = parsed
	}

	list, err := s.dataStore.ChangeRecord().List(r.Context(), params)
	if err != nil {
		log.WithReqIDFromCtx(r.Context(), s.log).Errorf("listing change records: %v", err)
		http.Error(w, "listing change records failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, list)
}

func (s *Server) getChangeRecord(w http.ResponseWriter, r *http.Request) {
	record, err := s.dataStore.ChangeRecord().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, aterrors.ErrRecordNotFound) {
			http.Error(w, "change record not found", http.StatusNotFound)
			return
		}
		log.WithReqIDFromCtx(r.Context(), s.log).Errorf("getting change record: %v", err)
		http.Error(w, "getting change record failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, record)
}

func (s *Server) writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Errorf("encoding response: %v", err)
	}
}
