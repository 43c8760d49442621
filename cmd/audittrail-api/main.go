package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyago/audittrail/internal/audit"
	"github.com/voyago/audittrail/internal/config"
	"github.com/voyago/audittrail/internal/server"
	"github.com/voyago/audittrail/internal/store"
	"github.com/voyago/audittrail/pkg/log"
	"github.com/voyago/audittrail/pkg/thread"
)

func main() {
	log := log.InitLogs()
	log.Println("Starting audittrail-api")

	cfg, err := config.LoadOrGenerate(config.ConfigFile())
	if err != nil {
		log.Fatalf("reading configuration: %v", err)
	}
	log.Printf("Using config: %s", cfg)
	setLevel(cfg, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("Initializing data store")
	db, err := store.InitDB(cfg, log)
	if err != nil {
		log.Fatalf("initializing data store: %v", err)
	}

	dataStore := store.NewStore(db, log.WithField("pkg", "store"))
	defer dataStore.Close()

	if err := dataStore.InitialMigration(); err != nil {
		log.Fatalf("running migrations: %v", err)
	}

	registry := audit.NewRegistry()
	for entityType, tracking := range cfg.Tracking.Entities {
		registry.EnableTracking(entityType, audit.TrackedFieldConfig{
			Fields:          tracking.Fields,
			SoftDeleteField: tracking.SoftDeleteField,
		})
	}

	snapshots := audit.NewSnapshotCache(cfg.Tracking.SnapshotTTL.Duration, cfg.Tracking.SnapshotCapacity, log)
	defer snapshots.Stop()

	auditLog := log.WithField("pkg", "audit")
	recorder := audit.NewRecorder(dataStore.ChangeRecord(), auditLog)
	orchestrator := audit.NewOrchestrator(registry, snapshots, audit.NewDiffEngine(auditLog), recorder, auditLog)
	if err := db.Use(audit.NewPlugin(orchestrator, registry, auditLog)); err != nil {
		log.Fatalf("registering tracking hooks: %v", err)
	}

	if cfg.Tracking.RetentionWindow.Duration > 0 {
		retention := cfg.Tracking.RetentionWindow.Duration
		interval := cfg.Tracking.PurgeInterval.Duration
		if interval <= 0 {
			interval = time.Hour
		}
		purger := thread.New(context.Background(), log, "Change Record Purger", interval, func(ctx context.Context) {
			deleted, err := dataStore.ChangeRecord().DeleteOlderThan(ctx, time.Now().Add(-retention))
			if err != nil {
				log.Errorf("purging change records: %v", err)
				return
			}
			if deleted > 0 {
				log.Infof("Purged %d change records", deleted)
			}
		})
		purger.Start()
		defer purger.Stop()
	}

	srv := server.New(cfg, log, dataStore)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Error running server: %s", err)
	}
}

func setLevel(cfg *config.Config, log *logrus.Logger) {
	if cfg.Service == nil {
		return
	}
	logLvl, err := logrus.ParseLevel(cfg.Service.LogLevel)
	if err != nil {
		logLvl = logrus.InfoLevel
	}
	log.SetLevel(logLvl)
}
