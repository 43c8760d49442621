package main

import (
	"github.com/voyago/audittrail/internal/config"
	"github.com/voyago/audittrail/internal/store"
	"github.com/voyago/audittrail/pkg/log"
)

func main() {
	log := log.InitLogs()
	log.Println("Starting audittrail-db-migrate")

	cfg, err := config.LoadOrGenerate(config.ConfigFile())
	if err != nil {
		log.Fatalf("reading configuration: %v", err)
	}
	log.Printf("Using config: %s", cfg)

	db, err := store.InitDB(cfg, log)
	if err != nil {
		log.Fatalf("initializing data store: %v", err)
	}

	dataStore := store.NewStore(db, log.WithField("pkg", "store"))
	defer dataStore.Close()

	if err := dataStore.InitialMigration(); err != nil {
		log.Fatalf("running migrations: %v", err)
	}
	log.Println("Migrations complete")
}
