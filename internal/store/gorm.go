package store

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/voyago/audittrail/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.Config, log logrus.FieldLogger) (*gorm.DB, error) {
	var dia gorm.Dialector

	if cfg.Database.Type == "pgsql" {
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d",
			cfg.Database.Hostname,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Name,
			cfg.Database.Port,
		)
		dia = postgres.Open(dsn)
	} else {
		dia = sqlite.Open(cfg.Database.Name)
	}

	// Without this every single write runs inside an implicit transaction,
	// which would make the tracking hooks treat plain mutations as
	// transactional and abort them on audit persist failures. Only explicit
	// units of work opened through the coordinator get that coupling.
	newDB, err := gorm.Open(dia, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Errorf("failed to connect database: %v", err)
		return nil, err
	}

	sqlDB, err := newDB.DB()
	if err != nil {
		log.Errorf("failed to configure connections: %v", err)
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	if cfg.Database.Type == "pgsql" {
		var version string
		if result := newDB.Raw("SELECT version()").Scan(&version); result.Error != nil {
			log.Errorf("checking database version: %v", result.Error)
			return nil, result.Error
		}
		log.Infof("PostgreSQL information: '%s'", version)
	}

	return newDB, nil
}
