package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/voyago/audittrail/internal/util"
	"sigs.k8s.io/yaml"
)

const (
	appName = "audittrail"
)

type Config struct {
	Database *dbConfig       `json:"database,omitempty"`
	Service  *svcConfig      `json:"service,omitempty"`
	Tracking *trackingConfig `json:"tracking,omitempty"`
}

type dbConfig struct {
	Type     string `json:"type,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	Port     uint   `json:"port,omitempty"`
	Name     string `json:"name,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
}

type svcConfig struct {
	Address  string `json:"address,omitempty"`
	LogLevel string `json:"logLevel,omitempty"`
}

type trackingConfig struct {
	// SnapshotTTL bounds how long an unconsumed pre-image may live in the
	// snapshot cache before the background sweep reclaims it.
	SnapshotTTL util.Duration `json:"snapshotTTL,omitempty"`
	// SnapshotCapacity bounds the number of in-flight pre-images held at once.
	SnapshotCapacity uint64 `json:"snapshotCapacity,omitempty"`
	// RetentionWindow is how long persisted change records are kept before the
	// periodic purge deletes them. Zero disables purging.
	RetentionWindow util.Duration `json:"retentionWindow,omitempty"`
	// PurgeInterval is how often the retention purge runs.
	PurgeInterval util.Duration `json:"purgeInterval,omitempty"`
	// Entities maps entity-type names to their tracked-field configuration.
	// Types absent from this map are never tracked.
	Entities map[string]entityTrackingConfig `json:"entities,omitempty"`
}

type entityTrackingConfig struct {
	Fields          []string `json:"fields,omitempty"`
	SoftDeleteField string   `json:"softDeleteField,omitempty"`
}

func ConfigDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "."+appName)
}

func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

func NewDefault() *Config {
	c := &Config{
		Database: &dbConfig{
			Type:     "pgsql",
			Hostname: "localhost",
			Port:     5432,
			Name:     "audittrail",
			User:     "admin",
			Password: "adminpass",
		},
		Service: &svcConfig{
			Address:  ":3443",
			LogLevel: "info",
		},
		Tracking: &trackingConfig{
			SnapshotTTL:      util.Duration{Duration: 5 * time.Minute},
			SnapshotCapacity: 10000,
			RetentionWindow:  util.Duration{Duration: 90 * 24 * time.Hour},
			PurgeInterval:    util.Duration{Duration: time.Hour},
			Entities: map[string]entityTrackingConfig{
				"lead": {
					Fields:          []string{"status", "assignedTo", "contact.email", "contact.phone"},
					SoftDeleteField: "isDeleted",
				},
				"booking": {
					Fields:          []string{"status", "destination", "price", "travelDate"},
					SoftDeleteField: "isDeleted",
				},
			},
		},
	}
	return c
}

func NewFromFile(cfgFile string) (*Config, error) {
	cfg, err := Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadOrGenerate(cfgFile string) (*Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(cfgFile), os.FileMode(0755)); err != nil {
			return nil, fmt.Errorf("creating directory for config file: %v", err)
		}
		if err := Save(NewDefault(), cfgFile); err != nil {
			return nil, err
		}
	}
	return NewFromFile(cfgFile)
}

func Load(cfgFile string) (*Config, error) {
	contents, err := os.ReadFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %v", err)
	}
	c := &Config{}
	if err := yaml.Unmarshal(contents, c); err != nil {
		return nil, fmt.Errorf("decoding config: %v", err)
	}
	return c, nil
}

func Save(cfg *Config, cfgFile string) error {
	contents, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %v", err)
	}
	if err := os.WriteFile(cfgFile, contents, 0600); err != nil {
		return fmt.Errorf("writing config file: %v", err)
	}
	return nil
}

func Validate(cfg *Config) error {
	if cfg.Database == nil {
		return fmt.Errorf("database configuration is missing")
	}
	if cfg.Database.Type != "pgsql" && cfg.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database type %q", cfg.Database.Type)
	}
	if cfg.Tracking == nil {
		return fmt.Errorf("tracking configuration is missing")
	}
	if cfg.Tracking.SnapshotTTL.Duration <= 0 {
		return fmt.Errorf("tracking.snapshotTTL must be positive")
	}
	return nil
}

func (cfg *Config) String() string {
	contents, err := yaml.Marshal(cfg)
	if err != nil {
		return "<error>"
	}
	return string(contents)
}
