// Package store persists submissions: one row per photographed program.
package store

import (
	"fmt"
	stdlog "log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/blockbridge-backend/internal/config"
	"github.com/yungbote/blockbridge-backend/internal/platform/logger"
)

// Open connects to the configured database and migrates the schema.
// SQLite is the default so a classroom deployment needs no external
// services; Postgres serves multi-instance installs.
func Open(cfg config.StoreConfig, log *logger.Logger) (*gorm.DB, error) {
	gormLog := gormLogger.New(
		stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dial gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "blockbridge.db"
		}
		dial = sqlite.Open(dsn)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("store: postgres requires a dsn")
		}
		dial = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect %s: %w", cfg.Driver, err)
	}

	if err := db.AutoMigrate(&Submission{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	log.Info("store ready", "driver", cfg.Driver)
	return db, nil
}
