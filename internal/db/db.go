package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"spacebooking-backend/config"
	"spacebooking-backend/internal/model"
)

// Init opens the database connection and runs migrations. blocking lists the
// booking statuses that occupy a resource's timeline; it scopes the Postgres
// exclusion constraint.
func Init(cfg *config.DatabaseConfig, blocking []string, log *logrus.Logger) (*gorm.DB, error) {
	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	level := logger.Warn
	if cfg.LogSQL {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(log, logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	log.Info("Running database migrations...")
	if err := db.AutoMigrate(
		&model.Resource{},
		&model.PricingRule{},
		&model.Member{},
		&model.User{},
		&model.Booking{},
		&model.BookingCredit{},
		&model.CreditTransaction{},
	); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	if cfg.ExclusionConstraint {
		if cfg.Driver != "postgres" {
			log.Warnf("exclusion_constraint needs postgres, driver is %q; relying on locked re-validation only", cfg.Driver)
		} else {
			log.Info("Applying booking exclusion constraint DDL...")
			if err := applyExclusionDDL(db, blocking); err != nil {
				return nil, err
			}
		}
	}

	log.Info("Database initialization complete.")
	return db, nil
}

func openDialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		return postgres.Open(cfg.DSN), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// exclusionDDL builds the statements that keep two blocking bookings of the
// same resource from overlapping. blocked_until is end_time plus the
// resource buffer, so comparing [start_time, blocked_until) ranges is the
// same predicate as padding the candidate by the buffer on both sides.
func exclusionDDL(blocking []string) ([]string, error) {
	if len(blocking) == 0 {
		return nil, fmt.Errorf("exclusion constraint needs at least one blocking status")
	}
	quoted := make([]string, 0, len(blocking))
	for _, s := range blocking {
		if !model.BookingStatus(s).Valid() {
			return nil, fmt.Errorf("unknown blocking status %q", s)
		}
		quoted = append(quoted, "'"+s+"'")
	}

	return []string{
		"CREATE EXTENSION IF NOT EXISTS btree_gist;",

		"ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_window_valid;",
		"ALTER TABLE bookings ADD CONSTRAINT bookings_window_valid " +
			"CHECK (start_time < end_time AND end_time <= blocked_until);",

		"ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_no_overlap;",
		"ALTER TABLE bookings ADD CONSTRAINT bookings_no_overlap EXCLUDE USING gist (" +
			"resource_id WITH =, tstzrange(start_time, blocked_until, '[)') WITH &&) " +
			"WHERE (status IN (" + strings.Join(quoted, ", ") + "));",
	}, nil
}

func applyExclusionDDL(db *gorm.DB, blocking []string) error {
	ddls, err := exclusionDDL(blocking)
	if err != nil {
		return err
	}
	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
