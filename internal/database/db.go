package database

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Tables names the physical tables. Deployments inject these through config.
type Tables struct {
	Episodes    string
	Alerts      string
	Escalations string
}

// DefaultTables returns the table names used when none are configured.
func DefaultTables() Tables {
	return Tables{
		Episodes:    EpisodeRow{}.TableName(),
		Alerts:      AlertRow{}.TableName(),
		Escalations: EscalationRow{}.TableName(),
	}
}

// WithDefaults fills blank names from DefaultTables.
func (t Tables) WithDefaults() Tables {
	d := DefaultTables()
	if t.Episodes == "" {
		t.Episodes = d.Episodes
	}
	if t.Alerts == "" {
		t.Alerts = d.Alerts
	}
	if t.Escalations == "" {
		t.Escalations = d.Escalations
	}
	return t
}

// Connect opens a gorm handle for the given driver and DSN.
func Connect(driver, dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Each new connection to an in-memory SQLite database opens an empty one.
	if strings.Contains(dsn, ":memory:") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate creates or updates the episode table and both sub-record tables.
func Migrate(db *gorm.DB, tables Tables, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	tables = tables.WithDefaults()
	log.Info("running database migrations",
		zap.String("episodes", tables.Episodes),
		zap.String("alerts", tables.Alerts),
		zap.String("escalations", tables.Escalations))

	steps := []struct {
		table string
		model interface{}
	}{
		{tables.Episodes, &EpisodeRow{}},
		{tables.Alerts, &AlertRow{}},
		{tables.Escalations, &EscalationRow{}},
	}
	for _, s := range steps {
		if err := db.Table(s.table).AutoMigrate(s.model); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", s.table, err)
		}
	}

	log.Info("database migrations completed")
	return nil
}

// MigrateEpisodesOnly creates only the episode table. Deployments that keep
// sub-records on the episode row use this, and the store falls back accordingly.
func MigrateEpisodesOnly(db *gorm.DB, tables Tables) error {
	tables = tables.WithDefaults()
	if err := db.Table(tables.Episodes).AutoMigrate(&EpisodeRow{}); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", tables.Episodes, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
