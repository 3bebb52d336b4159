package datastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold flags queries worth a warning in the service log.
const DefaultSlowQueryThreshold = 500 * time.Millisecond

// slogGormLogger adapts the package slog logger to GORM's logger interface.
type slogGormLogger struct {
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func createGormLogger() gormlogger.Interface {
	return &slogGormLogger{
		level:         gormlogger.Warn,
		slowThreshold: DefaultSlowQueryThreshold,
	}
}

func (l *slogGormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *slogGormLogger) Info(_ context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		logger.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *slogGormLogger) Warn(_ context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *slogGormLogger) Error(_ context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		logger.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *slogGormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		logger.Error("Query failed", "error", err, "sql", sql, "rows", rows, "duration_ms", elapsed.Milliseconds())
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		logger.Warn("Slow query", "sql", sql, "rows", rows, "duration_ms", elapsed.Milliseconds())
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		logger.Debug("Query", "sql", sql, "rows", rows, "duration_ms", elapsed.Milliseconds())
	}
}

// performAutoMigration creates or updates the schema for all entities.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	migrationStart := time.Now()
	migrationLogger := logger.With("db_type", dbType)

	if debug {
		migrationLogger.Debug("Starting database migration", "connection", connectionInfo)
	}

	if err := db.AutoMigrate(&Species{}, &Sighting{}, &SightingPhoto{}); err != nil {
		migrationLogger.Error("Database migration failed", "error", err)
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	migrationLogger.Debug("Database migration completed",
		"duration", time.Since(migrationStart))
	return nil
}
