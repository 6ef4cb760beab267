package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

// GormLoggerAdapter adapts Logger to GORM's logger.Interface.
// Data statements are logged at TRACE, schema statements (CREATE, DROP,
// ALTER) at DEBUG so a --debug run shows every DDL the migration issues.
// Slow statements and failures are logged at WARN.
//
//	db, err := gorm.Open(dialector, &gorm.Config{
//	    Logger: logger.NewGormLoggerAdapter(log.Module("sql"), 2*time.Second),
//	})
type GormLoggerAdapter struct {
	logger        Logger
	slowThreshold time.Duration
	statements    atomic.Int64
	failures      atomic.Int64
}

// NewGormLoggerAdapter creates a new GORM logger adapter.
// Use a zero slowThreshold to disable slow statement warnings.
func NewGormLoggerAdapter(logger Logger, slowThreshold time.Duration) *GormLoggerAdapter {
	if logger == nil {
		logger = NewSlogLogger(nil, LogLevelInfo, nil)
	}
	return &GormLoggerAdapter{
		logger:        logger,
		slowThreshold: slowThreshold,
	}
}

// LogMode returns the adapter itself; levels come from the module logger.
func (a *GormLoggerAdapter) LogMode(_ gorm_logger.LogLevel) gorm_logger.Interface {
	return a
}

// Info logs GORM informational messages at DEBUG level.
func (a *GormLoggerAdapter) Info(_ context.Context, msg string, data ...any) {
	a.logger.Debug(fmt.Sprintf(msg, data...))
}

// Warn logs warning messages at WARN level.
func (a *GormLoggerAdapter) Warn(_ context.Context, msg string, data ...any) {
	a.logger.Warn(fmt.Sprintf(msg, data...))
}

// Error logs error messages at ERROR level.
func (a *GormLoggerAdapter) Error(_ context.Context, msg string, data ...any) {
	a.logger.Error(fmt.Sprintf(msg, data...))
}

// Trace is called by GORM after every statement.
func (a *GormLoggerAdapter) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	a.statements.Add(1)

	log := a.logger.WithContext(ctx)
	fields := []Field{
		String("sql", sql),
		Int64("rows_affected", rows),
		Int64("duration_ms", elapsed.Milliseconds()),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		a.failures.Add(1)
		log.Warn("statement failed", append(fields, Error(err))...)

	case a.slowThreshold > 0 && elapsed > a.slowThreshold:
		log.Warn("slow statement", append(fields, Duration("threshold", a.slowThreshold))...)

	case isSchemaStatement(sql):
		log.Debug("schema statement", fields...)

	default:
		log.Trace("sql statement", fields...)
	}
}

// Statements returns how many statements have been traced so far.
func (a *GormLoggerAdapter) Statements() int64 {
	return a.statements.Load()
}

// Failures returns how many traced statements returned an error.
func (a *GormLoggerAdapter) Failures() int64 {
	return a.failures.Load()
}

func isSchemaStatement(sql string) bool {
	head := strings.ToUpper(strings.TrimSpace(sql))
	for _, verb := range []string{"CREATE ", "DROP ", "ALTER ", "TRUNCATE "} {
		if strings.HasPrefix(head, verb) {
			return true
		}
	}
	return false
}
