// Package datastore opens the site database and provides the SQL primitives
// the migration is built from, hiding engine differences behind a Dialect.
package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/helpdesk-tools/deskmigrate/internal/conf"
	"github.com/helpdesk-tools/deskmigrate/internal/logger"
)

// SlowStatementThreshold is the duration after which a statement is logged
// as slow. Copying a large ticket table can legitimately take a while.
const SlowStatementThreshold = 5 * time.Second

// Store is an open site database.
type Store struct {
	db       *gorm.DB
	dialect  Dialect
	location string
	sqlLog   *logger.GormLoggerAdapter
	log      logger.Logger
}

// Open connects to the database described by settings.
func Open(settings *conf.Settings, log logger.Logger) (*Store, error) {
	if settings == nil {
		return nil, validationError("settings are required", "settings", nil)
	}
	if log == nil {
		log = logger.Global().Module("datastore")
	}

	dialect, err := dialectFor(settings.DBType)
	if err != nil {
		return nil, validationError(err.Error(), "db_type", settings.DBType)
	}

	var dialector gorm.Dialector
	location := settings.SanitizedDSN()
	switch settings.DBType {
	case conf.DBTypeMariaDB:
		dialector = mysql.Open(settings.DSN())
	case conf.DBTypePostgres:
		dialector = postgres.Open(settings.DSN())
	case conf.DBTypeSQLite:
		if _, statErr := os.Stat(settings.DBPath); statErr != nil {
			return nil, dbError(statErr, "open", "", "path", settings.DBPath)
		}
		dialector = sqlite.Open(settings.DBPath + "?_busy_timeout=5000")
	}

	sqlLog := logger.NewGormLoggerAdapter(log.Module("sql"), SlowStatementThreshold)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 sqlLog,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		log.Error("failed to open database",
			logger.String("db_type", settings.DBType),
			logger.String("location", location),
			logger.Error(err))
		return nil, dbError(err, "open", "", "db_type", settings.DBType, "location", location)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, dbError(err, "open", "", "db_type", settings.DBType)
	}
	// the migration is sequential, one connection is enough
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Debug("database opened",
		logger.String("db_type", settings.DBType),
		logger.String("location", location))

	return &Store{
		db:       db,
		dialect:  dialect,
		location: location,
		sqlLog:   sqlLog,
		log:      log,
	}, nil
}

// OpenSQLiteFile opens (creating if needed) a SQLite database file. Used for
// rehearsal runs against a copy of a site's data and in tests.
func OpenSQLiteFile(path string, log logger.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, dbError(err, "open", "", "path", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, dbError(err, "open", "", "path", path)
	}
	_ = f.Close()

	return Open(&conf.Settings{DBType: conf.DBTypeSQLite, DBName: filepath.Base(path), DBPath: path}, log)
}

// DB returns the underlying GORM handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Dialect returns the engine dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Location describes the database for logs, without credentials.
func (s *Store) Location() string {
	return s.location
}

// Statements returns the number of SQL statements executed so far.
func (s *Store) Statements() int64 {
	return s.sqlLog.Statements()
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.db == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return dbError(err, "close", "")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", "")
	}
	return nil
}

// Transaction runs fn with a Store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Store{
			db:       gtx,
			dialect:  s.dialect,
			location: s.location,
			sqlLog:   s.sqlLog,
			log:      s.log,
		})
	})
}

// Quote quotes an identifier for the current engine.
func (s *Store) Quote(name string) string {
	var b strings.Builder
	s.db.Dialector.QuoteTo(&b, name)
	return b.String()
}

// QuoteColumns quotes and comma-joins column names.
func (s *Store) QuoteColumns(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = s.Quote(c)
	}
	return strings.Join(quoted, ", ")
}
