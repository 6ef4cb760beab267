package migration

import (
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-tools/deskmigrate/internal/datastore"
	"github.com/helpdesk-tools/deskmigrate/internal/doctypes"
	"github.com/helpdesk-tools/deskmigrate/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

// newSite opens an empty SQLite site database with the framework tables
// every site has.
func newSite(t *testing.T) *datastore.Store {
	t.Helper()
	store, err := datastore.OpenSQLiteFile(filepath.Join(t.TempDir(), "site.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	exec(t, store, "CREATE TABLE `tabSingles` (doctype TEXT, field TEXT, value TEXT)")
	exec(t, store, "CREATE TABLE `tabFile` (name TEXT PRIMARY KEY, file_url TEXT, attached_to_doctype TEXT, attached_to_name TEXT)")
	return store
}

func exec(t *testing.T, store *datastore.Store, sql string, args ...any) {
	t.Helper()
	require.NoError(t, store.DB().Exec(sql, args...).Error, sql)
}

// createDoctypeTable creates a Frappe-shaped table for doctype with the
// standard columns plus extra.
func createDoctypeTable(t *testing.T, store *datastore.Store, doctype string, extra ...string) {
	t.Helper()
	cols := "name TEXT PRIMARY KEY, owner TEXT, creation TEXT, modified TEXT, docstatus INTEGER DEFAULT 0"
	for _, c := range extra {
		cols += ", " + c + " TEXT"
	}
	exec(t, store, fmt.Sprintf("CREATE TABLE `%s` (%s)", doctypes.TableName(doctype), cols))
}

func insertRows(t *testing.T, store *datastore.Store, doctype string, names ...string) {
	t.Helper()
	for _, name := range names {
		exec(t, store, fmt.Sprintf("INSERT INTO `%s` (name, owner) VALUES (?, ?)", doctypes.TableName(doctype)),
			name, "admin@example.com")
	}
}

func countRows(t *testing.T, store *datastore.Store, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, store.DB().Raw(fmt.Sprintf("SELECT COUNT(*) FROM `%s`", table)).Scan(&n).Error)
	return n
}

func findTable(t *testing.T, stats []TableStats, old string) TableStats {
	t.Helper()
	for _, ts := range stats {
		if ts.Old == old {
			return ts
		}
	}
	require.Failf(t, "doctype not in stats", "%s", old)
	return TableStats{}
}
