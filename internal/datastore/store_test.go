package datastore

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-tools/deskmigrate/internal/conf"
	"github.com/helpdesk-tools/deskmigrate/internal/errors"
	"github.com/helpdesk-tools/deskmigrate/internal/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
	store, err := OpenSQLiteFile(filepath.Join(t.TempDir(), "site.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func mustExec(t *testing.T, store *Store, sql string, args ...any) {
	t.Helper()
	require.NoError(t, store.DB().Exec(sql, args...).Error, sql)
}

func TestOpenRejectsUnknownDBType(t *testing.T) {
	t.Parallel()

	_, err := Open(&conf.Settings{DBType: "oracle", DBName: "x"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestOpenMissingSQLiteFile(t *testing.T) {
	t.Parallel()

	_, err := Open(&conf.Settings{
		DBType: conf.DBTypeSQLite,
		DBName: "x",
		DBPath: filepath.Join(t.TempDir(), "missing.db"),
	}, logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
}

func TestTableIntrospection(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	mustExec(t, store, "CREATE TABLE `tabTicket` (name TEXT PRIMARY KEY, subject TEXT, via_customer_portal INTEGER)")
	mustExec(t, store, "CREATE TABLE `tabHD Ticket` (name TEXT PRIMARY KEY, subject TEXT, priority TEXT)")

	exists, err := store.HasTable(ctx, "tabHD Ticket")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.HasTable(ctx, "tabHD Nothing")
	require.NoError(t, err)
	assert.False(t, exists)

	cols, err := store.Columns(ctx, "tabHD Ticket")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "subject", "priority"}, cols)

	shared, dropped, err := store.SharedColumns(ctx, "tabTicket", "tabHD Ticket")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "subject"}, shared)
	assert.Equal(t, []string{"via_customer_portal"}, dropped)
}

func TestHasTableReportsDatabaseErrors(t *testing.T) {
	t.Parallel()
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
	store, err := OpenSQLiteFile(filepath.Join(t.TempDir(), "site.db"), log)
	require.NoError(t, err)
	mustExec(t, store, "CREATE TABLE `tabHD Ticket` (name TEXT PRIMARY KEY)")
	require.NoError(t, store.Close())

	exists, err := store.HasTable(context.Background(), "tabHD Ticket")
	require.Error(t, err)
	assert.False(t, exists)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
}

func TestHasTableHonorsCancellation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.HasTable(ctx, "tabHD Ticket")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
}

func TestHasTableIgnoresIndexesAndViews(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	mustExec(t, store, "CREATE TABLE `tabHD Ticket` (name TEXT PRIMARY KEY, subject TEXT)")
	mustExec(t, store, "CREATE INDEX `tabHD Ticket subject` ON `tabHD Ticket` (subject)")
	mustExec(t, store, "CREATE VIEW `tabHD Ticket View` AS SELECT name FROM `tabHD Ticket`")

	for table, want := range map[string]bool{
		"tabHD Ticket":         true,
		"tabHD Ticket subject": false,
		"tabHD Ticket View":    false,
	} {
		exists, err := store.HasTable(ctx, table)
		require.NoError(t, err)
		assert.Equal(t, want, exists, table)
	}
}

func TestInsertIgnoreSelect(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	mustExec(t, store, "CREATE TABLE `tabAgent` (name TEXT PRIMARY KEY, user TEXT)")
	mustExec(t, store, "CREATE TABLE `tabHD Agent` (name TEXT PRIMARY KEY, user TEXT)")
	mustExec(t, store, "INSERT INTO `tabAgent` VALUES ('a1', 'one@example.com'), ('a2', 'two@example.com')")
	mustExec(t, store, "INSERT INTO `tabHD Agent` VALUES ('a1', 'kept@example.com')")

	inserted, err := store.InsertIgnoreSelect(ctx, "tabHD Agent", "tabAgent", []string{"name", "user"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, inserted)

	count, err := store.CountRows(ctx, "tabHD Agent")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	var user string
	require.NoError(t, store.DB().Raw("SELECT user FROM `tabHD Agent` WHERE name = ?", "a1").Scan(&user).Error)
	assert.Equal(t, "kept@example.com", user, "existing rows are left untouched")

	missing, err := store.MissingKeys(ctx, "tabAgent", "tabHD Agent")
	require.NoError(t, err)
	assert.Zero(t, missing)

	_, err = store.InsertIgnoreSelect(ctx, "tabHD Agent", "tabAgent", nil)
	require.Error(t, err)
}

func TestUpdateDeleteCount(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	mustExec(t, store, "CREATE TABLE `tabSingles` (doctype TEXT, field TEXT, value TEXT)")
	mustExec(t, store, "INSERT INTO `tabSingles` VALUES ('A', 'x', '1'), ('A', 'y', '2'), ('B', 'x', '3'), ('B', 'x', '4')")

	dups, err := store.DuplicateValues(ctx, "tabSingles", "field", "doctype", "B")
	require.NoError(t, err)
	assert.EqualValues(t, 1, dups)

	deleted, err := store.DeleteWhere(ctx, "tabSingles", "doctype", "B")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	updated, err := store.UpdateWhere(ctx, "tabSingles", "doctype", "A", "B")
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)

	n, err := store.CountWhere(ctx, "tabSingles", "doctype", "B")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	dups, err = store.DuplicateValues(ctx, "tabSingles", "field", "doctype", "B")
	require.NoError(t, err)
	assert.Zero(t, dups)
}

func TestDropTable(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	mustExec(t, store, "CREATE TABLE `tabTicket Type` (name TEXT PRIMARY KEY)")
	require.NoError(t, store.DropTable(ctx, "tabTicket Type"))
	require.NoError(t, store.DropTable(ctx, "tabTicket Type"), "dropping a missing table is not an error")

	exists, err := store.HasTable(ctx, "tabTicket Type")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSequences(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	mustExec(t, store, "CREATE TABLE `tabHD Team Item` (name TEXT PRIMARY KEY)")

	maxName, err := store.MaxNumericName(ctx, "tabHD Team Item")
	require.NoError(t, err)
	assert.Zero(t, maxName)

	mustExec(t, store, "INSERT INTO `tabHD Team Item` VALUES ('3'), ('17'), ('9'), ('abc1')")
	maxName, err = store.MaxNumericName(ctx, "tabHD Team Item")
	require.NoError(t, err)
	assert.EqualValues(t, 17, maxName)

	require.NoError(t, store.RecreateSequence(ctx, "hd_team_item_id_seq", maxName+1))
	next, err := store.NextSequenceValue(ctx, "hd_team_item_id_seq")
	require.NoError(t, err)
	assert.EqualValues(t, 18, next)

	// recreating replaces the old sequence
	require.NoError(t, store.RecreateSequence(ctx, "hd_team_item_id_seq", 0))
	next, err = store.NextSequenceValue(ctx, "hd_team_item_id_seq")
	require.NoError(t, err)
	assert.EqualValues(t, 1, next)
}

func TestTransactionRollsBack(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	mustExec(t, store, "CREATE TABLE `tabFile` (name TEXT PRIMARY KEY, attached_to_doctype TEXT)")
	mustExec(t, store, "INSERT INTO `tabFile` VALUES ('f1', 'Ticket')")

	boom := errors.NewStd("boom")
	err := store.Transaction(ctx, func(tx *Store) error {
		n, err := tx.UpdateWhere(ctx, "tabFile", "attached_to_doctype", "Ticket", "HD Ticket")
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := store.CountWhere(ctx, "tabFile", "attached_to_doctype", "Ticket")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestDialectStatements(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dbType      string
		insert      string
		createSeq   []string
		nextValSQL  string
		tableExists string
	}{
		{
			conf.DBTypeMariaDB,
			"INSERT IGNORE INTO `dst` (`a`) SELECT `a` FROM `src`",
			[]string{"CREATE SEQUENCE `s` START WITH 5 NOCACHE NOCYCLE"},
			"SELECT next_not_cached_value FROM `s`",
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
		},
		{
			conf.DBTypePostgres,
			`INSERT INTO "dst" ("a") SELECT "a" FROM "src" ON CONFLICT DO NOTHING`,
			[]string{`CREATE SEQUENCE "s" START WITH 5`},
			`SELECT CASE WHEN is_called THEN last_value + 1 ELSE last_value END FROM "s"`,
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?",
		},
		{
			conf.DBTypeSQLite,
			"INSERT OR IGNORE INTO `dst` (`a`) SELECT `a` FROM `src`",
			[]string{"CREATE TABLE `s` (next_val INTEGER NOT NULL)", "INSERT INTO `s` (next_val) VALUES (5)"},
			"SELECT next_val FROM `s`",
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			t.Parallel()
			d, err := dialectFor(tt.dbType)
			require.NoError(t, err)
			assert.Equal(t, tt.dbType, d.Name())

			q := `"`
			if tt.dbType != conf.DBTypePostgres {
				q = "`"
			}
			quote := func(s string) string { return q + s + q }

			assert.Equal(t, tt.insert, d.InsertIgnoreSelect(quote("dst"), quote("src"), quote("a")))
			assert.Equal(t, tt.createSeq, d.CreateSequence(quote("s"), 5))
			assert.Equal(t, tt.nextValSQL, d.NextSequenceValue(quote("s")))
			assert.Equal(t, tt.tableExists, d.TableExists())
		})
	}
}
