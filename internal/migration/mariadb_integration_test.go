//go:build integration

// Integration tests against a real MariaDB server, started with testcontainers.
// Run with: go test -tags=integration -v ./internal/migration/...
package migration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mariadb"

	"github.com/helpdesk-tools/deskmigrate/internal/conf"
	"github.com/helpdesk-tools/deskmigrate/internal/datastore"
	"github.com/helpdesk-tools/deskmigrate/internal/doctypes"
)

const (
	mariaDBImage    = "mariadb:10.6"
	mariaDBName     = "_helpdesk_site"
	mariaDBUser     = "helpdesk"
	mariaDBPassword = "helpdesk-test"
)

func startMariaDB(t *testing.T) *datastore.Store {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	ctr, err := mariadb.Run(ctx, mariaDBImage,
		mariadb.WithDatabase(mariaDBName),
		mariadb.WithUsername(mariaDBUser),
		mariadb.WithPassword(mariaDBPassword),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	store, err := datastore.Open(&conf.Settings{
		DBType:     conf.DBTypeMariaDB,
		DBName:     mariaDBName,
		DBUser:     mariaDBUser,
		DBPassword: mariaDBPassword,
		DBHost:     host,
		DBPort:     port.Int(),
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func TestMariaDBMigration(t *testing.T) {
	store := startMariaDB(t)
	ctx := context.Background()

	exec(t, store, "CREATE TABLE `tabSingles` (doctype VARCHAR(140), field VARCHAR(140), value TEXT)")
	exec(t, store, "CREATE TABLE `tabFile` (name VARCHAR(140) PRIMARY KEY, attached_to_doctype VARCHAR(140))")
	for _, doctype := range []string{"Ticket", "HD Ticket", "Agent Group Item", "HD Team Item"} {
		exec(t, store, "CREATE TABLE `"+doctypes.TableName(doctype)+"` (name VARCHAR(140) PRIMARY KEY, owner VARCHAR(140))")
	}
	exec(t, store, "INSERT INTO `tabTicket` VALUES ('1', 'a'), ('2', 'b')")
	exec(t, store, "INSERT INTO `tabHD Ticket` VALUES ('2', 'kept')")
	exec(t, store, "INSERT INTO `tabAgent Group Item` VALUES ('5', 'a'), ('41', 'b')")
	exec(t, store, "INSERT INTO `tabSingles` VALUES (?, 'brand_name', 'Acme')", doctypes.OldSettings)
	exec(t, store, "INSERT INTO `tabFile` VALUES ('f1', 'Ticket')")
	exec(t, store, "CREATE SEQUENCE `hd_team_item_id_seq` START WITH 1 NOCACHE NOCYCLE")

	stats, err := New(store, testLogger(), Options{
		Settings:        true,
		Attachments:     true,
		RemoveOldTables: true,
	}).Run(ctx)
	require.NoError(t, err)
	assert.True(t, stats.Verified)

	ticket := findTable(t, stats.Doctypes, "Ticket")
	assert.EqualValues(t, 1, ticket.Inserted)
	assert.EqualValues(t, 1, ticket.Skipped)
	assert.EqualValues(t, 2, countRows(t, store, "tabHD Ticket"))

	next, err := store.NextSequenceValue(ctx, doctypes.SequenceName("HD Team Item"))
	require.NoError(t, err)
	assert.EqualValues(t, 42, next)

	assert.EqualValues(t, 1, countWhere(t, store, "tabSingles", "doctype", doctypes.NewSettings))
	assert.EqualValues(t, 1, countWhere(t, store, "tabFile", "attached_to_doctype", "HD Ticket"))

	exists, err := store.HasTable(ctx, "tabTicket")
	require.NoError(t, err)
	assert.False(t, exists)
}
