package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-tools/deskmigrate/internal/buildinfo"
	"github.com/helpdesk-tools/deskmigrate/internal/conf"
	"github.com/helpdesk-tools/deskmigrate/internal/doctypes"
	"github.com/helpdesk-tools/deskmigrate/internal/logger"
)

func execute(t *testing.T, flags *conf.RuntimeFlags, args ...string) (string, error) {
	t.Helper()
	root := RootCommand(flags, buildinfo.NewContext("1.0.0", ""))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func newSite(t *testing.T) (sitesPath string, site *conf.Site) {
	t.Helper()
	sitesPath = t.TempDir()
	site = &conf.Site{Name: "helpdesk.localhost", SitesPath: sitesPath}
	require.NoError(t, os.MkdirAll(site.Dir(), 0o755))
	require.NoError(t, os.WriteFile(site.ConfigPath(), []byte(`{"db_name": "helpdesk"}`), 0o600))
	return sitesPath, site
}

func TestDoctypesCommand(t *testing.T) {
	out, err := execute(t, &conf.RuntimeFlags{}, "frappedesk-doctypes-str")
	require.NoError(t, err)
	assert.Equal(t, doctypes.LegacyNamesString()+"\n", out)
}

func TestMaintenanceCommand(t *testing.T) {
	sitesPath, site := newSite(t)

	out, err := execute(t, &conf.RuntimeFlags{}, "--sites-path", sitesPath, "--site", site.Name, "set-maintenance-mode", "on")
	require.NoError(t, err)
	assert.Contains(t, out, "Maintenance mode for helpdesk.localhost is on")

	on, err := conf.MaintenanceMode(site)
	require.NoError(t, err)
	assert.True(t, on)

	_, err = execute(t, &conf.RuntimeFlags{}, "--sites-path", sitesPath, "--site", site.Name, "set-maintenance-mode", "off")
	require.NoError(t, err)
	on, err = conf.MaintenanceMode(site)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestMaintenanceCommandRejectsBadArgument(t *testing.T) {
	sitesPath, site := newSite(t)

	_, err := execute(t, &conf.RuntimeFlags{}, "--sites-path", sitesPath, "--site", site.Name, "set-maintenance-mode", "maybe")
	require.Error(t, err)

	on, err := conf.MaintenanceMode(site)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestSitesPathFromEnvironment(t *testing.T) {
	sitesPath, site := newSite(t)
	t.Setenv("DESKMIGRATE_SITES_PATH", sitesPath)

	flags := &conf.RuntimeFlags{}
	_, err := execute(t, flags, "--site", site.Name, "set-maintenance-mode", "on")
	require.NoError(t, err)
	assert.Equal(t, sitesPath, flags.SitesPath)

	// An explicit flag wins over the environment.
	_, err = execute(t, &conf.RuntimeFlags{}, "--sites-path", filepath.Join(sitesPath, "missing"), "--site", site.Name, "set-maintenance-mode", "off")
	require.Error(t, err)
}

func TestLogFileFlag(t *testing.T) {
	sitesPath, site := newSite(t)
	logFile := filepath.Join(t.TempDir(), "logs", "deskmigrate.log")

	_, err := execute(t, &conf.RuntimeFlags{}, "--sites-path", sitesPath, "--site", site.Name, "--log-file", logFile, "set-maintenance-mode", "on")
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, logger.Global().Close()) })

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"maintenance mode changed"`))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, &conf.RuntimeFlags{}, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.0.0")
}
