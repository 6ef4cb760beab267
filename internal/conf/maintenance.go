package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/helpdesk-tools/deskmigrate/internal/errors"
)

const maintenanceModeKey = "maintenance_mode"

// MaintenanceOffCommand clears the flag by hand once a failed run is repaired.
const MaintenanceOffCommand = "deskmigrate set-maintenance-mode off"

// SetMaintenanceMode writes maintenance_mode as 1 or 0 into the site's
// site_config.json. Other keys and the file's formatting are kept.
func SetMaintenanceMode(site *Site, on bool) error {
	path := site.ConfigPath()

	data, mode, err := readSiteConfig(path)
	if err != nil {
		return maintenanceError(err, site, "read")
	}

	value := 0
	if on {
		value = 1
	}

	updated, err := sjson.SetBytes(data, maintenanceModeKey, value)
	if err != nil {
		return maintenanceError(fmt.Errorf("failed to set %s: %w", maintenanceModeKey, err), site, "update")
	}

	if err := writeFileAtomic(path, updated, mode); err != nil {
		return maintenanceError(err, site, "write")
	}
	return nil
}

// MaintenanceMode reports whether the site currently has maintenance mode on.
func MaintenanceMode(site *Site) (bool, error) {
	data, _, err := readSiteConfig(site.ConfigPath())
	if err != nil {
		return false, maintenanceError(err, site, "read")
	}

	result := gjson.GetBytes(data, maintenanceModeKey)
	return result.Exists() && result.Int() != 0, nil
}

// readSiteConfig returns the file contents, or an empty object when the
// file does not exist yet.
func readSiteConfig(path string) ([]byte, os.FileMode, error) {
	const defaultMode = 0o644

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return []byte("{}\n"), defaultMode, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, 0, fmt.Errorf("%s is not valid JSON", path)
	}
	return data, info.Mode().Perm(), nil
}

// writeFileAtomic writes through a temporary file in the same directory
// and renames it over path.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // already renamed on success

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func maintenanceError(err error, site *Site, operation string) error {
	return errors.New(err).
		Component("configuration").
		Category(errors.CategoryFileIO).
		Context("operation", "maintenance-mode-"+operation).
		Context("site", site.Name).
		Build()
}
