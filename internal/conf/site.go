// Package conf resolves a bench site and loads its database settings from
// the site's JSON configuration files.
package conf

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/helpdesk-tools/deskmigrate/internal/errors"
)

const (
	CommonSiteConfigFile = "common_site_config.json"
	SiteConfigFile       = "site_config.json"
	CurrentSiteFile      = "currentsite.txt"
)

// Site is a single site directory inside a bench sites path.
type Site struct {
	Name      string
	SitesPath string
}

// Dir returns the site's directory.
func (s *Site) Dir() string {
	return filepath.Join(s.SitesPath, s.Name)
}

// ConfigPath returns the path of the site's site_config.json.
func (s *Site) ConfigPath() string {
	return filepath.Join(s.Dir(), SiteConfigFile)
}

// CommonConfigPath returns the path of the bench-wide common_site_config.json.
func (s *Site) CommonConfigPath() string {
	return filepath.Join(s.SitesPath, CommonSiteConfigFile)
}

// ResolveSite picks the site to operate on: the explicit name if given,
// otherwise currentsite.txt, otherwise default_site from the common config.
func ResolveSite(sitesPath, name string) (*Site, error) {
	if sitesPath == "" {
		sitesPath = "."
	}

	if name == "" {
		name = currentSite(sitesPath)
	}
	if name == "" {
		name = defaultSite(sitesPath)
	}
	if name == "" {
		return nil, errors.Newf("no site given and none set in %s or %s", CurrentSiteFile, CommonSiteConfigFile).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("sites_path", sitesPath).
			Build()
	}

	site := &Site{Name: name, SitesPath: sitesPath}
	info, err := os.Stat(site.Dir())
	if err != nil || !info.IsDir() {
		return nil, errors.Newf("site %q does not exist in %s", name, sitesPath).
			Component("configuration").
			Category(errors.CategoryNotFound).
			Context("site", name).
			Context("sites_path", sitesPath).
			Build()
	}

	return site, nil
}

func currentSite(sitesPath string) string {
	data, err := os.ReadFile(filepath.Join(sitesPath, CurrentSiteFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func defaultSite(sitesPath string) string {
	data, err := os.ReadFile(filepath.Join(sitesPath, CommonSiteConfigFile))
	if err != nil || !gjson.ValidBytes(data) {
		return ""
	}
	return strings.TrimSpace(gjson.GetBytes(data, "default_site").String())
}
