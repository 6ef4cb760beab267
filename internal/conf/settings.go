package conf

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"

	"github.com/helpdesk-tools/deskmigrate/internal/errors"
)

// Supported database types, matching the site config's db_type values.
const (
	DBTypeMariaDB  = "mariadb"
	DBTypePostgres = "postgres"
	DBTypeSQLite   = "sqlite"
)

const (
	DefaultDBHost       = "127.0.0.1"
	DefaultMariaDBPort  = 3306
	DefaultPostgresPort = 5432
)

// Settings holds what the migration needs from a site's configuration.
type Settings struct {
	Site *Site

	DBType     string
	DBName     string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     int
	DBPath     string // sqlite only

	SentryDSN string
}

// Load reads common_site_config.json and the site's site_config.json, the
// latter taking precedence, and applies environment overrides.
func Load(site *Site) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetDefault("db_type", DBTypeMariaDB)
	v.SetDefault("db_host", DefaultDBHost)

	if err := bindEnvVars(v); err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("site", site.Name).
			Build()
	}

	for _, path := range []string{site.CommonConfigPath(), site.ConfigPath()} {
		if err := mergeConfigFile(v, path); err != nil {
			return nil, errors.New(err).
				Component("configuration").
				Category(errors.CategoryConfiguration).
				Context("site", site.Name).
				Context("file", path).
				Build()
		}
	}

	s := &Settings{
		Site:       site,
		DBType:     strings.ToLower(strings.TrimSpace(v.GetString("db_type"))),
		DBName:     v.GetString("db_name"),
		DBUser:     v.GetString("db_user"),
		DBPassword: v.GetString("db_password"),
		DBHost:     v.GetString("db_host"),
		DBPort:     portValue(v.GetString("db_port")),
		DBPath:     v.GetString("db_path"),
		SentryDSN:  v.GetString("sentry_dsn"),
	}
	s.applyDefaults()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// mergeConfigFile merges a JSON config file into v; a missing file is fine.
func mergeConfigFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// portValue accepts the port as either a JSON number or a string.
func portValue(raw string) int {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return port
}

func (s *Settings) applyDefaults() {
	if s.DBType == "mysql" {
		s.DBType = DBTypeMariaDB
	}
	if s.DBType == "postgresql" {
		s.DBType = DBTypePostgres
	}
	if s.DBUser == "" {
		s.DBUser = s.DBName
	}
	if s.DBHost == "" {
		s.DBHost = DefaultDBHost
	}
	if s.DBPort == 0 {
		switch s.DBType {
		case DBTypePostgres:
			s.DBPort = DefaultPostgresPort
		case DBTypeMariaDB:
			s.DBPort = DefaultMariaDBPort
		}
	}
	if s.DBType == DBTypeSQLite && s.Site != nil {
		switch {
		case s.DBPath == "" && s.DBName != "":
			s.DBPath = filepath.Join(s.Site.Dir(), "db", s.DBName+".db")
		case s.DBPath != "" && !filepath.IsAbs(s.DBPath):
			s.DBPath = filepath.Join(s.Site.Dir(), s.DBPath)
		}
	}
}

// Validate checks that the settings describe a reachable database.
func (s *Settings) Validate() error {
	var problem string
	switch {
	case s.DBName == "":
		problem = "db_name is not set"
	case s.DBType != DBTypeMariaDB && s.DBType != DBTypePostgres && s.DBType != DBTypeSQLite:
		problem = fmt.Sprintf("unsupported db_type %q", s.DBType)
	case s.DBType != DBTypeSQLite && (s.DBPort < 1 || s.DBPort > 65535):
		problem = fmt.Sprintf("invalid db_port %d", s.DBPort)
	case s.DBType == DBTypeSQLite && s.DBPath == "":
		problem = "db_path is not set"
	}

	if problem == "" {
		return nil
	}

	site := ""
	if s.Site != nil {
		site = s.Site.Name
	}
	return errors.Newf("invalid site configuration: %s", problem).
		Component("configuration").
		Category(errors.CategoryValidation).
		Context("site", site).
		Build()
}

// DSN returns the driver connection string for the configured database.
func (s *Settings) DSN() string {
	switch s.DBType {
	case DBTypeMariaDB:
		return s.mysqlConfig(s.DBPassword).FormatDSN()
	case DBTypePostgres:
		return s.postgresDSN(s.DBPassword)
	default:
		return s.DBPath
	}
}

// SanitizedDSN returns the DSN with the password masked, for logging.
func (s *Settings) SanitizedDSN() string {
	const mask = "****"
	switch s.DBType {
	case DBTypeMariaDB:
		return s.mysqlConfig(mask).FormatDSN()
	case DBTypePostgres:
		return s.postgresDSN(mask)
	default:
		return s.DBPath
	}
}

func (s *Settings) mysqlConfig(password string) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = s.DBUser
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(s.DBHost, strconv.Itoa(s.DBPort))
	cfg.DBName = s.DBName
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg
}

func (s *Settings) postgresDSN(password string) string {
	parts := []string{
		"host=" + s.DBHost,
		"port=" + strconv.Itoa(s.DBPort),
		"user=" + s.DBUser,
		"dbname=" + s.DBName,
		"sslmode=disable",
	}
	if password != "" {
		parts = append(parts, "password="+quotePostgresValue(password))
	}
	return strings.Join(parts, " ")
}

func quotePostgresValue(value string) string {
	if !strings.ContainsAny(value, ` '\`) {
		return value
	}
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `\'`)
	return "'" + value + "'"
}
