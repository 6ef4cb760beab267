package conf

import (
	"github.com/helpdesk-tools/deskmigrate/internal/logger"
)

// RuntimeFlags holds the persistent command line flags every subcommand sees.
type RuntimeFlags struct {
	SitesPath string
	Site      string
	Debug     bool
	LogFile   string
}

// ResolveSite resolves the site selected by the flags.
func (f *RuntimeFlags) ResolveSite() (*Site, error) {
	return ResolveSite(f.SitesPath, f.Site)
}

// LoggingConfig builds the logger configuration for the flags: console text
// output, plus rotated JSON output when a log file is given.
func (f *RuntimeFlags) LoggingConfig() *logger.LoggingConfig {
	level := string(logger.LogLevelInfo)
	if f.Debug {
		level = string(logger.LogLevelDebug)
	}

	cfg := &logger.LoggingConfig{
		DefaultLevel: level,
		Timezone:     "Local",
		Console:      &logger.ConsoleOutput{Enabled: true, Level: level},
	}
	if f.LogFile != "" {
		cfg.FileOutput = &logger.FileOutput{
			Enabled:  true,
			Path:     f.LogFile,
			Level:    level,
			Compress: true,
		}
		// SQL statements are only worth keeping in the file.
		if f.Debug {
			cfg.FileOutput.Level = string(logger.LogLevelTrace)
			cfg.ModuleLevels = map[string]string{"datastore": string(logger.LogLevelTrace)}
		}
	}
	return cfg
}
