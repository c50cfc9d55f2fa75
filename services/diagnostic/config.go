package diagnostic

import (
	"fmt"
	"strings"
)

type Config struct {
	// File is STDERR, STDOUT or a path to a log file.
	File  string `toml:"file"`
	Level string `toml:"level"`
	// Format is either logfmt or json.
	Format string `toml:"format"`
}

func NewConfig() Config {
	return Config{
		File:   "STDERR",
		Level:  "INFO",
		Format: "logfmt",
	}
}

func (c Config) Validate() error {
	if c.File == "" {
		return fmt.Errorf("logging file must not be empty")
	}
	if _, err := parseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "logfmt", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
	return nil
}
