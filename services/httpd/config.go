package httpd

import (
	"time"

	"github.com/influxdata/influxdb/toml"
	"github.com/pkg/errors"
)

const (
	DefaultShutdownTimeout = toml.Duration(time.Second * 10)
)

type Config struct {
	Enabled         bool          `toml:"enabled"`
	BindAddress     string        `toml:"bind-address"`
	LogEnabled      bool          `toml:"log-enabled"`
	ShutdownTimeout toml.Duration `toml:"shutdown-timeout"`
}

func NewConfig() Config {
	return Config{
		Enabled:         true,
		BindAddress:     ":9494",
		LogEnabled:      true,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

func (c Config) Validate() error {
	if c.Enabled && c.BindAddress == "" {
		return errors.New("must specify bind-address")
	}
	if c.ShutdownTimeout < 0 {
		return errors.New("shutdown-timeout must not be negative")
	}
	return nil
}
