package storage

import (
	"time"

	"github.com/influxdata/influxdb/toml"
	"github.com/pkg/errors"
)

type Config struct {
	// Path to the bbolt database file.
	BoltDBPath string `toml:"boltdb"`
	// How long to wait for the database file lock.
	OpenTimeout toml.Duration `toml:"open-timeout"`
}

func NewConfig() Config {
	return Config{
		BoltDBPath:  "./suraksha.db",
		OpenTimeout: toml.Duration(5 * time.Second),
	}
}

func (c Config) Validate() error {
	if c.BoltDBPath == "" {
		return errors.New("must specify storage 'boltdb' path")
	}
	if c.OpenTimeout < 0 {
		return errors.New("open-timeout must not be negative")
	}
	return nil
}
