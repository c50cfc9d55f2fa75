package server

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/anjihan3601K/suraksha/dispatch"
	"github.com/anjihan3601K/suraksha/services/diagnostic"
	"github.com/anjihan3601K/suraksha/services/httpd"
	"github.com/anjihan3601K/suraksha/services/smtp"
	"github.com/anjihan3601K/suraksha/services/storage"
	"github.com/anjihan3601K/suraksha/services/twilio"
	"github.com/influxdata/influxdb/toml"
	"github.com/pkg/errors"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "SURAKSHA"

// Config represents the configuration format for the surakshad binary.
type Config struct {
	HTTP     httpd.Config      `toml:"http"`
	Storage  storage.Config    `toml:"storage"`
	Logging  diagnostic.Config `toml:"logging"`
	Dispatch dispatch.Config   `toml:"dispatch"`

	// Channel providers
	SMTP   smtp.Config   `toml:"smtp"`
	Twilio twilio.Config `toml:"twilio"`
}

// NewConfig returns an instance of Config with reasonable defaults.
// Provider credentials have no defaults and must be configured.
func NewConfig() *Config {
	return &Config{
		HTTP:     httpd.NewConfig(),
		Storage:  storage.NewConfig(),
		Logging:  diagnostic.NewConfig(),
		Dispatch: dispatch.NewConfig(),
		SMTP:     smtp.NewConfig(),
		Twilio:   twilio.NewConfig(),
	}
}

// NewDemoConfig returns the config that runs when no config is specified.
func NewDemoConfig() (*Config, error) {
	c := NewConfig()

	var homeDir string
	u, err := user.Current()
	if err == nil {
		homeDir = u.HomeDir
	} else if os.Getenv("HOME") != "" {
		homeDir = os.Getenv("HOME")
	} else {
		return nil, fmt.Errorf("failed to determine current user for storage")
	}

	c.Storage.BoltDBPath = filepath.Join(homeDir, ".suraksha", filepath.Base(c.Storage.BoltDBPath))
	return c, nil
}

// Validate returns an error if the config is invalid.
// Missing provider credentials are reported here so the server never starts without them.
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return errors.Wrap(err, "invalid http config")
	}
	if err := c.Storage.Validate(); err != nil {
		return errors.Wrap(err, "invalid storage config")
	}
	if err := c.Logging.Validate(); err != nil {
		return errors.Wrap(err, "invalid logging config")
	}
	if err := c.Dispatch.Validate(); err != nil {
		return errors.Wrap(err, "invalid dispatch config")
	}
	if err := c.SMTP.Validate(); err != nil {
		return errors.Wrap(err, "invalid smtp config")
	}
	if err := c.Twilio.Validate(); err != nil {
		return errors.Wrap(err, "invalid twilio config")
	}
	return nil
}

// ApplyEnvOverrides sets config values from SURAKSHA_<SECTION>_<KEY> variables,
// e.g. SURAKSHA_TWILIO_AUTH_TOKEN.
func (c *Config) ApplyEnvOverrides(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	return applyEnvOverrides(getenv, EnvPrefix, "", reflect.ValueOf(c))
}

// applyEnvOverrides walks the toml tagged fields of spec, looking up one
// variable per scalar field under prefix.
func applyEnvOverrides(getenv func(string) string, prefix, fieldName string, spec reflect.Value) error {
	s := reflect.Indirect(spec)
	if s.Kind() != reflect.Struct {
		value := getenv(prefix)
		if value == "" {
			return nil
		}
		if err := setFromString(s, value); err != nil {
			target := prefix
			if fieldName != "" {
				target += " to " + fieldName
			}
			return fmt.Errorf("failed to apply %s using type %s and value '%s'", target, s.Type(), value)
		}
		return nil
	}

	t := s.Type()
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		name := t.Field(i).Tag.Get("toml")
		if !f.CanSet() || name == "" || name == "-" {
			continue
		}
		// Shells do not allow hyphens in variable names.
		key := strings.ToUpper(prefix + "_" + strings.ReplaceAll(name, "-", "_"))
		if err := applyEnvOverrides(getenv, key, t.Field(i).Name, f); err != nil {
			return err
		}
	}
	return nil
}

// setFromString parses value into the scalar s, toml.Duration fields take Go durations.
func setFromString(s reflect.Value, value string) error {
	switch s.Kind() {
	case reflect.String:
		s.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if s.Type() == reflect.TypeOf(toml.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			s.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 0, s.Type().Bits())
		if err != nil {
			return err
		}
		s.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		s.SetBool(b)
	}
	return nil
}
