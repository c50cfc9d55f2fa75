package twilio

import (
	"net/url"
	"time"

	"github.com/influxdata/influxdb/toml"
	"github.com/pkg/errors"
)

// DefaultURL is the base URL of the Twilio REST API.
const DefaultURL = "https://api.twilio.com"

// Config is the [twilio] section of the configuration file.
type Config struct {
	// Base URL of the REST API.
	URL string `toml:"url"`
	// Account SID, also the basic auth user name.
	AccountSID string `toml:"account-sid"`
	AuthToken  string `toml:"auth-token"`
	// From is the sending phone number in E.164 form.
	From string `toml:"from"`
	// Timeout of a single API request.
	Timeout toml.Duration `toml:"timeout"`
}

func NewConfig() Config {
	return Config{
		URL:     DefaultURL,
		Timeout: toml.Duration(10 * time.Second),
	}
}

// Validate requires the account credentials and sending number.
func (c Config) Validate() error {
	if c.AccountSID == "" {
		return errors.New("must specify account-sid")
	}
	if c.AuthToken == "" {
		return errors.New("must specify auth-token")
	}
	if c.From == "" {
		return errors.New("must specify from")
	}
	if c.URL == "" {
		return errors.New("must specify url")
	}
	if _, err := url.Parse(c.URL); err != nil {
		return errors.Wrapf(err, "invalid URL %q", c.URL)
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	return nil
}
