package dispatch

import (
	"fmt"
	"strings"

	"github.com/anjihan3601K/suraksha/phone"
)

type Config struct {
	// Brand prefixes every SMS, e.g. "Suraksha Alert: ...".
	Brand string `toml:"brand"`
	// DefaultCountryCode is prepended to bare ten digit phone numbers.
	DefaultCountryCode string `toml:"default-country-code"`
	// Concurrency bounds the number of in flight sends per alert, 0 means unbounded.
	Concurrency int `toml:"concurrency"`
}

func NewConfig() Config {
	return Config{
		Brand:              "Suraksha",
		DefaultCountryCode: phone.DefaultCountryCode,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Brand) == "" {
		return fmt.Errorf("brand must not be empty")
	}
	cc := strings.TrimPrefix(c.DefaultCountryCode, "+")
	for _, r := range cc {
		if r < '0' || r > '9' {
			return fmt.Errorf("invalid default-country-code %q", c.DefaultCountryCode)
		}
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	return nil
}

func (c Config) policy() phone.Policy {
	return phone.Policy{DefaultCountryCode: c.DefaultCountryCode}
}
