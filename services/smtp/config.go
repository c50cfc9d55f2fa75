package smtp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/influxdb/toml"
)

type Config struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	// Whether to skip TLS verify.
	NoVerify bool `toml:"no-verify"`
	// From address, defaults to Username.
	From string `toml:"from"`
	// FromName is the display name of the sender.
	FromName string `toml:"from-name"`
	// Timeout bounds one whole SMTP transaction, from dial to QUIT.
	Timeout toml.Duration `toml:"timeout"`
}

func NewConfig() Config {
	return Config{
		Host:     "smtp.gmail.com",
		Port:     587,
		FromName: "Suraksha Alerts",
		Timeout:  toml.Duration(10 * time.Second),
	}
}

func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port <= 0 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Username == "" {
		return errors.New("username is required")
	}
	if c.Password == "" {
		return errors.New("password is required")
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	// Poor mans email validation, enough to catch user error.
	if !strings.ContainsRune(c.from(), '@') {
		return fmt.Errorf("invalid from email address: %q", c.from())
	}
	return nil
}

// DefaultSSLPort is the port of SMTP over implicit TLS.
const DefaultSSLPort = 465

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) from() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}
