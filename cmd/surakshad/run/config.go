package run

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/anjihan3601K/suraksha/server"
	"github.com/pkg/errors"
)

// FindConfigPath returns the config path specified or searches for a valid config path.
// It will return a path by searching in this order:
//   1. The given configPath
//   2. The environment variable SURAKSHA_CONFIG_PATH
//   3. The first non empty suraksha.conf file in the path:
//        - ~/.suraksha/
//        - /etc/suraksha/
func FindConfigPath(configPath string) string {
	if configPath != "" {
		if configPath == os.DevNull {
			return ""
		}
		return configPath
	} else if envVar := os.Getenv("SURAKSHA_CONFIG_PATH"); envVar != "" {
		return envVar
	}

	for _, path := range []string{
		os.ExpandEnv("${HOME}/.suraksha/suraksha.conf"),
		"/etc/suraksha/suraksha.conf",
	} {
		if fi, err := os.Stat(path); err == nil && fi.Size() != 0 {
			return path
		}
	}
	return ""
}

// LoadConfig decodes the config at path over the defaults and applies environment overrides.
// A blank path yields the demo configuration.
// The result is not validated.
func LoadConfig(path string, getenv func(string) string) (*server.Config, error) {
	config, err := server.NewDemoConfig()
	if err != nil {
		config = server.NewConfig()
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, config); err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", path)
		}
	}
	if err := config.ApplyEnvOverrides(getenv); err != nil {
		return nil, errors.Wrap(err, "apply env config")
	}
	return config, nil
}
