package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigFile = "/etc/loopback-login/config.yaml"
	envConfigFile     = "LOOPBACK_LOGIN_CONFIG"
)

type Config struct {
	OIDC     OIDCConfig     `yaml:"oidc" json:"oidc"`
	Listener ListenerConfig `yaml:"listener" json:"listener"`
}

// Load reads the configuration from fileName, falling back to
// $LOOPBACK_LOGIN_CONFIG and then to the default location. Only the default
// location may be absent. Validation is left to the caller, so that flags
// can override file values first.
func Load(fileName string) (*Config, error) {
	if fileName == "" {
		fileName = os.Getenv(envConfigFile)
	}
	optional := false
	if fileName == "" {
		fileName = defaultConfigFile
		optional = true
	}

	var cfg Config
	f, err := os.Open(fileName)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return &cfg, nil
		}
		return nil, err
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file '%s': %w", fileName, err)
	}
	return &cfg, nil
}

func (c *Config) ValidateAndInitialize() error {
	if err := c.OIDC.validateAndInitialize(); err != nil {
		return err
	}
	if err := c.Listener.validateAndInitialize(); err != nil {
		return err
	}
	return nil
}
