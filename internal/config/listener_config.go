package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/matheuscscp/loopback-login/internal/callback"
)

var pathSuffixRegex = regexp.MustCompile(`^[A-Za-z0-9._~/-]*$`)

type ListenerConfig struct {
	// Port 0 allocates a free port for every login.
	Port          int           `yaml:"port" json:"port"`
	PathSuffix    string        `yaml:"pathSuffix" json:"pathSuffix"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	ShutdownGrace time.Duration `yaml:"shutdownGrace" json:"shutdownGrace"`
}

func (l *ListenerConfig) validateAndInitialize() error {
	// Apply defaults.
	if l.Timeout == 0 {
		l.Timeout = callback.DefaultTimeout
	}
	if l.ShutdownGrace == 0 {
		l.ShutdownGrace = callback.DefaultShutdownGrace
	}
	l.PathSuffix = strings.Trim(l.PathSuffix, "/")

	// Validate.
	if l.Port < 0 || l.Port > 65535 {
		return fmt.Errorf("listener.port must be between 0 and 65535, got %d", l.Port)
	}
	if l.Timeout < 0 {
		return fmt.Errorf("listener.timeout must be positive, got %s", l.Timeout)
	}
	if l.ShutdownGrace < 0 {
		return fmt.Errorf("listener.shutdownGrace must be positive, got %s", l.ShutdownGrace)
	}
	if !pathSuffixRegex.MatchString(l.PathSuffix) {
		return fmt.Errorf("listener.pathSuffix contains invalid characters: %s", l.PathSuffix)
	}
	return nil
}

func (l *ListenerConfig) CallbackConfig() callback.Config {
	return callback.Config{
		Port:          l.Port,
		PathSuffix:    l.PathSuffix,
		Timeout:       l.Timeout,
		ShutdownGrace: l.ShutdownGrace,
	}
}
