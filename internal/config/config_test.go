package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/matheuscscp/loopback-login/internal/callback"
)

func TestConfig_ValidateAndInitialize(t *testing.T) {
	tests := []struct {
		name           string
		config         Config
		expectedErrMsg string
		expectedConfig Config
	}{
		{
			name:           "missing authority",
			config:         Config{},
			expectedErrMsg: "oidc.authority must be set",
		},
		{
			name: "relative authority",
			config: Config{
				OIDC: OIDCConfig{Authority: "idp.example.com"},
			},
			expectedErrMsg: "oidc.authority must be an absolute URL: idp.example.com",
		},
		{
			name: "scopes without openid",
			config: Config{
				OIDC: OIDCConfig{
					Authority: "https://idp.example.com",
					Scopes:    []string{"profile"},
				},
			},
			expectedErrMsg: "oidc.scopes must contain 'openid'",
		},
		{
			name: "port out of range",
			config: Config{
				OIDC:     OIDCConfig{Authority: "https://idp.example.com"},
				Listener: ListenerConfig{Port: 70000},
			},
			expectedErrMsg: "listener.port must be between 0 and 65535, got 70000",
		},
		{
			name: "negative timeout",
			config: Config{
				OIDC:     OIDCConfig{Authority: "https://idp.example.com"},
				Listener: ListenerConfig{Timeout: -time.Second},
			},
			expectedErrMsg: "listener.timeout must be positive, got -1s",
		},
		{
			name: "negative shutdown grace",
			config: Config{
				OIDC:     OIDCConfig{Authority: "https://idp.example.com"},
				Listener: ListenerConfig{ShutdownGrace: -time.Second},
			},
			expectedErrMsg: "listener.shutdownGrace must be positive, got -1s",
		},
		{
			name: "invalid path suffix",
			config: Config{
				OIDC:     OIDCConfig{Authority: "https://idp.example.com"},
				Listener: ListenerConfig{PathSuffix: "cb?x=1"},
			},
			expectedErrMsg: "listener.pathSuffix contains invalid characters: cb?x=1",
		},
		{
			name: "defaults applied",
			config: Config{
				OIDC: OIDCConfig{Authority: "https://idp.example.com"},
			},
			expectedConfig: Config{
				OIDC: OIDCConfig{
					Authority: "https://idp.example.com",
					ClientID:  "Shell.Windows",
					Scopes:    []string{"openid", "profile", "email"},
				},
				Listener: ListenerConfig{
					Timeout:       callback.DefaultTimeout,
					ShutdownGrace: callback.DefaultShutdownGrace,
				},
			},
		},
		{
			name: "explicit values kept",
			config: Config{
				OIDC: OIDCConfig{
					Authority:       "https://idp.example.com",
					ClientID:        "cli",
					ClientSecret:    "secret",
					Scopes:          []string{"openid", "offline_access"},
					FilterClaims:    true,
					DisableUserInfo: true,
				},
				Listener: ListenerConfig{
					Port:          5002,
					PathSuffix:    "/signin-oidc/",
					Timeout:       time.Minute,
					ShutdownGrace: 500 * time.Millisecond,
				},
			},
			expectedConfig: Config{
				OIDC: OIDCConfig{
					Authority:       "https://idp.example.com",
					ClientID:        "cli",
					ClientSecret:    "secret",
					Scopes:          []string{"openid", "offline_access"},
					FilterClaims:    true,
					DisableUserInfo: true,
				},
				Listener: ListenerConfig{
					Port:          5002,
					PathSuffix:    "signin-oidc",
					Timeout:       time.Minute,
					ShutdownGrace: 500 * time.Millisecond,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			err := tt.config.ValidateAndInitialize()

			if tt.expectedErrMsg != "" {
				g.Expect(err).To(MatchError(tt.expectedErrMsg))
				return
			}
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(tt.config).To(Equal(tt.expectedConfig))
		})
	}
}

func TestLoad(t *testing.T) {
	const content = `
oidc:
  authority: https://idp.example.com
  clientID: cli
  filterClaims: true
listener:
  port: 5002
  pathSuffix: callback
  timeout: 2m
`

	t.Run("explicit file", func(t *testing.T) {
		g := NewWithT(t)

		fileName := filepath.Join(t.TempDir(), "config.yaml")
		g.Expect(os.WriteFile(fileName, []byte(content), 0o600)).To(Succeed())

		conf, err := Load(fileName)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(conf.OIDC.Authority).To(Equal("https://idp.example.com"))
		g.Expect(conf.OIDC.ClientID).To(Equal("cli"))
		g.Expect(conf.OIDC.FilterClaims).To(BeTrue())
		g.Expect(conf.Listener.Port).To(Equal(5002))
		g.Expect(conf.Listener.Timeout).To(Equal(2 * time.Minute))

		g.Expect(conf.ValidateAndInitialize()).To(Succeed())
		g.Expect(conf.Listener.CallbackConfig()).To(Equal(callback.Config{
			Port:          5002,
			PathSuffix:    "callback",
			Timeout:       2 * time.Minute,
			ShutdownGrace: callback.DefaultShutdownGrace,
		}))
		g.Expect(conf.OIDC.ClientConfig().Scopes).To(Equal([]string{"openid", "profile", "email"}))
	})

	t.Run("file from env", func(t *testing.T) {
		g := NewWithT(t)

		fileName := filepath.Join(t.TempDir(), "config.yaml")
		g.Expect(os.WriteFile(fileName, []byte(content), 0o600)).To(Succeed())
		t.Setenv(envConfigFile, fileName)

		conf, err := Load("")
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(conf.OIDC.ClientID).To(Equal("cli"))
	})

	t.Run("missing explicit file", func(t *testing.T) {
		g := NewWithT(t)

		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		g.Expect(err).To(MatchError(os.ErrNotExist))
	})

	t.Run("malformed file", func(t *testing.T) {
		g := NewWithT(t)

		fileName := filepath.Join(t.TempDir(), "config.yaml")
		g.Expect(os.WriteFile(fileName, []byte("oidc: [\n"), 0o600)).To(Succeed())

		_, err := Load(fileName)
		g.Expect(err).To(HaveOccurred())
		g.Expect(err.Error()).To(ContainSubstring("failed to decode config file"))
	})
}
