package config

import (
	"fmt"
	"net/url"
	"slices"

	"github.com/matheuscscp/loopback-login/internal/constants"
	"github.com/matheuscscp/loopback-login/internal/oidc"
)

type OIDCConfig struct {
	Authority       string   `yaml:"authority" json:"authority"`
	ClientID        string   `yaml:"clientID" json:"clientID"`
	ClientSecret    string   `yaml:"clientSecret" json:"clientSecret"`
	Scopes          []string `yaml:"scopes" json:"scopes"`
	FilterClaims    bool     `yaml:"filterClaims" json:"filterClaims"`
	DisableUserInfo bool     `yaml:"disableUserInfo" json:"disableUserInfo"`
}

func (o *OIDCConfig) validateAndInitialize() error {
	// Apply defaults.
	if o.ClientID == "" {
		o.ClientID = constants.DefaultClientID
	}
	if len(o.Scopes) == 0 {
		o.Scopes = []string{constants.ScopeOpenID, constants.ScopeProfile, constants.ScopeEmail}
	}

	// Validate.
	if o.Authority == "" {
		return fmt.Errorf("oidc.authority must be set")
	}
	u, err := url.Parse(o.Authority)
	if err != nil {
		return fmt.Errorf("oidc.authority is not a valid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("oidc.authority must be an absolute URL: %s", o.Authority)
	}
	if !slices.Contains(o.Scopes, constants.ScopeOpenID) {
		return fmt.Errorf("oidc.scopes must contain '%s'", constants.ScopeOpenID)
	}
	return nil
}

func (o *OIDCConfig) ClientConfig() oidc.Config {
	return oidc.Config{
		ClientID:        o.ClientID,
		ClientSecret:    o.ClientSecret,
		Scopes:          o.Scopes,
		FilterClaims:    o.FilterClaims,
		DisableUserInfo: o.DisableUserInfo,
	}
}
