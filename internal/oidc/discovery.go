package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matheuscscp/loopback-login/internal/constants"
)

const (
	discoveryCacheDuration = 10 * time.Minute
	maxDiscoverySize       = 1 << 20
)

type providerMetadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserInfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`

	deadline time.Time
}

// discover returns the provider metadata of authority, fetching it at most
// once per cache period.
func (c *Client) discover(ctx context.Context, authority string) (*providerMetadata, error) {
	authority = strings.TrimSuffix(authority, "/")
	now := c.nowFunc()

	c.providersMu.Lock()
	md, ok := c.providers[authority]
	c.providersMu.Unlock()
	if ok && now.Before(md.deadline) {
		return md, nil
	}

	// Fetched without the lock. Concurrent misses for one authority may
	// both fetch; the last one is cached.
	md, err := c.fetchMetadata(ctx, authority)
	if err != nil {
		return nil, fmt.Errorf("failed to discover provider '%s': %w", authority, err)
	}
	md.deadline = now.Add(discoveryCacheDuration)

	c.providersMu.Lock()
	c.providers[authority] = md
	c.providersMu.Unlock()
	return md, nil
}

func (c *Client) fetchMetadata(ctx context.Context, authority string) (*providerMetadata, error) {
	if err := validateAuthority(authority); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authority+constants.DiscoveryPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery: %s", resp.Status)
	}

	var md providerMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDiscoverySize)).Decode(&md); err != nil {
		return nil, fmt.Errorf("failed to decode discovery document: %w", err)
	}

	if strings.TrimSuffix(md.Issuer, "/") != authority {
		return nil, fmt.Errorf("issuer '%s' does not match authority '%s'", md.Issuer, authority)
	}
	for name, v := range map[string]string{
		"authorization_endpoint": md.AuthorizationEndpoint,
		"token_endpoint":         md.TokenEndpoint,
		"jwks_uri":               md.JWKSURI,
	} {
		if v == "" {
			return nil, fmt.Errorf("discovery document has no %s", name)
		}
	}
	return &md, nil
}

// validateAuthority requires https, except for loopback hosts.
func validateAuthority(authority string) error {
	u, err := url.Parse(authority)
	if err != nil {
		return fmt.Errorf("invalid authority: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("authority '%s' has no host", authority)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if isLoopbackHost(u.Hostname()) {
			return nil
		}
		return fmt.Errorf("authority '%s' must use https", authority)
	default:
		return fmt.Errorf("authority '%s' has unsupported scheme '%s'", authority, u.Scheme)
	}
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
