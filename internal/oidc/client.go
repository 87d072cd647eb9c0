package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/matheuscscp/loopback-login/internal/constants"
	"github.com/matheuscscp/loopback-login/internal/logging"
	"github.com/matheuscscp/loopback-login/internal/login"
)

const (
	httpRetryMax = 3
	httpTimeout  = 30 * time.Second
)

type Config struct {
	ClientID        string
	ClientSecret    string
	Scopes          []string
	FilterClaims    bool
	DisableUserInfo bool

	// HTTPClient is used for every request to the provider. Defaults to a
	// retrying client.
	HTTPClient *http.Client
}

// Client talks to OIDC providers on behalf of the login flow. It
// implements login.Client.
type Client struct {
	conf       Config
	httpClient *http.Client
	nowFunc    func() time.Time

	providers   map[string]*providerMetadata
	providersMu sync.Mutex
}

var _ login.Client = (*Client)(nil)

func New(conf Config) *Client {
	httpClient := conf.HTTPClient
	if httpClient == nil {
		rc := retryablehttp.NewClient()
		rc.RetryMax = httpRetryMax
		rc.Logger = logging.Leveled(logrus.StandardLogger())
		httpClient = rc.StandardClient()
		httpClient.Timeout = httpTimeout
	}
	return &Client{
		conf:       conf,
		httpClient: httpClient,
		nowFunc:    time.Now,
		providers:  make(map[string]*providerMetadata),
	}
}

// Authorize discovers authority and prepares an authorization code request
// with PKCE, state and nonce.
func (c *Client) Authorize(ctx context.Context, authority, redirectURI string) (*login.Authorization, error) {
	md, err := c.discover(ctx, authority)
	if err != nil {
		return nil, err
	}

	state, err := generateSecureCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}
	nonce, err := generateSecureCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	codeVerifier := oauth2.GenerateVerifier()

	startURL := c.oauth2Config(md, redirectURI).AuthCodeURL(state,
		oauth2.S256ChallengeOption(codeVerifier),
		oauth2.SetAuthURLParam(constants.QueryParamNonce, nonce))

	logging.FromContext(ctx).WithField("redirectURI", redirectURI).Debug("authorization request prepared")

	return &login.Authorization{
		Authority:    authority,
		StartURL:     startURL,
		RedirectURI:  redirectURI,
		State:        state,
		Nonce:        nonce,
		CodeVerifier: codeVerifier,
	}, nil
}

func (c *Client) oauth2Config(md *providerMetadata, redirectURI string) *oauth2.Config {
	authStyle := oauth2.AuthStyleAutoDetect
	if c.conf.ClientSecret == "" {
		authStyle = oauth2.AuthStyleInParams
	}
	return &oauth2.Config{
		ClientID:     c.conf.ClientID,
		ClientSecret: c.conf.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       c.conf.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   md.AuthorizationEndpoint,
			TokenURL:  md.TokenEndpoint,
			AuthStyle: authStyle,
		},
	}
}

// generateSecureCode returns 32 random bytes, base64url encoded.
func generateSecureCode() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}
