package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/matheuscscp/loopback-login/internal/constants"
)

const clockSkew = 5 * time.Minute

// verifyIDToken checks the signature of idToken against the provider keys,
// then issuer, audience, lifetime and nonce. It returns every claim.
func (c *Client) verifyIDToken(ctx context.Context, md *providerMetadata,
	idToken, nonce string) (map[string]any, error) {

	keys, err := jwk.Fetch(ctx, md.JWKSURI, jwk.WithHTTPClient(c.httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch provider keys: %w", err)
	}

	token, err := jwt.ParseString(idToken,
		jwt.WithKeySet(keys, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithIssuer(md.Issuer),
		jwt.WithAudience(c.conf.ClientID),
		jwt.WithClock(jwt.ClockFunc(c.nowFunc)),
		jwt.WithAcceptableSkew(clockSkew))
	if err != nil {
		return nil, err
	}

	if _, ok := token.Subject(); !ok {
		return nil, fmt.Errorf("missing %s claim", constants.ClaimSubject)
	}

	var tokenNonce string
	if err := token.Get(constants.ClaimNonce, &tokenNonce); err != nil || tokenNonce != nonce {
		return nil, fmt.Errorf("%s mismatch", constants.ClaimNonce)
	}

	b, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal id token claims: %w", err)
	}
	var claims map[string]any
	if err := json.Unmarshal(b, &claims); err != nil {
		return nil, fmt.Errorf("failed to unmarshal id token claims: %w", err)
	}
	return claims, nil
}
