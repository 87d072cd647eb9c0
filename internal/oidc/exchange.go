package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/matheuscscp/loopback-login/internal/constants"
	"github.com/matheuscscp/loopback-login/internal/logging"
	"github.com/matheuscscp/loopback-login/internal/login"
)

const maxUserInfoSize = 1 << 20

// Exchange validates the raw authorization response, redeems the code and
// validates the ID token. Every failure is reported in the Result.
func (c *Client) Exchange(ctx context.Context, auth *login.Authorization, payload string) *login.Result {
	l := logging.FromContext(ctx)

	params, err := url.ParseQuery(strings.TrimPrefix(strings.TrimSpace(payload), "?"))
	if err != nil {
		return login.Failed(login.StatusUnknownError, "invalid authorization response: %v", err)
	}

	if e := params.Get(constants.QueryParamError); e != "" {
		l.WithField("error", e).Warn("authorization server returned an error")
		return &login.Result{
			Status:           login.StatusAuthorizationError,
			Error:            e,
			ErrorDescription: params.Get(constants.QueryParamErrorDescription),
		}
	}

	if params.Get(constants.QueryParamState) != auth.State {
		return login.Failed(login.StatusAuthorizationError, "invalid state")
	}

	code := params.Get(constants.QueryParamAuthorizationCode)
	if code == "" {
		return login.Failed(login.StatusUnknownError, "missing authorization code")
	}

	md, err := c.discover(ctx, auth.Authority)
	if err != nil {
		return login.Failed(login.StatusUnknownError, "%v", err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	oauth2Conf := c.oauth2Config(md, auth.RedirectURI)
	token, err := oauth2Conf.Exchange(ctx, code, oauth2.VerifierOption(auth.CodeVerifier))
	if err != nil {
		l.WithError(err).Error("failed to exchange authorization code for tokens")
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode != "" {
			return &login.Result{
				Status:           login.StatusAuthorizationError,
				Error:            re.ErrorCode,
				ErrorDescription: re.ErrorDescription,
			}
		}
		return login.Failed(login.StatusUnknownError, "failed to exchange authorization code: %v", err)
	}

	idToken, _ := token.Extra(constants.TokenExtraIDToken).(string)
	if idToken == "" {
		return login.Failed(login.StatusAuthorizationError, "token response has no id_token")
	}

	claims, err := c.verifyIDToken(ctx, md, idToken, auth.Nonce)
	if err != nil {
		l.WithError(err).Error("failed to validate id token")
		return login.Failed(login.StatusAuthorizationError, "invalid id_token: %v", err)
	}
	subject, _ := claims[constants.ClaimSubject].(string)

	if !c.conf.DisableUserInfo && md.UserInfoEndpoint != "" {
		userInfo, err := c.fetchUserInfo(ctx, oauth2Conf, token, md.UserInfoEndpoint)
		if err != nil {
			l.WithError(err).Error("failed to load user info")
			return login.Failed(login.StatusUnknownError, "failed to load user info: %v", err)
		}
		if sub, _ := userInfo[constants.ClaimSubject].(string); sub != subject {
			return login.Failed(login.StatusAuthorizationError, "user info subject '%s' does not match id_token subject '%s'", sub, subject)
		}
		for k, v := range userInfo {
			if _, ok := claims[k]; !ok {
				claims[k] = v
			}
		}
	}

	if c.conf.FilterClaims {
		filterProtocolClaims(claims)
	}

	l.WithField("subject", subject).Info("user signed in")

	return &login.Result{
		Status:       login.StatusSuccess,
		AccessToken:  token.AccessToken,
		IDToken:      idToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.Type(),
		Expiry:       token.Expiry,
		Subject:      subject,
		Claims:       claims,
	}
}

func (c *Client) fetchUserInfo(ctx context.Context, conf *oauth2.Config,
	token *oauth2.Token, endpoint string) (map[string]any, error) {

	client := conf.Client(ctx, token)
	resp, err := client.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo: %s", resp.Status)
	}

	var claims map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoSize)).Decode(&claims); err != nil {
		return nil, fmt.Errorf("error unmarshaling userinfo response: %w", err)
	}
	return claims, nil
}

var protocolClaims = []string{
	"iss", "aud", "exp", "nbf", "iat", "nonce", "azp",
	"c_hash", "at_hash", "s_hash", "auth_time", "amr", "idp", "sid",
}

func filterProtocolClaims(claims map[string]any) {
	for _, k := range protocolClaims {
		delete(claims, k)
	}
}
