// Package oidctest runs an in-process OIDC provider for tests. It supports
// the authorization code flow with PKCE and signs ID tokens with rotating
// RSA keys.
package oidctest

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/matheuscscp/loopback-login/internal/constants"
)

const (
	PathAuthorize = "/connect/authorize"
	PathToken     = "/connect/token"
	PathUserInfo  = "/connect/userinfo"
	PathJWKS      = "/.well-known/jwks"

	tokenDuration = time.Hour
)

// Server knobs must be set before the login starts.
type Server struct {
	*httptest.Server

	ClientID string
	Subject  string

	// Claims are added to every ID token.
	Claims map[string]any
	// UserInfo is served by the userinfo endpoint. "sub" defaults to Subject.
	UserInfo map[string]any
	// AuthorizeError makes the authorization endpoint redirect with an error.
	AuthorizeError string
	// TokenError makes the token endpoint fail with this error code.
	TokenError string
	// Nonce, when set, replaces the nonce of the authorization request in
	// the ID token.
	Nonce string
	// Audience, when set, replaces the client ID as ID token audience.
	Audience string
	// OmitIDToken removes the ID token from token responses.
	OmitIDToken bool

	Now func() time.Time

	keys         keySource
	grants       map[string]*grant
	accessTokens map[string]bool
	mu           sync.Mutex
}

type grant struct {
	redirectURI   string
	codeChallenge string
	nonce         string
}

func NewServer(t testing.TB, clientID string) *Server {
	s := &Server{
		ClientID:     clientID,
		Subject:      "user-1",
		Now:          time.Now,
		grants:       make(map[string]*grant),
		accessTokens: make(map[string]bool),
	}
	s.Server = httptest.NewServer(s.handler())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Issuer() string {
	return s.URL
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+constants.DiscoveryPath, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"issuer":                                s.URL,
			"authorization_endpoint":                s.URL + PathAuthorize,
			"token_endpoint":                        s.URL + PathToken,
			"userinfo_endpoint":                     s.URL + PathUserInfo,
			"jwks_uri":                              s.URL + PathJWKS,
			"response_types_supported":              []string{constants.AuthorizationServerResponseType},
			"code_challenge_methods_supported":      []string{"S256"},
			"id_token_signing_alg_values_supported": []string{Algorithm().String()},
		})
	})

	mux.HandleFunc("GET "+PathJWKS, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"keys": s.keys.publicKeys(s.Now()),
		})
	})

	mux.HandleFunc("GET "+PathAuthorize, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		redirectURI := q.Get("redirect_uri")
		if !strings.HasPrefix(redirectURI, "http://127.0.0.1:") {
			http.Error(w, "Invalid redirect URI", http.StatusBadRequest)
			return
		}
		if q.Get("client_id") != s.ClientID {
			http.Error(w, "Unknown client", http.StatusBadRequest)
			return
		}

		params := url.Values{}
		params.Set(constants.QueryParamState, q.Get(constants.QueryParamState))

		switch {
		case s.AuthorizeError != "":
			params.Set(constants.QueryParamError, s.AuthorizeError)
			params.Set(constants.QueryParamErrorDescription, "authorization denied by test server")
		case q.Get("response_type") != constants.AuthorizationServerResponseType,
			q.Get("code_challenge_method") != "S256",
			q.Get("code_challenge") == "":
			params.Set(constants.QueryParamError, "invalid_request")
		default:
			code := randomString()
			s.mu.Lock()
			s.grants[code] = &grant{
				redirectURI:   redirectURI,
				codeChallenge: q.Get("code_challenge"),
				nonce:         q.Get(constants.QueryParamNonce),
			}
			s.mu.Unlock()
			params.Set(constants.QueryParamAuthorizationCode, code)
		}

		http.Redirect(w, r, redirectURI+"?"+params.Encode(), http.StatusFound)
	})

	mux.HandleFunc("POST "+PathToken, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			respondOAuthError(w, "invalid_request", "failed to parse form")
			return
		}
		clientID := r.PostFormValue("client_id")
		if u, _, ok := r.BasicAuth(); ok {
			clientID = u
		}
		if clientID != s.ClientID {
			respondOAuthError(w, "invalid_client", "unknown client")
			return
		}
		if s.TokenError != "" {
			respondOAuthError(w, s.TokenError, "token request rejected by test server")
			return
		}
		if r.PostFormValue("grant_type") != "authorization_code" {
			respondOAuthError(w, "unsupported_grant_type", "")
			return
		}

		code := r.PostFormValue(constants.QueryParamAuthorizationCode)
		s.mu.Lock()
		g, ok := s.grants[code]
		delete(s.grants, code)
		s.mu.Unlock()
		if !ok {
			respondOAuthError(w, "invalid_grant", "unknown or used authorization code")
			return
		}
		if r.PostFormValue("redirect_uri") != g.redirectURI {
			respondOAuthError(w, "invalid_grant", "redirect_uri mismatch")
			return
		}
		sum := sha256.Sum256([]byte(r.PostFormValue("code_verifier")))
		if base64.RawURLEncoding.EncodeToString(sum[:]) != g.codeChallenge {
			respondOAuthError(w, "invalid_grant", "PKCE verification failed")
			return
		}

		resp := map[string]any{
			"access_token":  randomString(),
			"token_type":    "Bearer",
			"expires_in":    int64(tokenDuration.Seconds()),
			"refresh_token": randomString(),
		}
		if !s.OmitIDToken {
			idToken, err := s.signIDToken(g.nonce)
			if err != nil {
				respondOAuthError(w, "server_error", err.Error())
				return
			}
			resp["id_token"] = idToken
		}

		s.mu.Lock()
		s.accessTokens[resp["access_token"].(string)] = true
		s.mu.Unlock()

		respondJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("GET "+PathUserInfo, func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		ok := s.accessTokens[token]
		s.mu.Unlock()
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		claims := map[string]any{"sub": s.Subject}
		for k, v := range s.UserInfo {
			claims[k] = v
		}
		respondJSON(w, http.StatusOK, claims)
	})

	return mux
}

func (s *Server) signIDToken(nonce string) (string, error) {
	now := s.Now()
	key, err := s.keys.current(now)
	if err != nil {
		return "", fmt.Errorf("failed to get current private key: %w", err)
	}

	aud := s.ClientID
	if s.Audience != "" {
		aud = s.Audience
	}
	if s.Nonce != "" {
		nonce = s.Nonce
	}

	b := jwt.NewBuilder().
		Issuer(s.URL).
		Subject(s.Subject).
		Audience([]string{aud}).
		Expiration(now.Add(tokenDuration)).
		NotBefore(now).
		IssuedAt(now).
		JwtID(uuid.NewString()).
		Claim(constants.ClaimNonce, nonce)
	for k, v := range s.Claims {
		b = b.Claim(k, v)
	}
	tok, err := b.Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(Algorithm(), key))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondOAuthError(w http.ResponseWriter, code, description string) {
	respondJSON(w, http.StatusBadRequest, map[string]any{
		"error":             code,
		"error_description": description,
	})
}

func randomString() string {
	var b [32]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
