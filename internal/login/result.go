package login

import (
	"fmt"
	"time"
)

type Status int

const (
	StatusSuccess Status = iota
	StatusTimeout
	StatusAuthorizationError
	StatusUnknownError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusTimeout:
		return "timeout"
	case StatusAuthorizationError:
		return "authorization_error"
	case StatusUnknownError:
		return "unknown_error"
	default:
		return "unknown"
	}
}

// Result is what Signin hands back to the application. Tokens and claims
// are set only when Status is StatusSuccess.
type Result struct {
	Status           Status
	Error            string
	ErrorDescription string

	AccessToken  string
	IDToken      string
	RefreshToken string
	TokenType    string
	Expiry       time.Time

	Subject string
	Claims  map[string]any
}

func (r *Result) IsError() bool {
	return r.Status != StatusSuccess
}

func Failed(status Status, format string, args ...any) *Result {
	return &Result{
		Status: status,
		Error:  fmt.Sprintf(format, args...),
	}
}

// Authorization is one prepared authorization request. It carries the
// secrets needed to validate and redeem the response.
type Authorization struct {
	Authority    string
	StartURL     string
	RedirectURI  string
	State        string
	Nonce        string
	CodeVerifier string
}

// SetupError means the login could not start: no browser was opened and
// no authentication took place.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}
