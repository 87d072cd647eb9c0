package login

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/matheuscscp/loopback-login/internal/browser"
	"github.com/matheuscscp/loopback-login/internal/callback"
	"github.com/matheuscscp/loopback-login/internal/logging"
	"github.com/matheuscscp/loopback-login/internal/port"
)

// Client builds authorization requests and redeems authorization
// responses against an OIDC provider.
type Client interface {
	Authorize(ctx context.Context, authority, redirectURI string) (*Authorization, error)
	Exchange(ctx context.Context, auth *Authorization, payload string) *Result
}

type Flow struct {
	client       Client
	browser      browser.Launcher
	listener     callback.Config
	metrics      *callback.Metrics
	allocatePort func() (int, error)
}

func New(client Client, launcher browser.Launcher, listener callback.Config, metrics *callback.Metrics) *Flow {
	return &Flow{
		client:       client,
		browser:      launcher,
		listener:     listener,
		metrics:      metrics,
		allocatePort: port.Allocate,
	}
}

// Signin runs one interactive login against authority. Authentication
// failures are reported in the Result; the returned error is always a
// *SetupError.
func (f *Flow) Signin(ctx context.Context, authority string) (*Result, error) {
	l := logging.FromContext(ctx).WithFields(logrus.Fields{
		"attempt":   uuid.NewString(),
		"authority": authority,
	})
	ctx = logging.IntoContext(ctx, l)

	conf := f.listener
	if conf.Port == 0 {
		p, err := f.allocatePort()
		if err != nil {
			return nil, &SetupError{Op: "allocate callback port", Err: err}
		}
		conf.Port = p
	}
	listener := callback.New(conf, f.metrics)

	auth, err := f.client.Authorize(ctx, authority, listener.URL())
	if err != nil {
		l.WithError(err).Error("failed to build authorization request")
		return Failed(StatusUnknownError, "failed to build authorization request: %v", err), nil
	}

	outcome, err := f.awaitCallback(ctx, listener, conf, auth)
	if err != nil {
		return nil, err
	}

	switch outcome.Kind {
	case callback.KindSuccess:
		res := f.client.Exchange(ctx, auth, outcome.Payload)
		l.WithField("status", res.Status.String()).Info("login finished")
		return res, nil
	case callback.KindTimeout:
		l.WithField("reason", outcome.Reason).Warn("login timed out")
		return Failed(StatusTimeout, "%s", outcome.Reason), nil
	default:
		l.WithField("reason", outcome.Reason).Error("login failed")
		return Failed(StatusUnknownError, "%s", outcome.Reason), nil
	}
}

// awaitCallback owns the listener: it is always closed before returning.
func (f *Flow) awaitCallback(ctx context.Context, listener *callback.Listener,
	conf callback.Config, auth *Authorization) (callback.Outcome, error) {

	l := logging.FromContext(ctx)

	if err := listener.Start(ctx); err != nil {
		return callback.Outcome{}, &SetupError{Op: "start callback listener", Err: err}
	}
	defer func() {
		if err := listener.Close(); err != nil {
			l.WithError(err).Warn("failed to close callback listener")
		}
	}()

	l.WithField("url", auth.StartURL).Info("opening system browser for login")
	if err := f.browser.Open(ctx, auth.StartURL); err != nil {
		l.WithError(err).Warn("failed to open system browser, the login url must be opened manually")
	}

	return listener.WaitForCallback(ctx, conf.Timeout), nil
}
