package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/matheuscscp/loopback-login/internal/constants"
	"github.com/matheuscscp/loopback-login/internal/logging"
)

const (
	DefaultTimeout       = 300 * time.Second
	DefaultShutdownGrace = 2 * time.Second

	readHeaderTimeout = 10 * time.Second
)

var (
	ErrBind   = errors.New("failed to bind callback listener")
	ErrReused = errors.New("callback listener cannot be reused")
)

type State int32

const (
	StateCreated State = iota
	StateStarted
	StateAwaitingCallback
	StateResolved
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateAwaitingCallback:
		return "awaiting callback"
	case StateResolved:
		return "resolved"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Config is fixed for the lifetime of a Listener. Port 0 binds an
// ephemeral port.
type Config struct {
	Port          int
	PathSuffix    string
	Timeout       time.Duration
	ShutdownGrace time.Duration
}

// Listener is a loopback HTTP endpoint that waits for exactly one
// authorization response. It serves a single login attempt.
type Listener struct {
	conf    Config
	path    string
	metrics *Metrics
	pages   *pages
	pending *pending
	state   atomic.Int32
	logger  logrus.FieldLogger

	srv    *http.Server
	addr   *net.TCPAddr
	served chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func New(conf Config, metrics *Metrics) *Listener {
	if conf.Timeout <= 0 {
		conf.Timeout = DefaultTimeout
	}
	if conf.ShutdownGrace <= 0 {
		conf.ShutdownGrace = DefaultShutdownGrace
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Listener{
		conf:    conf,
		path:    "/" + strings.TrimPrefix(conf.PathSuffix, "/"),
		metrics: metrics,
		pages:   newPages(),
		pending: newPending(),
		logger:  logrus.StandardLogger(),
		served:  make(chan struct{}),
	}
}

func (l *Listener) State() State {
	return State(l.state.Load())
}

// Start binds the endpoint and starts serving in the background. The
// logger in ctx is used for every request.
func (l *Listener) Start(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(StateCreated), int32(StateStarted)) {
		return fmt.Errorf("%w: listener is %s", ErrReused, l.State())
	}
	l.logger = logging.FromContext(ctx)

	var lc net.ListenConfig
	addr := net.JoinHostPort(constants.LoopbackHost, strconv.Itoa(l.conf.Port))
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		l.state.Store(int32(StateDisposed))
		return fmt.Errorf("%w on port %d: %w", ErrBind, l.conf.Port, err)
	}
	l.addr = ln.Addr().(*net.TCPAddr)
	l.srv = &http.Server{
		Handler:           l,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go l.serve(ln)

	l.state.CompareAndSwap(int32(StateStarted), int32(StateAwaitingCallback))
	l.logger.WithField("url", l.URL()).Debug("callback listener started")
	return nil
}

func (l *Listener) serve(ln net.Listener) {
	defer close(l.served)
	err := l.srv.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.logger.WithError(err).Error("callback server stopped unexpectedly")
		l.resolve(ProtocolError(fmt.Sprintf("callback server stopped: %v", err)))
	}
}

// Port returns the bound port, or the configured one before Start.
func (l *Listener) Port() int {
	if l.addr != nil {
		return l.addr.Port
	}
	return l.conf.Port
}

// URL is the redirect URI served by the listener.
func (l *Listener) URL() string {
	u := fmt.Sprintf("http://%s", net.JoinHostPort(constants.LoopbackHost, strconv.Itoa(l.Port())))
	if l.path != "/" {
		u += l.path
	}
	return u
}

// WaitForCallback blocks until a request resolves the listener, the timeout
// elapses or ctx is done. Expiry and cancellation both resolve the listener
// to a Timeout outcome. A timeout <= 0 uses the configured one.
func (l *Listener) WaitForCallback(ctx context.Context, timeout time.Duration) Outcome {
	if l.srv == nil {
		return ProtocolError("callback listener was not started")
	}
	if timeout <= 0 {
		timeout = l.conf.Timeout
	}

	start := time.Now()
	defer func() { l.metrics.wait.Observe(time.Since(start).Seconds()) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-l.pending.done:
	case <-timer.C:
		l.resolve(Timeout(fmt.Sprintf("no callback received within %s", timeout)))
	case <-ctx.Done():
		l.resolve(Timeout(fmt.Sprintf("waiting for callback canceled: %v", context.Cause(ctx))))
	}

	o, _ := l.pending.result()
	return o
}

func (l *Listener) resolve(o Outcome) bool {
	if !l.pending.resolve(o) {
		return false
	}
	l.state.CompareAndSwap(int32(StateAwaitingCallback), int32(StateResolved))
	l.metrics.outcomes.WithLabelValues(o.Kind.String()).Inc()
	return true
}

// Close stops accepting connections right away, then waits for in-flight
// responses to be written before releasing the server. Waiting is bounded
// by the shutdown grace period. Close is idempotent.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.state.Store(int32(StateDisposed))
		if l.srv == nil {
			return
		}
		l.resolve(ProtocolError("callback listener closed before a callback was received"))

		ctx, cancel := context.WithTimeout(context.Background(), l.conf.ShutdownGrace)
		defer cancel()
		if err := l.srv.Shutdown(ctx); err != nil {
			l.logger.WithError(err).Warn("in-flight responses not flushed within grace period, closing connections")
			l.closeErr = l.srv.Close()
		}
		<-l.served
		l.logger.Debug("callback listener closed")
	})
	return l.closeErr
}
