package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/matheuscscp/loopback-login/internal/browser"
	"github.com/matheuscscp/loopback-login/internal/callback"
	"github.com/matheuscscp/loopback-login/internal/config"
	"github.com/matheuscscp/loopback-login/internal/constants"
	"github.com/matheuscscp/loopback-login/internal/logging"
	"github.com/matheuscscp/loopback-login/internal/login"
	"github.com/matheuscscp/loopback-login/internal/oidc"
)

const defaultAuthority = "https://unifyned.cloud"

type args struct {
	Config      string `arg:"--config,env:LOOPBACK_LOGIN_CONFIG" help:"path to the YAML configuration file"`
	Authority   string `arg:"--authority,env:LOOPBACK_LOGIN_AUTHORITY" help:"OIDC authority, overrides the configuration file"`
	LogLevel    string `arg:"--log-level,env:LOG_LEVEL" help:"log level"`
	MetricsFile string `arg:"--metrics-file" help:"write prometheus metrics to this file on exit"`
}

func (args) Description() string {
	return "Signs in against an OIDC authority through the system browser and a loopback redirect."
}

func newParser(a *args) (*arg.Parser, error) {
	return arg.NewParser(arg.Config{Program: constants.LoopbackLogin}, a)
}

func main() {
	var a args
	p, err := newParser(&a)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create argument parser")
	}
	p.MustParse(os.Args[1:])

	if err := logging.LoadLevel(a.LogLevel); err != nil {
		logrus.WithError(err).Fatal("failed to load log level")
	}

	conf, err := config.Load(a.Config)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	if a.Authority != "" {
		conf.OIDC.Authority = a.Authority
	}
	if conf.OIDC.Authority == "" {
		conf.OIDC.Authority = defaultAuthority
	}
	if err := conf.ValidateAndInitialize(); err != nil {
		logrus.WithError(err).Fatal("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := callback.NewMetrics(prometheus.DefaultRegisterer)
	flow := login.New(oidc.New(conf.OIDC.ClientConfig()), browser.New(), conf.Listener.CallbackConfig(), metrics)

	res, err := flow.Signin(ctx, conf.OIDC.Authority)
	exitCode := 0
	switch {
	case err != nil:
		logrus.WithError(err).Error("login could not be started")
		exitCode = 1
	case res.IsError():
		logrus.WithFields(logrus.Fields{
			"status":           res.Status.String(),
			"error":            res.Error,
			"errorDescription": res.ErrorDescription,
		}).Error("login failed")
		exitCode = 1
	default:
		logrus.WithFields(logrus.Fields{
			"status":  res.Status.String(),
			"subject": res.Subject,
			"expiry":  res.Expiry,
			"claims":  res.Claims,
		}).Info("login succeeded")
	}

	if a.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(a.MetricsFile, prometheus.DefaultGatherer); err != nil {
			logrus.WithError(err).Error("failed to write metrics file")
		}
	}

	stop()
	os.Exit(exitCode)
}
