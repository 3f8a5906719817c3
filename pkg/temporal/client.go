// Package temporal adapts the application configuration and logger to the
// Temporal SDK client.
package temporal

import (
	temporalclient "go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"
	"go.uber.org/zap"

	"github.com/ilovetoast/jackpot-firehorse-sub012/config"
)

// ClientOptions builds Temporal client options from the configuration.
func ClientOptions(cfg config.TemporalConfig, logger *zap.Logger) temporalclient.Options {
	return temporalclient.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    NewZapAdapter(logger),
	}
}

type zapAdapter struct {
	zl *zap.SugaredLogger
}

// NewZapAdapter wraps a zap logger in the Temporal SDK logger interface.
func NewZapAdapter(zl *zap.Logger) sdklog.Logger {
	// skip one frame so call sites, not the adapter, show up in logs
	return &zapAdapter{zl: zl.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (a *zapAdapter) Debug(msg string, keyvals ...any) { a.zl.Debugw(msg, keyvals...) }
func (a *zapAdapter) Info(msg string, keyvals ...any)  { a.zl.Infow(msg, keyvals...) }
func (a *zapAdapter) Warn(msg string, keyvals ...any)  { a.zl.Warnw(msg, keyvals...) }
func (a *zapAdapter) Error(msg string, keyvals ...any) { a.zl.Errorw(msg, keyvals...) }
