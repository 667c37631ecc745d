package main

import (
	"github.com/sirupsen/logrus"

	"github.com/jromeu/vitalink/internal/config"
	"github.com/jromeu/vitalink/internal/store"
)

// newGateway builds the persistence gateway from the loaded configuration.
// Without remote credentials every call is served by the fallback
// collection.
func newGateway(cfg config.Config, logger *logrus.Logger) *store.Gateway {
	var opts []store.Option
	if cfg.RemoteReady() {
		opts = append(opts, store.WithRemote(cfg.RemoteURL, cfg.RemoteToken))
	} else {
		logger.Info("No remote store configured, using in-process fallback only")
	}
	return store.NewGateway(logger, opts...)
}
