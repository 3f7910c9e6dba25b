package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"retrying/pkg/config"
	"retrying/pkg/logger"
	"retrying/pkg/metrics"
	"retrying/pkg/retry"
)

// startMetrics serves /metrics on the configured address for the lifetime
// of a command. It returns a nil observer when metrics are disabled.
func startMetrics(mc config.MetricsConfig) (retry.Observer, func(), error) {
	if mc.Addr == "" {
		return nil, func() {}, nil
	}

	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(reg, mc.Namespace)
	if err != nil {
		return nil, nil, err
	}

	ln, err := net.Listen("tcp", mc.Addr)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server failed")
		}
	}()
	logger.LogComponentStart(logger.GetLogger(), "metrics", map[string]interface{}{
		"addr": ln.Addr().String(),
	})

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		logger.LogComponentStop(logger.GetLogger(), "metrics", "command finished")
	}
	return recorder, shutdown, nil
}
