package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsServer exposes the default Prometheus registry over HTTP. It is a
// no-op when no address is configured.
type MetricsServer struct {
	addr   string
	server *http.Server
	logger *zap.Logger
}

// NewMetricsServer creates the metrics endpoint from the config.
func NewMetricsServer(p Params, logger *zap.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &MetricsServer{
		addr:   p.Config.Metrics.Addr,
		server: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		logger: logger,
	}
}

// Start listens on the configured address and serves in the background.
func (m *MetricsServer) Start() error {
	if m.addr == "" {
		return nil
	}
	lis, err := net.Listen("tcp", m.addr)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}
	m.addr = lis.Addr().String()
	m.logger.Info("metrics server starting", zap.String("addr", m.addr))
	go func() {
		if err := m.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the listen address, resolved once started.
func (m *MetricsServer) Addr() string {
	return m.addr
}

// Stop shuts the endpoint down.
func (m *MetricsServer) Stop(ctx context.Context) error {
	if m.addr == "" {
		return nil
	}
	return m.server.Shutdown(ctx)
}
