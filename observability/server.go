package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/benz9527/bidtree/lib/infra"
	"github.com/benz9527/bidtree/xlog"
)

const httpPrefixMetrics = "/metrics"

// MetricsServer serves the prometheus registry over HTTP.
type MetricsServer struct {
	logger     xlog.XLogger
	listener   net.Listener
	httpServer *http.Server
}

func NewMetricsServer(addr string, reg *promclient.Registry, logger xlog.XLogger) (*MetricsServer, error) {
	if reg == nil {
		return nil, infra.NewErrorStack("[observability] nil prometheus registry")
	}
	serveMux := http.NewServeMux()
	serveMux.Handle(httpPrefixMetrics, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[observability] metrics listen "+addr)
	}
	return &MetricsServer{
		logger:   logger,
		listener: ln,
		httpServer: &http.Server{
			Handler:           serveMux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Addr is the bound address, the port is resolved if the addr is ":0".
func (s *MetricsServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *MetricsServer) Start() {
	go func() {
		if s.logger != nil {
			s.logger.Info("serving metrics", zap.String("addr", s.Addr()))
		}
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) && s.logger != nil {
			s.logger.Error(err, "metrics server stopped")
		}
	}()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
