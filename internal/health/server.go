// Package health exposes the server's liveness and readiness over HTTP.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
)

// Probe checks one backing dependency for readiness.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server answers /livez and /readyz. Liveness is unconditional once the
// process is up; readiness runs every probe on each request.
type Server struct {
	echo   *echo.Echo
	logger *zap.Logger
	probes []Probe
}

// probeTimeout bounds a single dependency check.
const probeTimeout = 2 * time.Second

// NewServer builds the health server.
func NewServer(logger *zap.Logger, probes ...Probe) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(otelecho.Middleware("gantryd"))

	s := &Server{echo: e, logger: logger, probes: probes}
	e.GET("/livez", s.livez)
	e.GET("/readyz", s.readyz)
	return s
}

// Start serves until Shutdown or a listen failure.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) livez(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(c echo.Context) error {
	status := make(map[string]string, len(s.probes))
	ready := true
	for _, probe := range s.probes {
		ctx, cancel := context.WithTimeout(c.Request().Context(), probeTimeout)
		err := probe.Check(ctx)
		cancel()
		if err != nil {
			s.logger.Warn("readiness probe failed",
				zap.String("probe", probe.Name), zap.Error(err))
			status[probe.Name] = err.Error()
			ready = false
			continue
		}
		status[probe.Name] = "ok"
	}
	if !ready {
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	return c.JSON(http.StatusOK, status)
}
