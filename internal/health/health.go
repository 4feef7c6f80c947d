// Package health serves the unauthenticated HTTP surface from spec §4.7:
// GET /health, GET /healthz, GET /ready, plus the supplemental GET /metrics
// from SPEC_FULL.md §C. Adapted from router/ginrouter.go's gin.New() +
// gin.Recovery() construction and router/logging_middleware.go's
// LogHarbourAdapter, but drops router/auth_middleware.go entirely: there is
// no authenticated surface here for it to protect (see DESIGN.md).
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/remiges-tech/logharbour/logharbour"

	"github.com/remiges-tech/ingestworker/router"
)

// PeerSource reports advisory worker presence, satisfied by
// internal/presence.Registry.
type PeerSource interface {
	PeerCount(ctx context.Context) (int, bool)
}

// Server is the health/readiness/metrics HTTP listener, run independently
// of the main poll loop (spec §5: "does not share state with the main
// loop beyond the lifetime owned by the main loop").
type Server struct {
	engine   *gin.Engine
	httpSrv  *http.Server
	workerID string
}

// New builds the gin engine and registers routes. peers may be nil if
// presence is disabled.
func New(workerID string, logger *logharbour.Logger, peers PeerSource) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		router.NewLogHarbourAdapter(logger).Log(router.RequestInfo{
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			ClientIP:   c.ClientIP(),
			StatusCode: c.Writer.Status(),
			StartTime:  start.UTC(),
			Duration:   time.Since(start),
		})
	})

	s := &Server{engine: engine, workerID: workerID}

	engine.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok", "worker_id": workerID, "timestamp": time.Now().UTC().Format(time.RFC3339)}
		if peers != nil {
			if n, ok := peers.PeerCount(c.Request.Context()); ok {
				body["peers"] = n
			}
		}
		c.JSON(http.StatusOK, body)
	})
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "worker_id": workerID, "timestamp": time.Now().UTC().Format(time.RFC3339)})
	})
	engine.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.NoRoute(func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	return s
}

// ServeHTTP lets tests exercise the routes via httptest without binding a
// real listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Start begins serving on addr in a background goroutine. Errors other
// than http.ErrServerClosed are reported on errs.
func (s *Server) Start(addr string) <-chan error {
	s.httpSrv = &http.Server{Addr: addr, Handler: s.engine}
	errs := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
		close(errs)
	}()
	return errs
}

// Shutdown closes the listener gracefully (spec §4.8: "Registers shutdown
// handlers ... close the health endpoint").
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
