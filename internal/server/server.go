/*
Copyright 2025 The Portfolio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capbudget/portfolio/internal/config"
	"github.com/capbudget/portfolio/internal/logging"
	"github.com/capbudget/portfolio/internal/optimizer"
)

const (
	// APIPrefix is the path prefix of the versioned API.
	APIPrefix = "/api/v1alpha1"

	// DefaultMaxUploadBytes caps catalog uploads.
	DefaultMaxUploadBytes = 16 << 20

	shutdownTimeout = 10 * time.Second
)

// Server exposes a solve session over HTTP.
type Server struct {
	session        *optimizer.Session
	profiles       config.SolveProfiles
	gatherer       prometheus.Gatherer
	maxUploadBytes int64
	router         *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer selects the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithMaxUploadBytes caps the size of catalog uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		s.maxUploadBytes = n
	}
}

// New creates a server for session. profiles may be nil.
func New(session *optimizer.Session, profiles config.SolveProfiles, opts ...Option) *Server {
	if profiles == nil {
		profiles = config.SolveProfiles{}
	}
	s := &Server{
		session:        session,
		profiles:       profiles,
		gatherer:       prometheus.DefaultGatherer,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", s.healthz)
	r.GET("/version", s.buildInfo)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := r.Group(APIPrefix)
	{
		api.GET("/session", s.getSession)
		api.GET("/profiles", s.listProfiles)

		api.GET("/catalog", s.getCatalog)
		api.PUT("/catalog", s.putCatalog)
		api.POST("/catalog/import", s.importCatalog)

		api.POST("/solve", s.solve)
		api.POST("/solve/cancel", s.cancelSolve)
		api.GET("/solve/last", s.lastSolve)
	}
	return r
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully. A running solve is
// cancelled on shutdown.
func (s *Server) Run(ctx context.Context, addr string) error {
	logger := logging.FromContext(ctx)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	s.session.Cancel()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger puts the process logger into the request context and logs every
// request at debug verbosity.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		logger := logging.Log.WithValues("method", c.Request.Method, "path", c.FullPath())
		c.Request = c.Request.WithContext(logging.IntoContext(c.Request.Context(), logger))

		c.Next()

		logger.V(logging.DEBUG).Info("Handled request",
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
