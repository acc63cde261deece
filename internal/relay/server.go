// Package relay is the HTTP service that fronts the generation provider.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/lizzyg/aether/internal/config"
	"github.com/lizzyg/aether/internal/providers"
)

// Server wires handlers, middleware and generators onto a gin engine.
type Server struct {
	addr            string
	engine          *gin.Engine
	gens            providers.Set
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// NewServer builds the relay. gens is shared by all requests and must be safe
// for concurrent use.
func NewServer(cfg *config.Config, gens providers.Set, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		addr:            cfg.Server.Addr,
		engine:          engine,
		gens:            gens,
		logger:          logger,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	engine.Use(
		requestID(),
		recovery(logger),
		accessLog(logger),
		observe(),
		cors.New(corsConfig(cfg.Server.CORSOrigins)),
	)
	if cfg.Server.RateLimitRPS > 0 {
		burst := cfg.Server.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		engine.Use(rateLimit(rate.NewLimiter(rate.Limit(cfg.Server.RateLimitRPS), burst)))
	}

	s.routes()
	if cfg.Server.StaticDir != "" {
		fileServer := http.FileServer(http.Dir(cfg.Server.StaticDir))
		engine.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				c.JSON(http.StatusNotFound, gin.H{"error": "Not found."})
				return
			}
			fileServer.ServeHTTP(c.Writer, c.Request)
		})
	}
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.POST("/generate-text", s.generateText)
	r.POST("/generate-image", s.generateImage)
	r.POST("/generate-tts", s.generateSpeech)
	r.POST("/contact", s.contact("contact", "Message sent successfully!"))
	r.POST("/contact-support", s.contact("support", "Support request submitted successfully!"))
	r.GET("/api/schema", s.schema)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cc
}

// Handler exposes the engine, mostly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Addr returns the listen address.
func (s *Server) Addr() string { return s.addr }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("relay listening", slog.String("addr", s.addr))
	return Serve(ctx, srv, s.shutdownTimeout)
}

// Serve runs srv until ctx is done or the listener fails.
func Serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}
