package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gatehouse-app/gatehouse/backend/internal/analytics"
	"github.com/gatehouse-app/gatehouse/backend/internal/api/middleware"
	"github.com/gatehouse-app/gatehouse/backend/internal/api/routes"
	"github.com/gatehouse-app/gatehouse/backend/internal/config"
)

// Server wraps the HTTP engine and shared dependencies for easier testing.
type Server struct {
	Engine *gin.Engine
	cfg    config.Config
}

// New wires up the HTTP router: control-plane routes first, then the gated
// site behind the gate middleware.
func New(db *gorm.DB, cfg config.Config, aggregator *analytics.Aggregator) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.RequestLogger(), middleware.Recovery(cfg.Environment == "development"))

	gateMiddleware, err := routes.Register(router, db, cfg, aggregator)
	if err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	attachSite(router, cfg.SiteDir, gateMiddleware)

	return &Server{Engine: router, cfg: cfg}, nil
}

// attachSite serves the protected static site on every unclaimed route,
// behind the gate.
func attachSite(router *gin.Engine, siteDir string, gateMiddleware gin.HandlerFunc) {
	router.NoRoute(gateMiddleware, func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
			return
		}

		if siteDir != "" {
			if info, err := os.Stat(siteDir); err == nil && info.IsDir() {
				candidate := filepath.Join(siteDir, filepath.Clean("/"+c.Request.URL.Path))
				if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
					c.File(candidate)
					return
				}
				c.File(filepath.Join(siteDir, "index.html"))
				return
			}
		}

		c.String(http.StatusOK, "Gatehouse: site is up")
	})
}

// Run starts the HTTP server with proper shutdown semantics.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.cfg.HTTPPort),
		Handler: s.Engine,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
