package routes

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/gatehouse-app/gatehouse/backend/internal/analytics"
	"github.com/gatehouse-app/gatehouse/backend/internal/api/handlers"
	"github.com/gatehouse-app/gatehouse/backend/internal/api/middleware"
	"github.com/gatehouse-app/gatehouse/backend/internal/config"
	"github.com/gatehouse-app/gatehouse/backend/internal/gate"
	"github.com/gatehouse-app/gatehouse/backend/internal/metrics"
	"github.com/gatehouse-app/gatehouse/backend/internal/models"
	"github.com/gatehouse-app/gatehouse/backend/internal/services"
)

// Register wires up the control-plane API, the metrics endpoint and the
// gate middleware, and performs automatic migrations.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config, aggregator *analytics.Aggregator) (gin.HandlerFunc, error) {
	if err := db.AutoMigrate(
		&models.GateSettings{},
		&models.GateStats{},
		&models.User{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	authSvc := services.NewAuthService(db, cfg.SecretKey)
	settingsSvc := services.NewSettingsService(db)
	notifySvc := services.NewNotifyService(cfg.NotifyURLs)

	guard := gate.NewPrivateGuard(cfg.SecretKey, cfg.PremiumFeatures)
	evaluator := gate.NewEvaluator(guard, cfg.SiteLocation())
	previewSigner := gate.NewPreviewSigner(cfg.SecretKey)

	// Custom registry keeps /metrics limited to gate counters.
	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	router.GET("/api/v1/health", handlers.HealthHandler)

	authHandler := handlers.NewAuthHandler(authSvc)
	gateHandler := handlers.NewGateHandler(settingsSvc, notifySvc, aggregator, previewSigner)

	api := router.Group("/api/v1")
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("/")
	protected.Use(middleware.Auth(authSvc))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)

		admin := protected.Group("/")
		admin.Use(middleware.RequireAdmin())
		{
			admin.POST("/auth/register", authHandler.Register)

			admin.GET("/gate/settings", gateHandler.GetSettings)
			admin.PUT("/gate/settings", gateHandler.UpdateSettings)
			admin.POST("/gate/token", gateHandler.GenerateToken)
			admin.DELETE("/gate/token", gateHandler.RevokeToken)
			admin.PUT("/gate/password", gateHandler.SetPassword)
			admin.DELETE("/gate/password", gateHandler.RevokePassword)
			admin.GET("/gate/analytics", gateHandler.GetAnalytics)
			admin.DELETE("/gate/analytics", gateHandler.ResetAnalytics)
			admin.GET("/gate/preview-link", gateHandler.PreviewLink)
		}
	}

	gateMiddleware := middleware.Gate(middleware.GateDeps{
		Evaluator:  evaluator,
		Preview:    previewSigner,
		Settings:   settingsSvc,
		Auth:       authSvc,
		Aggregator: aggregator,
	})

	// The access form posts here; the middleware completes the grant (or
	// re-renders the gate with an error) before this handler runs, so it
	// only fires when the gate is inactive or the caller already holds a
	// valid grant.
	router.POST("/gate/access", gateMiddleware, func(c *gin.Context) {
		target := gate.SanitizeReturnPath(c.PostForm(gate.ReturnField))
		if target == "" {
			target = "/"
		}
		c.Redirect(http.StatusFound, target)
	})

	return gateMiddleware, nil
}
