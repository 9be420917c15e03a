package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/Hommy-master/capcut-mate-data/config"
	"github.com/Hommy-master/capcut-mate-data/handlers"
	"github.com/Hommy-master/capcut-mate-data/middleware"
	appserver "github.com/Hommy-master/capcut-mate-data/server"
)

// setupRoutes configures all API routes and middleware for the application
func setupRoutes(app *fiber.App, cfg *appconfig.Config, rdb *redis.Client, durationService handlers.DurationResolver, draftService handlers.DraftLister) {
	// Prometheus scrape endpoint, outside the unified envelope
	app.Get("/metrics", appserver.PrometheusHandler())

	// Initialize handlers
	durationHandler := handlers.NewDurationHandler(durationService)
	draftHandler := handlers.NewDraftHandler(draftService)

	// API group. Everything below rides the unified code/message envelope,
	// so ordering matters: the envelope wraps the limiter and auth rejections too.
	api := app.Group("/openapi/capcut-mate-data",
		middleware.UnifiedResponse(),
		middleware.RateLimiter(rdb, cfg.RateLimitMax, cfg.RateLimitWindow),
		middleware.OptionalJWTAuth(cfg.AuthJWTSecret),
		middleware.Prepare(cfg.DraftDir, cfg.TempDir),
	)

	v1 := api.Group("/v1")
	v1.Post("/timelines", handlers.Timelines)
	v1.Post("/audio_duration", durationHandler.AudioDuration)
	v1.Post("/draft_files", draftHandler.DraftFiles)
}
