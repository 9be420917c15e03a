package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/Hommy-master/capcut-mate-data/config"
	"github.com/Hommy-master/capcut-mate-data/metrics"
	"github.com/Hommy-master/capcut-mate-data/utils"
)

// CreateApp creates and configures the Fiber application with the shared
// middleware chain and the operational endpoints that must be reachable
// before route registration completes.
func CreateApp(cfg *config.Config, startTime time.Time, readyState *ReadyState) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "CapCut Mate API v1.0",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		// Enable proxy header trust for Cloudflare/nginx reverse proxies
		EnableTrustedProxyCheck: utils.TrustProxyHeaders.Load(),
		ProxyHeader:             fiber.HeaderXForwardedFor,
		TrustedProxies: []string{
			"10.0.0.0/8",     // Private IPv4
			"172.16.0.0/12",  // Private IPv4
			"192.168.0.0/16", // Private IPv4
			"fd00::/8",       // Private IPv6
			"::1",            // IPv6 localhost
			"127.0.0.1",      // IPv4 localhost
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			} else {
				// Log server errors but don't expose details
				utils.LogError("HTTP_ERROR", err,
					"method", c.Method(),
					"path", c.Path(),
					"ip", c.IP(),
				)
			}

			return c.Status(code).JSON(fiber.Map{"error": message})
		},
	})

	// Panic recovery with stack trace logging
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			utils.LogError("PANIC RECOVERED", fmt.Errorf("%v", e),
				"method", c.Method(),
				"path", c.Path(),
				"ip", c.IP(),
				"user_agent", c.Get("User-Agent"),
			)
		},
	}))

	// Request ID middleware for error correlation
	app.Use(func(c *fiber.Ctx) error {
		requestID := uuid.New().String()
		c.Locals("request_id", requestID)
		c.Set("X-Request-ID", requestID)
		return c.Next()
	})

	// Access logging
	app.Use(logger.New(logger.Config{
		Output: utils.InfoLogger.Writer(),
		Format: "[${time}] ${locals:request_id} ${status} - ${method} ${path} - ${ip} - ${latency}\n",
	}))

	// Compression middleware for API responses
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request counters and latency histograms
	app.Use(metrics.PrometheusMiddleware())

	// Live endpoint, only checks that the server loop is running
	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "alive",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(startTime).String(),
		})
	})

	// Ready endpoint, checks that every dependency can do real work
	app.Get("/health/ready", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		health := fiber.Map{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(startTime).String(),
		}

		if !readyState.IsFullyReady() {
			health["status"] = "initializing"
			health["dirs_ready"] = readyState.IsDirsReady()
			health["ffprobe_ready"] = readyState.IsProbeReady()
			health["redis_ready"] = readyState.IsRedisReady()
			health["workers_ready"] = readyState.IsWorkersReady()
			return c.Status(fiber.StatusServiceUnavailable).JSON(health)
		}

		failed := false

		if prober := readyState.GetProber(); prober != nil {
			if version, err := prober.Version(ctx); err != nil {
				health["ffprobe"] = "unavailable: " + err.Error()
				failed = true
			} else {
				health["ffprobe"] = version
			}
		}

		appCfg := readyState.GetConfig()
		if err := dirWritable(appCfg.DraftDir); err != nil {
			health["draft_dir"] = "not writable: " + err.Error()
			failed = true
		} else {
			health["draft_dir"] = "writable"
		}
		if err := dirWritable(appCfg.TempDir); err != nil {
			health["temp_dir"] = "not writable: " + err.Error()
			failed = true
		} else {
			health["temp_dir"] = "writable"
		}

		if rdb := readyState.GetRedis(); rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				health["redis"] = "down"
				failed = true
			} else {
				health["redis"] = "connected"
			}
		} else {
			health["redis"] = "disabled"
		}

		if failed {
			health["status"] = "unhealthy"
			return c.Status(fiber.StatusServiceUnavailable).JSON(health)
		}

		health["status"] = "ready"
		return c.JSON(health)
	})

	return app
}
