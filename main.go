// CapCut Mate Data API
//
// Auxiliary data service for CapCut draft automation: timeline generation,
// remote audio duration probing and draft file listing, all behind a unified
// code/message response envelope.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Hommy-master/capcut-mate-data/cache"
	appconfig "github.com/Hommy-master/capcut-mate-data/config"
	"github.com/Hommy-master/capcut-mate-data/downloader"
	"github.com/Hommy-master/capcut-mate-data/ffprobe"
	appserver "github.com/Hommy-master/capcut-mate-data/server"
	"github.com/Hommy-master/capcut-mate-data/services"
	"github.com/Hommy-master/capcut-mate-data/utils"
	"github.com/Hommy-master/capcut-mate-data/workers"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var workerCount int
	var port string

	cmd := &cobra.Command{
		Use:          "capcut-mate-data",
		Short:        "CapCut Mate data API: timelines, audio duration and draft file listing",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := appconfig.LoadConfig()
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workerCount
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cfg.Workers <= 0 {
				return fmt.Errorf("workers must be positive, got %d", cfg.Workers)
			}
			return run(cfg)
		},
	}

	cmd.Flags().IntVar(&workerCount, "workers", 4, "download/probe worker pool size (overrides WORKERS)")
	cmd.Flags().StringVar(&port, "port", "30000", "HTTP listen port (overrides PORT)")
	return cmd
}

func run(cfg *appconfig.Config) error {
	// Initialize logging
	utils.InitLogging()
	utils.TrustProxyHeaders.Store(cfg.TrustProxyHeaders)

	// Track application start time for uptime calculation
	startTime := time.Now()

	log.Printf("🚀 [STARTUP] CapCut Mate API starting (env=%s, workers=%d, port=%s)", cfg.Environment, cfg.Workers, cfg.Port)
	log.Printf("🔵 [CONFIG] draft_url=%s download_url=%s tip_url=%s", cfg.DraftURL, cfg.DownloadURL, cfg.TipURL)

	// Redis is optional: without it the duration cache runs as a no-op and
	// rate limiting falls back to in-memory counters.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       0, // use default DB
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Printf("⚠️  [REDIS] %s unreachable: %v - continuing without Redis", cfg.RedisURL, err)
			_ = rdb.Close()
			rdb = nil
		} else {
			log.Printf("✅ [REDIS] Connected to %s", cfg.RedisURL)
			defer rdb.Close()
		}
	}

	// Verify ffprobe up front; the readiness endpoint keeps probing it live
	prober := ffprobe.New(cfg.FfprobePath, cfg.FfprobeTimeout)
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 10*time.Second)
	if version, err := prober.Version(probeCtx); err != nil {
		log.Printf("⚠️  [FFPROBE] %s not usable: %v - audio duration requests will fail", cfg.FfprobePath, err)
	} else {
		log.Printf("✅ [FFPROBE] %s", version)
	}
	cancelProbe()

	readyState := appserver.NewReadyState(cfg, rdb, prober)
	readyState.MarkRedisReady()
	readyState.MarkProbeReady()

	// Working directories must exist before the first download starts
	for _, dir := range []string{cfg.DraftDir, cfg.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	readyState.MarkDirsReady()

	// One shared pool bounds concurrent downloads and probes
	pool := workers.New(cfg.Workers)
	defer pool.Close()
	readyState.MarkWorkersReady()

	dl := downloader.New(downloader.Options{
		SizeLimit: cfg.DownloadSizeLimit,
		Timeout:   cfg.DownloadTimeout,
		Retries:   cfg.DownloadRetry,
	})
	durationCache := cache.NewDurationCache(rdb, cfg.DurationCacheTTL)
	durationService := services.NewDurationService(dl, prober, pool, durationCache, cfg.TempDir)
	draftService := services.NewDraftService(cfg.DraftDir, cfg.AppDir, cfg.DownloadURL, cfg.TipURL)

	// Periodic temp-file cleanup
	janitor := services.NewTempJanitor(cfg.TempDir, cfg.TempMaxAge, cfg.CleanupInterval)
	janitor.Start()
	defer janitor.Stop()

	app := appserver.CreateApp(cfg, startTime, readyState)
	setupRoutes(app, cfg, rdb, durationService, draftService)

	for _, route := range app.GetRoutes(true) {
		if route.Method == fiber.MethodHead {
			continue
		}
		name := route.Name
		if name == "" {
			name = path.Base(route.Path)
		}
		log.Printf("Route: %s %s -> %s", route.Method, route.Path, name)
	}

	log.Printf("🌐 CapCut Mate API listening on %s:%s", cfg.Host, cfg.Port)

	if cfg.Host == "" || cfg.Host == "0.0.0.0" || cfg.Host == "::" {
		return appserver.ListenWithIPv6Fallback(app, cfg.Port, startTime)
	}
	return app.Listen(net.JoinHostPort(cfg.Host, cfg.Port))
}
