package main

import (
	"log"
	"os"
	"strings"
	"syscall"
	"time"
)

// A tiny entrypoint that ensures sane env defaults and then execs the service binary.
func main() {
	if os.Getenv("PORT") == "" {
		// Default to 30000 if platform doesn't inject PORT
		_ = os.Setenv("PORT", "30000")
	}
	if os.Getenv("WORKERS") == "" {
		_ = os.Setenv("WORKERS", "4")
	}
	if os.Getenv("HOME") == "" {
		// ffprobe and temp handling expect a resolvable home
		_ = os.Setenv("HOME", "/root")
	}

	// Bundled binaries (ffprobe) take precedence on PATH
	path := os.Getenv("PATH")
	if !strings.HasPrefix(path, "/app/bin:") {
		_ = os.Setenv("PATH", "/app/bin:/app:"+path)
	}

	// Optional startup delay for orchestrator compatibility
	if delay := os.Getenv("STARTUP_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil && d > 0 {
			log.Printf("Applying startup delay: %v", d)
			time.Sleep(d)
		}
	}

	target := os.Getenv("APP_BINARY")
	if target == "" {
		target = "/app/main"
	}

	args := []string{target, "--workers", os.Getenv("WORKERS"), "--port", os.Getenv("PORT")}
	if err := syscall.Exec(target, args, os.Environ()); err != nil {
		log.Fatalf("failed to exec %s: %v", target, err)
	}
}
