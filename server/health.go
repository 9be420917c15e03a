package server

import (
	"context"
	"os"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/Hommy-master/capcut-mate-data/config"
)

// VersionProber reports whether the media prober binary can be executed.
// The readiness endpoint uses it to verify ffprobe before accepting traffic.
type VersionProber interface {
	Version(ctx context.Context) (string, error)
}

// ReadyState tracks initialization state for health checks
type ReadyState struct {
	config       *config.Config
	rdb          *redis.Client
	prober       VersionProber
	dirsReady    atomic.Bool
	probeReady   atomic.Bool
	redisReady   atomic.Bool
	workersReady atomic.Bool
}

// NewReadyState creates a new ReadyState instance
func NewReadyState(cfg *config.Config, rdb *redis.Client, prober VersionProber) *ReadyState {
	return &ReadyState{
		config: cfg,
		rdb:    rdb,
		prober: prober,
	}
}

// MarkDirsReady marks the working-directory preparation as complete
func (r *ReadyState) MarkDirsReady() {
	r.dirsReady.Store(true)
}

// MarkProbeReady marks the ffprobe availability check as complete
func (r *ReadyState) MarkProbeReady() {
	r.probeReady.Store(true)
}

// MarkRedisReady marks the Redis initialization as complete.
// Called immediately when Redis is not configured.
func (r *ReadyState) MarkRedisReady() {
	r.redisReady.Store(true)
}

// MarkWorkersReady marks the worker pool startup as complete
func (r *ReadyState) MarkWorkersReady() {
	r.workersReady.Store(true)
}

// IsFullyReady returns true if all initialization steps are complete
func (r *ReadyState) IsFullyReady() bool {
	return r.dirsReady.Load() &&
		r.probeReady.Load() &&
		r.redisReady.Load() &&
		r.workersReady.Load()
}

// IsDirsReady returns true if working-directory preparation is complete
func (r *ReadyState) IsDirsReady() bool {
	return r.dirsReady.Load()
}

// IsProbeReady returns true if the ffprobe availability check is complete
func (r *ReadyState) IsProbeReady() bool {
	return r.probeReady.Load()
}

// IsRedisReady returns true if Redis initialization is complete
func (r *ReadyState) IsRedisReady() bool {
	return r.redisReady.Load()
}

// IsWorkersReady returns true if the worker pool startup is complete
func (r *ReadyState) IsWorkersReady() bool {
	return r.workersReady.Load()
}

// GetConfig returns the application configuration
func (r *ReadyState) GetConfig() *config.Config {
	return r.config
}

// GetRedis returns the Redis client, nil when caching is disabled
func (r *ReadyState) GetRedis() *redis.Client {
	return r.rdb
}

// GetProber returns the version prober used for readiness checks
func (r *ReadyState) GetProber() VersionProber {
	return r.prober
}

// dirWritable verifies the directory exists and accepts new files.
func dirWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".readycheck-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
