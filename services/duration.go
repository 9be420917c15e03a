package services

import (
	"context"
	"time"

	"github.com/Hommy-master/capcut-mate-data/apperr"
	"github.com/Hommy-master/capcut-mate-data/cache"
	"github.com/Hommy-master/capcut-mate-data/downloader"
	"github.com/Hommy-master/capcut-mate-data/metrics"
	"github.com/Hommy-master/capcut-mate-data/utils"
)

// MediaDownloader fetches a remote file into dir and reports the saved path.
type MediaDownloader interface {
	Download(ctx context.Context, url, dir string) (string, error)
}

// DurationProber reports a media file duration in microseconds.
type DurationProber interface {
	Duration(ctx context.Context, path string) (int64, error)
}

// TaskPool serializes heavyweight work onto a bounded set of workers.
type TaskPool interface {
	Do(ctx context.Context, fn func()) error
}

// DurationService downloads remote audio and probes its duration.
type DurationService struct {
	downloader MediaDownloader
	prober     DurationProber
	pool       TaskPool
	cache      *cache.DurationCache
	tempDir    string
}

// NewDurationService wires the download, probe, and cache collaborators.
func NewDurationService(dl MediaDownloader, prober DurationProber, pool TaskPool, c *cache.DurationCache, tempDir string) *DurationService {
	return &DurationService{downloader: dl, prober: prober, pool: pool, cache: c, tempDir: tempDir}
}

// AudioDuration resolves the duration of the audio behind url in
// microseconds. Cached results short-circuit the download entirely; the
// temp file is always removed once probed.
func (s *DurationService) AudioDuration(ctx context.Context, url string) (int64, error) {
	if duration, ok := s.cache.Get(ctx, url); ok {
		metrics.RecordDurationCacheHit()
		utils.LogInfo("Audio duration served from cache", "url", url)
		return duration, nil
	}
	metrics.RecordDurationCacheMiss()

	var (
		duration int64
		taskErr  error
	)
	err := s.pool.Do(ctx, func() {
		start := time.Now()
		path, derr := s.downloader.Download(ctx, url, s.tempDir)
		metrics.RecordDownload(derr == nil, time.Since(start).Seconds())
		if derr != nil {
			taskErr = derr
			return
		}
		defer downloader.CleanupTempFile(path)

		probeStart := time.Now()
		duration, taskErr = s.prober.Duration(ctx, path)
		metrics.RecordProbe(taskErr == nil, time.Since(probeStart).Seconds())
	})
	if err != nil {
		return 0, apperr.New(apperr.AudioDurationGetFailed, err.Error())
	}
	if taskErr != nil {
		if _, ok := apperr.As(taskErr); ok {
			return 0, taskErr
		}
		return 0, apperr.New(apperr.AudioDurationGetFailed, taskErr.Error())
	}

	s.cache.Set(ctx, url, duration)
	return duration, nil
}
