package services

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/Hommy-master/capcut-mate-data/metrics"
	"github.com/Hommy-master/capcut-mate-data/utils"
)

// TempJanitor removes stale files that failed downloads leave behind in the
// temp directory.
type TempJanitor struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// NewTempJanitor creates a janitor for dir. Non-positive ages and intervals
// fall back to one hour and thirty minutes.
func NewTempJanitor(dir string, maxAge, interval time.Duration) *TempJanitor {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &TempJanitor{dir: dir, maxAge: maxAge, interval: interval, stop: make(chan struct{})}
}

// Start launches the background sweep loop with an immediate first pass.
func (j *TempJanitor) Start() {
	go func() {
		log.Printf("🧹 Temp cleanup routine started (dir=%s, interval=%s)", j.dir, j.interval)

		// Run initial sweep
		j.Sweep()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				j.Sweep()
			case <-j.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop.
func (j *TempJanitor) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
}

// Sweep removes files older than maxAge and reports how many were deleted.
func (j *TempJanitor) Sweep() int {
	cutoff := time.Now().Add(-j.maxAge)
	removed := 0
	for _, path := range utils.GetAllFiles(j.dir) {
		fi, err := os.Stat(path)
		if err != nil {
			continue
		}
		if fi.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				log.Printf("⚠️ Failed to remove stale temp file %s: %v", path, err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		metrics.RecordTempFilesCleaned(removed)
		log.Printf("✅ Temp cleanup removed %d stale files", removed)
	}
	return removed
}
