// Package ffprobe shells out to the ffprobe binary for media inspection.
package ffprobe

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/Hommy-master/capcut-mate-data/apperr"
)

// DefaultTimeout bounds a single ffprobe invocation.
const DefaultTimeout = 30 * time.Second

// Prober wraps an ffprobe binary on PATH or at an absolute location.
type Prober struct {
	bin     string
	timeout time.Duration
}

// New creates a Prober. An empty bin falls back to "ffprobe" on PATH.
func New(bin string, timeout time.Duration) *Prober {
	if bin == "" {
		bin = "ffprobe"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{bin: bin, timeout: timeout}
}

// Duration returns the container duration of the media file in microseconds.
// Draft timelines measure time in microseconds, so callers never need the
// raw seconds value.
func (p *Prober) Duration(ctx context.Context, path string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return 0, apperr.Newf(apperr.AudioDurationGetFailed, "ffprobe timed out after %s", p.timeout)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return 0, apperr.New(apperr.AudioDurationGetFailed, detail)
	}

	out := strings.TrimSpace(stdout.String())
	seconds, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, apperr.Newf(apperr.AudioDurationGetFailed, "unexpected ffprobe output: %q", out)
	}
	if seconds < 0 {
		return 0, apperr.Newf(apperr.AudioDurationGetFailed, "negative duration: %q", out)
	}
	return int64(math.Round(seconds * 1e6)), nil
}

// Version reports the first line of `ffprobe -version`. Readiness checks use
// it to confirm the binary is present and executable.
func (p *Prober) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, p.bin, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("ffprobe not available: %w", err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}
