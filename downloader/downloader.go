// Package downloader implements resilient HTTP file downloads with resume
// support, adaptive timeouts, and coded error classification.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	neturl "net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Hommy-master/capcut-mate-data/apperr"
	"github.com/Hommy-master/capcut-mate-data/utils"
)

// Tuning constants. The total timeout is a hard per-attempt budget for the
// streaming phase; retries are sized so the whole operation stays close to it.
const (
	DefaultFileSizeLimit   = 200 * 1024 * 1024
	DefaultDownloadTimeout = 90 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultReadTimeout     = 15 * time.Second
	DefaultRetryCount      = 3
	ChunkSize              = 32 * 1024
	ChunkReadTimeout       = 10 * time.Second
	ConnectionRetryDelay   = 1 * time.Second
	MaxRetryDelay          = 8 * time.Second
	MinPartialSize         = 1024

	networkGoodThreshold   = 500 * time.Millisecond
	networkMediumThreshold = 2 * time.Second

	connectionPoolSize    = 3
	connectionPoolMaxSize = 5

	progressLogInterval = 15 * time.Second
	maxStalls           = 3
	rangeCheckRetries   = 2
)

// downloadHeaders mimic a desktop browser; some CDNs reject bare clients.
// Encoding and connection management stay with the transport.
var downloadHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "*/*",
	"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
	"Cache-Control":   "no-cache",
	"Pragma":          "no-cache",
}

// mediaExtensions covers content types the stdlib mime table lacks in
// minimal containers.
var mediaExtensions = map[string]string{
	"audio/mpeg":       ".mp3",
	"audio/mp4":        ".m4a",
	"audio/aac":        ".aac",
	"audio/wav":        ".wav",
	"audio/x-wav":      ".wav",
	"audio/ogg":        ".ogg",
	"audio/flac":       ".flac",
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/webm":       ".webm",
	"image/jpeg":       ".jpg",
	"image/png":        ".png",
	"image/gif":        ".gif",
	"application/json": ".json",
}

type networkQuality int

const (
	qualityGood networkQuality = iota
	qualityMedium
	qualityPoor
)

func (q networkQuality) String() string {
	switch q {
	case qualityGood:
		return "good"
	case qualityMedium:
		return "medium"
	default:
		return "poor"
	}
}

// timeoutSet holds the adaptive per-attempt timeouts.
type timeoutSet struct {
	connect time.Duration
	read    time.Duration
	total   time.Duration
	chunk   time.Duration
}

type errorCategory int

const (
	errorNetwork errorCategory = iota
	errorServer
	errorFatal
	errorUnknown
)

func (c errorCategory) String() string {
	switch c {
	case errorNetwork:
		return "network"
	case errorServer:
		return "server"
	case errorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// httpStatusError marks a non-success HTTP status so the retry loop can
// classify it.
type httpStatusError struct {
	status int
	url    string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("HTTP error %d for %s", e.status, e.url)
}

// Options configure a Downloader; zero values take the package defaults.
type Options struct {
	SizeLimit int64
	Timeout   time.Duration
	Retries   int
}

// Downloader downloads remote files with retry and resume support.
type Downloader struct {
	sizeLimit int64
	timeout   time.Duration
	retries   int

	probeClient   *http.Client
	qualityClient *http.Client

	// sleep is a seam for tests; production uses time.Sleep.
	sleep func(time.Duration)
}

// New creates a Downloader, applying defaults for unset options.
func New(opts Options) *Downloader {
	if opts.SizeLimit <= 0 {
		opts.SizeLimit = DefaultFileSizeLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultDownloadTimeout
	}
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetryCount
	}
	return &Downloader{
		sizeLimit:     opts.SizeLimit,
		timeout:       opts.Timeout,
		retries:       opts.Retries,
		probeClient:   &http.Client{Transport: newTransport(DefaultConnectTimeout, DefaultReadTimeout)},
		qualityClient: &http.Client{Transport: newTransport(3*time.Second, 5*time.Second)},
		sleep:         time.Sleep,
	}
}

// downloadContext carries per-download state across retry attempts.
type downloadContext struct {
	url           string
	savePath      string
	quality       networkQuality
	supportsRange bool
	timeouts      timeoutSet
}

// Download fetches url into saveDir under a generated unique filename and
// returns the final file path. Failures come back as coded errors.
func (d *Downloader) Download(ctx context.Context, url, saveDir string) (string, error) {
	dc := d.prepare(ctx, url, saveDir)
	return d.downloadWithRetry(ctx, dc)
}

// CleanupTempFile removes a downloaded temp file, logging but not
// propagating failures.
func CleanupTempFile(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := os.Remove(path); err != nil {
		utils.LogError("Failed to cleanup temporary file", err, "path", path)
		return
	}
	utils.LogInfo("Temporary file removed", "path", path)
}

func (d *Downloader) prepare(ctx context.Context, url, saveDir string) *downloadContext {
	savePath := filepath.Join(saveDir, utils.GenUniqueID())

	quality := d.assessNetworkQuality(ctx, url)
	supportsRange := d.checkRangeSupport(ctx, url)
	utils.LogInfo("Preparing download environment",
		"network_quality", quality.String(), "range_support", supportsRange, "url", url)

	return &downloadContext{
		url:           url,
		savePath:      savePath,
		quality:       quality,
		supportsRange: supportsRange,
		timeouts:      adaptiveTimeouts(quality, d.timeout),
	}
}

func (d *Downloader) downloadWithRetry(ctx context.Context, dc *downloadContext) (string, error) {
	var lastErr error
	consecutiveFailures := 0

	for attempt := 0; attempt <= d.retries; attempt++ {
		utils.LogInfo("Starting download attempt",
			"attempt", fmt.Sprintf("%d/%d", attempt+1, d.retries+1), "url", dc.url)

		err := d.tryOnce(ctx, dc, attempt, consecutiveFailures)
		if err == nil {
			utils.LogInfo("Download completed successfully",
				"attempts", attempt+1, "path", dc.savePath)
			return dc.savePath, nil
		}

		lastErr = err
		consecutiveFailures++
		category := classifyError(err)

		if category == errorFatal {
			removeFile(dc.savePath)
			utils.LogError("Fatal error encountered, stopping retry", err, "url", dc.url)
			return "", err
		}

		if attempt < d.retries {
			utils.LogError("Download attempt failed", err,
				"attempt", attempt+1, "url", dc.url, "category", category.String())
			if shouldCleanupOnError(category, dc.supportsRange, consecutiveFailures) {
				removeFile(dc.savePath)
			}
			d.waitBeforeRetry(ctx, dc, attempt, category, consecutiveFailures)
		} else {
			utils.LogError("All retry attempts failed", err, "url", dc.url)
			removeFile(dc.savePath)
		}
	}

	if coded, ok := apperr.As(lastErr); ok {
		return "", coded
	}
	utils.LogError("All retries failed", lastErr, "url", dc.url)
	return "", apperr.New(apperr.DownloadFileFailed, "")
}

// tryOnce performs a single download attempt: open the stream (fresh or
// resumed), copy to disk, then verify completeness.
func (d *Downloader) tryOnce(ctx context.Context, dc *downloadContext, attempt, consecutiveFailures int) error {
	var existingSize int64
	if fi, err := os.Stat(dc.savePath); err == nil {
		existingSize = fi.Size()
		utils.LogInfo("Found existing partial file", "path", dc.savePath, "bytes", existingSize)
	}

	useResume := dc.supportsRange &&
		existingSize >= MinPartialSize &&
		attempt > 0 &&
		consecutiveFailures <= 2

	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := d.openStream(attemptCtx, dc, existingSize, useResume)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if useResume && resp.StatusCode == http.StatusOK {
		// Server ignored the range header; restart from scratch.
		useResume = false
		existingSize = 0
	}
	if existingSize == 0 {
		dc.savePath = pathWithExtension(dc.savePath, resp.Header.Get("Content-Type"))
	}

	// The streaming budget starts now; a hung read is cut off at the total
	// timeout through the request context.
	timer := time.AfterFunc(dc.timeouts.total, cancel)
	defer timer.Stop()

	if err := d.streamToFile(resp, dc, existingSize, useResume); err != nil {
		return err
	}
	return verifyIntegrity(resp, dc.savePath, dc.url, useResume)
}

// openStream issues the GET, with two quick connection tries for transient
// dial failures. HTTP error statuses surface immediately for classification.
func (d *Downloader) openStream(ctx context.Context, dc *downloadContext, offset int64, resume bool) (*http.Response, error) {
	client := &http.Client{Transport: newTransport(dc.timeouts.connect, dc.timeouts.read)}

	var lastErr error
	for quick := 0; quick < 2; quick++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, dc.url, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range downloadHeaders {
			req.Header.Set(k, v)
		}
		if resume {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
			utils.LogInfo("Using resume download", "from_byte", offset)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if quick == 0 {
				utils.LogError("Connection attempt failed, retrying", err, "url", dc.url)
				d.sleep(ConnectionRetryDelay)
				continue
			}
			return nil, err
		}

		if resume && resp.StatusCode == http.StatusOK {
			utils.LogInfo("Server returned 200 instead of 206, treating as fresh download")
			return resp, nil
		}
		if resp.StatusCode < 400 {
			return resp, nil
		}

		status := resp.StatusCode
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
		_ = resp.Body.Close()
		return nil, &httpStatusError{status: status, url: dc.url}
	}
	return nil, lastErr
}

// streamToFile copies the body in chunks while enforcing the total timeout,
// the size limit, and stall detection.
func (d *Downloader) streamToFile(resp *http.Response, dc *downloadContext, existingSize int64, resume bool) error {
	downloaded := existingSize
	start := time.Now()
	lastChunk := start
	lastProgress := start
	stallCount := 0

	flags := os.O_WRONLY | os.O_CREATE
	if resume {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(dc.savePath, flags, 0o644)
	if err != nil {
		return apperr.New(apperr.DownloadFileFailed, "Error occurred during download: "+err.Error())
	}
	defer f.Close()

	buf := make([]byte, ChunkSize)
	for {
		if elapsed := time.Since(start); elapsed > dc.timeouts.total {
			err := apperr.Newf(apperr.DownloadFileTimeout, "Download timeout, total time %.1fs", elapsed.Seconds())
			utils.LogError("Download total timeout", err, "limit", dc.timeouts.total)
			return err
		}

		n, readErr := resp.Body.Read(buf)
		now := time.Now()

		if gap := now.Sub(lastChunk); gap > dc.timeouts.chunk {
			stallCount++
			utils.LogError("Network stall detected", fmt.Errorf("%.1fs since last chunk", gap.Seconds()), "count", stallCount)
			if stallCount >= maxStalls {
				return apperr.New(apperr.DownloadFileFailed, "Network connection unstable, multiple stalls detected")
			}
		}

		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return apperr.New(apperr.DownloadFileFailed, "Error occurred during download: "+werr.Error())
			}
			downloaded += int64(n)
			lastChunk = now
			stallCount = 0

			if downloaded > d.sizeLimit {
				return apperr.Newf(apperr.FileSizeLimitExceeded, "%.2f MB", float64(d.sizeLimit)/1024/1024)
			}

			if now.Sub(lastProgress) >= progressLogInterval {
				elapsed := now.Sub(start).Seconds()
				percent := float64(downloaded) / float64(d.sizeLimit) * 100
				speed := float64(downloaded-existingSize) / elapsed / 1024 / 1024
				utils.LogInfo("Download progress",
					"mb", fmt.Sprintf("%.1f", float64(downloaded)/1024/1024),
					"percent", fmt.Sprintf("%.1f", percent),
					"speed_mbps", fmt.Sprintf("%.2f", speed),
					"url", truncateURL(dc.url))
				lastProgress = now
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			if errors.Is(readErr, context.Canceled) || errors.Is(readErr, context.DeadlineExceeded) ||
				time.Since(start) >= dc.timeouts.total {
				return apperr.Newf(apperr.DownloadFileTimeout, "Download timeout, total time %.1fs", time.Since(start).Seconds())
			}
			return apperr.New(apperr.DownloadFileFailed, "Data transfer error: "+readErr.Error())
		}
	}
}

// verifyIntegrity compares the on-disk size against what the server
// announced. Resumed downloads check the Content-Range total, fresh ones
// the Content-Length.
func verifyIntegrity(resp *http.Response, savePath, url string, resumed bool) error {
	fi, err := os.Stat(savePath)
	if err != nil {
		return apperr.New(apperr.DownloadFileFailed, "stat after download: "+err.Error())
	}
	actual := fi.Size()

	if resumed {
		contentRange := resp.Header.Get("Content-Range")
		if contentRange == "" {
			return nil
		}
		totalPart := contentRange[strings.LastIndex(contentRange, "/")+1:]
		if totalPart == "*" {
			return nil
		}
		expected, perr := strconv.ParseInt(totalPart, 10, 64)
		if perr != nil {
			utils.LogError("Failed to parse Content-Range header", perr, "header", contentRange)
			return nil
		}
		if actual != expected {
			_ = os.Remove(savePath)
			utils.LogError("Resume download incomplete",
				fmt.Errorf("expected %d bytes, actual %d bytes", expected, actual), "url", url)
			return apperr.New(apperr.DownloadFileFailed, "")
		}
		return nil
	}

	// ContentLength is -1 when the transfer was chunked or transparently
	// decompressed; there is nothing to verify then.
	if resp.ContentLength >= 0 && actual != resp.ContentLength {
		_ = os.Remove(savePath)
		utils.LogError("Download incomplete",
			fmt.Errorf("expected %d bytes, actual %d bytes", resp.ContentLength, actual), "url", url)
		return apperr.New(apperr.DownloadFileFailed, "")
	}
	return nil
}

func (d *Downloader) assessNetworkQuality(ctx context.Context, rawURL string) networkQuality {
	u, err := neturl.Parse(rawURL)
	if err != nil || u.Host == "" {
		return qualityPoor
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.Scheme+"://"+u.Host, nil)
	if err != nil {
		return qualityPoor
	}
	req.Header.Set("User-Agent", downloadHeaders["User-Agent"])

	start := time.Now()
	resp, err := d.qualityClient.Do(req)
	if err != nil {
		utils.LogError("Failed to assess network quality", err, "host", u.Host)
		return qualityPoor
	}
	_ = resp.Body.Close()

	switch elapsed := time.Since(start); {
	case elapsed < networkGoodThreshold:
		return qualityGood
	case elapsed < networkMediumThreshold:
		return qualityMedium
	default:
		return qualityPoor
	}
}

func (d *Downloader) checkRangeSupport(ctx context.Context, url string) bool {
	for attempt := 0; attempt <= rangeCheckRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		for k, v := range downloadHeaders {
			req.Header.Set(k, v)
		}

		resp, err := d.probeClient.Do(req)
		if err == nil && resp.StatusCode < 400 {
			acceptRanges := strings.ToLower(resp.Header.Get("Accept-Ranges"))
			_ = resp.Body.Close()
			supports := acceptRanges == "bytes"
			utils.LogInfo("Range support check", "accept_ranges", acceptRanges, "supports", supports)
			return supports
		}
		if resp != nil {
			err = &httpStatusError{status: resp.StatusCode, url: url}
			_ = resp.Body.Close()
		}
		if attempt < rangeCheckRetries {
			d.sleep(ConnectionRetryDelay)
		} else {
			utils.LogError("Failed to check range support", err, "attempts", attempt+1)
		}
	}
	return false
}

func (d *Downloader) waitBeforeRetry(ctx context.Context, dc *downloadContext, attempt int, category errorCategory, consecutiveFailures int) {
	wait := retryDelay(attempt, category, consecutiveFailures)
	utils.LogInfo("Waiting before retry", "seconds", wait.Seconds())
	d.sleep(wait)

	// Network errors invalidate the quality assessment.
	if category == errorNetwork {
		dc.quality = d.assessNetworkQuality(ctx, dc.url)
		dc.timeouts = adaptiveTimeouts(dc.quality, dc.timeouts.total)
		utils.LogInfo("Re-assessed network quality", "quality", dc.quality.String())
	}
}

func adaptiveTimeouts(quality networkQuality, total time.Duration) timeoutSet {
	var connectMult, readMult, chunkMult float64
	switch quality {
	case qualityGood:
		connectMult, readMult, chunkMult = 0.8, 0.8, 0.7
	case qualityMedium:
		connectMult, readMult, chunkMult = 1.0, 1.0, 1.0
	default:
		connectMult, readMult, chunkMult = 1.3, 1.2, 1.5
	}
	return timeoutSet{
		connect: max(5*time.Second, scale(DefaultConnectTimeout, connectMult)),
		read:    max(8*time.Second, scale(DefaultReadTimeout, readMult)),
		total:   total,
		chunk:   max(5*time.Second, scale(ChunkReadTimeout, chunkMult)),
	}
}

func scale(d time.Duration, mult float64) time.Duration {
	return time.Duration(float64(d) * mult)
}

func newTransport(connectTimeout, headerTimeout time.Duration) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          connectionPoolMaxSize,
		MaxIdleConnsPerHost:   connectionPoolSize,
		MaxConnsPerHost:       connectionPoolMaxSize,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func classifyError(err error) errorCategory {
	if coded, ok := apperr.As(err); ok {
		switch coded.Code {
		case apperr.FileSizeLimitExceeded:
			return errorFatal
		case apperr.DownloadFileTimeout:
			return errorNetwork
		default:
			return errorServer
		}
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return errorFatal
		default:
			return errorServer
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errorNetwork
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return errorNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errorNetwork
	}

	return errorUnknown
}

func shouldCleanupOnError(category errorCategory, supportsRange bool, consecutiveFailures int) bool {
	if category == errorFatal {
		return true
	}
	if !supportsRange {
		return true
	}
	return consecutiveFailures >= 3
}

// retryDelay grows with the attempt number and the error category, staying
// within the overall time budget.
func retryDelay(attempt int, category errorCategory, consecutiveFailures int) time.Duration {
	baseDelays := []int{1, 2, 4}
	base := baseDelays[min(attempt, len(baseDelays)-1)]

	multiplier := 1.0
	switch category {
	case errorNetwork:
		multiplier = 1.2
	case errorServer:
		multiplier = 1.1
	}
	if consecutiveFailures >= 2 {
		multiplier *= 1.1
	}

	seconds := int(float64(base) * multiplier)
	delay := time.Duration(seconds) * time.Second
	if delay > MaxRetryDelay {
		delay = MaxRetryDelay
	}
	if delay < time.Second {
		delay = time.Second
	}
	return delay
}

func pathWithExtension(savePath, contentType string) string {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if mediaType == "" {
		return savePath
	}
	if ext, ok := mediaExtensions[mediaType]; ok {
		return savePath + ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return savePath + exts[0]
	}
	return savePath
}

func removeFile(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := os.Remove(path); err != nil {
		utils.LogError("Failed to remove file", err, "path", path)
	}
}

func truncateURL(url string) string {
	if len(url) <= 50 {
		return url
	}
	return url[:50] + "..."
}
