package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hommy-master/capcut-mate-data/apperr"
)

func newTestDownloader(opts Options) *Downloader {
	d := New(opts)
	d.sleep = func(time.Duration) {}
	return d
}

func TestNewDefaults(t *testing.T) {
	d := New(Options{})
	assert.Equal(t, int64(DefaultFileSizeLimit), d.sizeLimit)
	assert.Equal(t, DefaultDownloadTimeout, d.timeout)
	assert.Equal(t, DefaultRetryCount, d.retries)

	d = New(Options{SizeLimit: 1024, Timeout: time.Second, Retries: 1})
	assert.Equal(t, int64(1024), d.sizeLimit)
	assert.Equal(t, time.Second, d.timeout)
	assert.Equal(t, 1, d.retries)
}

func TestDownloadSuccess(t *testing.T) {
	payload := strings.Repeat("abcdefgh", 512)
	var sawUserAgent atomic.Bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		if strings.Contains(r.Header.Get("User-Agent"), "Mozilla") {
			sawUserAgent.Store(true)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = io.WriteString(w, payload)
	}))
	defer srv.Close()

	d := newTestDownloader(Options{})
	path, err := d.Download(context.Background(), srv.URL+"/media/track", t.TempDir())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".mp3"), "path %q should carry the guessed extension", path)
	assert.True(t, sawUserAgent.Load())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
}

func TestDownloadFatalStatusSkipsRetry(t *testing.T) {
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		gets.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := newTestDownloader(Options{})
	_, err := d.Download(context.Background(), srv.URL+"/missing", dir)
	require.Error(t, err)
	assert.EqualValues(t, 1, gets.Load(), "fatal status must not be retried")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadRetryThenSucceed(t *testing.T) {
	payload := "hello, retry"
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		if gets.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, payload)
	}))
	defer srv.Close()

	var slept []time.Duration
	d := New(Options{})
	d.sleep = func(dur time.Duration) { slept = append(slept, dur) }

	path, err := d.Download(context.Background(), srv.URL+"/flaky", t.TempDir())
	require.NoError(t, err)
	assert.EqualValues(t, 2, gets.Load())
	require.NotEmpty(t, slept)
	assert.GreaterOrEqual(t, slept[len(slept)-1], time.Second)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
}

func TestDownloadSizeLimit(t *testing.T) {
	payload := strings.Repeat("x", 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.WriteString(w, payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := newTestDownloader(Options{SizeLimit: 1024})
	_, err := d.Download(context.Background(), srv.URL+"/big", dir)
	require.Error(t, err)

	coded, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.FileSizeLimitExceeded.Value, coded.Code.Value)
	assert.Contains(t, coded.Detail, "MB")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "oversized partial must be removed")
}

func TestDownloadResume(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), 256)
	const cut = 2048
	var fresh, resumed atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Accept-Ranges", "bytes")
			w.WriteHeader(http.StatusOK)
			return
		}
		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			fresh.Add(1)
			w.Header().Set("Content-Type", "audio/mpeg")
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			_, _ = w.Write(payload[:cut])
			if fl, ok := w.(http.Flusher); ok {
				fl.Flush()
			}
			panic(http.ErrAbortHandler)
		}
		resumed.Add(1)
		offset, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(rangeHeader, "bytes="), "-"))
		if err != nil || offset < 0 || offset >= len(payload) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, len(payload)-1, len(payload)))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(payload[offset:])
	}))
	defer srv.Close()

	d := newTestDownloader(Options{})
	path, err := d.Download(context.Background(), srv.URL+"/media/long", t.TempDir())
	require.NoError(t, err)
	assert.EqualValues(t, 1, fresh.Load())
	assert.EqualValues(t, 1, resumed.Load())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestDownloadTotalTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.WriteString(w, "partial")
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
		time.Sleep(600 * time.Millisecond)
	}))
	defer srv.Close()

	d := newTestDownloader(Options{Timeout: 200 * time.Millisecond, Retries: 1})
	_, err := d.Download(context.Background(), srv.URL+"/slow", t.TempDir())
	require.Error(t, err)

	coded, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.DownloadFileTimeout.Value, coded.Code.Value)
}

func TestDownloadUnreachableHost(t *testing.T) {
	d := newTestDownloader(Options{Retries: 1})
	_, err := d.Download(context.Background(), "http://127.0.0.1:1/file", t.TempDir())
	require.Error(t, err)

	coded, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.DownloadFileFailed.Value, coded.Code.Value)
	assert.Empty(t, coded.Detail)
}

func TestVerifyIntegrity(t *testing.T) {
	writeFile := func(t *testing.T, size int) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "part")
		require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("a"), size), 0o644))
		return path
	}

	t.Run("fresh match", func(t *testing.T) {
		path := writeFile(t, 100)
		resp := &http.Response{ContentLength: 100, Header: http.Header{}}
		assert.NoError(t, verifyIntegrity(resp, path, "http://example.com/f", false))
	})

	t.Run("fresh mismatch removes file", func(t *testing.T) {
		path := writeFile(t, 50)
		resp := &http.Response{ContentLength: 100, Header: http.Header{}}
		err := verifyIntegrity(resp, path, "http://example.com/f", false)
		require.Error(t, err)

		coded, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.DownloadFileFailed.Value, coded.Code.Value)

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("fresh unknown length", func(t *testing.T) {
		path := writeFile(t, 50)
		resp := &http.Response{ContentLength: -1, Header: http.Header{}}
		assert.NoError(t, verifyIntegrity(resp, path, "http://example.com/f", false))
	})

	t.Run("resume match", func(t *testing.T) {
		path := writeFile(t, 100)
		h := http.Header{}
		h.Set("Content-Range", "bytes 50-99/100")
		assert.NoError(t, verifyIntegrity(&http.Response{Header: h}, path, "http://example.com/f", true))
	})

	t.Run("resume mismatch removes file", func(t *testing.T) {
		path := writeFile(t, 80)
		h := http.Header{}
		h.Set("Content-Range", "bytes 50-99/100")
		err := verifyIntegrity(&http.Response{Header: h}, path, "http://example.com/f", true)
		require.Error(t, err)

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("resume unknown total", func(t *testing.T) {
		path := writeFile(t, 80)
		h := http.Header{}
		h.Set("Content-Range", "bytes 50-99/*")
		assert.NoError(t, verifyIntegrity(&http.Response{Header: h}, path, "http://example.com/f", true))
	})
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errorCategory
	}{
		{"size limit is fatal", apperr.New(apperr.FileSizeLimitExceeded, "200 MB"), errorFatal},
		{"download timeout is network", apperr.New(apperr.DownloadFileTimeout, ""), errorNetwork},
		{"other coded errors are server", apperr.New(apperr.DownloadFileFailed, "x"), errorServer},
		{"404 is fatal", &httpStatusError{status: http.StatusNotFound}, errorFatal},
		{"401 is fatal", &httpStatusError{status: http.StatusUnauthorized}, errorFatal},
		{"500 is server", &httpStatusError{status: http.StatusInternalServerError}, errorServer},
		{"429 is server", &httpStatusError{status: http.StatusTooManyRequests}, errorServer},
		{"context deadline is network", context.DeadlineExceeded, errorNetwork},
		{"unexpected EOF is network", io.ErrUnexpectedEOF, errorNetwork},
		{"dns timeout is network", &net.DNSError{IsTimeout: true}, errorNetwork},
		{"plain error is unknown", errors.New("boom"), errorUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name                string
		attempt             int
		category            errorCategory
		consecutiveFailures int
		want                time.Duration
	}{
		{"first network retry", 0, errorNetwork, 1, 1 * time.Second},
		{"second server retry", 1, errorServer, 1, 2 * time.Second},
		{"third network retry with consecutive failures", 2, errorNetwork, 2, 5 * time.Second},
		{"attempt beyond table reuses last base", 4, errorNetwork, 0, 4 * time.Second},
		{"unknown category keeps base", 0, errorUnknown, 0, 1 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := retryDelay(tt.attempt, tt.category, tt.consecutiveFailures)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, got, MaxRetryDelay)
		})
	}
}

func TestAdaptiveTimeouts(t *testing.T) {
	good := adaptiveTimeouts(qualityGood, 90*time.Second)
	assert.Equal(t, 8*time.Second, good.connect)
	assert.Equal(t, 12*time.Second, good.read)
	assert.Equal(t, 7*time.Second, good.chunk)
	assert.Equal(t, 90*time.Second, good.total)

	medium := adaptiveTimeouts(qualityMedium, 90*time.Second)
	assert.Equal(t, 10*time.Second, medium.connect)
	assert.Equal(t, 15*time.Second, medium.read)
	assert.Equal(t, 10*time.Second, medium.chunk)

	poor := adaptiveTimeouts(qualityPoor, 60*time.Second)
	assert.Equal(t, 13*time.Second, poor.connect)
	assert.Equal(t, 18*time.Second, poor.read)
	assert.Equal(t, 15*time.Second, poor.chunk)
	assert.Equal(t, 60*time.Second, poor.total)
}

func TestShouldCleanupOnError(t *testing.T) {
	assert.True(t, shouldCleanupOnError(errorFatal, true, 0))
	assert.True(t, shouldCleanupOnError(errorNetwork, false, 0))
	assert.True(t, shouldCleanupOnError(errorNetwork, true, 3))
	assert.False(t, shouldCleanupOnError(errorNetwork, true, 1))
	assert.False(t, shouldCleanupOnError(errorServer, true, 2))
}

func TestPathWithExtension(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        string
	}{
		{"known audio type", "audio/mpeg", "f.mp3"},
		{"type with parameters", "audio/mpeg; charset=utf-8", "f.mp3"},
		{"uppercase type", "IMAGE/PNG", "f.png"},
		{"video type", "video/mp4", "f.mp4"},
		{"empty type", "", "f"},
		{"unknown type", "application/x-nonexistent-zzz", "f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pathWithExtension("f", tt.contentType))
		})
	}
}

func TestCleanupTempFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmpfile")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	CleanupTempFile(path)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Missing files and empty paths are ignored.
	CleanupTempFile(path)
	CleanupTempFile("")
}
