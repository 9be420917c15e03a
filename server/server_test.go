package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hommy-master/capcut-mate-data/config"
)

// fakeProber implements VersionProber for testing
type fakeProber struct {
	version string
	err     error
}

func (f *fakeProber) Version(context.Context) (string, error) {
	return f.version, f.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	return &config.Config{
		Port:     "8080",
		DraftDir: filepath.Join(base, "output", "draft"),
		TempDir:  filepath.Join(base, "temp"),
	}
}

func decodeBody(t *testing.T, resp io.Reader) map[string]interface{} {
	t.Helper()
	var data map[string]interface{}
	require.NoError(t, json.NewDecoder(resp).Decode(&data))
	return data
}

// TestReadyState tests the ReadyState struct and its methods
func TestReadyState(t *testing.T) {
	cfg := &config.Config{Port: "8080"}
	prober := &fakeProber{version: "ffprobe version 6.0"}
	readyState := NewReadyState(cfg, nil, prober)

	t.Run("Initial state should be not ready", func(t *testing.T) {
		assert.False(t, readyState.IsFullyReady())
		assert.False(t, readyState.IsDirsReady())
		assert.False(t, readyState.IsProbeReady())
		assert.False(t, readyState.IsRedisReady())
		assert.False(t, readyState.IsWorkersReady())
	})

	t.Run("Mark components ready individually", func(t *testing.T) {
		readyState.MarkDirsReady()
		assert.True(t, readyState.IsDirsReady())
		assert.False(t, readyState.IsFullyReady())

		readyState.MarkProbeReady()
		assert.True(t, readyState.IsProbeReady())
		assert.False(t, readyState.IsFullyReady())

		readyState.MarkRedisReady()
		assert.True(t, readyState.IsRedisReady())
		assert.False(t, readyState.IsFullyReady())

		readyState.MarkWorkersReady()
		assert.True(t, readyState.IsWorkersReady())
		assert.True(t, readyState.IsFullyReady())
	})

	t.Run("Getters return correct values", func(t *testing.T) {
		assert.Equal(t, cfg, readyState.GetConfig())
		assert.Equal(t, prober, readyState.GetProber())
		assert.Nil(t, readyState.GetRedis())
	})
}

// TestCreateApp tests the Fiber application creation
func TestCreateApp(t *testing.T) {
	cfg := testConfig(t)
	readyState := NewReadyState(cfg, nil, &fakeProber{version: "ffprobe version 6.0"})
	app := CreateApp(cfg, time.Now(), readyState)
	require.NotNil(t, app)

	t.Run("Health live endpoint reports alive", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health/live", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		data := decodeBody(t, resp.Body)
		assert.Equal(t, "alive", data["status"])
		assert.NotEmpty(t, data["uptime"])
	})

	t.Run("Health ready returns initializing before marks", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health/ready", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, 503, resp.StatusCode)

		data := decodeBody(t, resp.Body)
		assert.Equal(t, "initializing", data["status"])
		assert.Equal(t, false, data["ffprobe_ready"])
	})

	t.Run("Every response carries a request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health/live", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	})

	t.Run("Unknown paths outside the API group use plain error JSON", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/nope", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)

		data := decodeBody(t, resp.Body)
		assert.Contains(t, data["error"], "Cannot GET /nope")
	})
}

func TestReadyEndpointChecks(t *testing.T) {
	markAll := func(rs *ReadyState) {
		rs.MarkDirsReady()
		rs.MarkProbeReady()
		rs.MarkRedisReady()
		rs.MarkWorkersReady()
	}

	t.Run("Ready when probe succeeds and dirs are writable", func(t *testing.T) {
		cfg := testConfig(t)
		readyState := NewReadyState(cfg, nil, &fakeProber{version: "ffprobe version 6.0-static"})
		markAll(readyState)
		app := CreateApp(cfg, time.Now(), readyState)

		req := httptest.NewRequest("GET", "/health/ready", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		data := decodeBody(t, resp.Body)
		assert.Equal(t, "ready", data["status"])
		assert.Equal(t, "ffprobe version 6.0-static", data["ffprobe"])
		assert.Equal(t, "writable", data["draft_dir"])
		assert.Equal(t, "writable", data["temp_dir"])
		assert.Equal(t, "disabled", data["redis"])
	})

	t.Run("Unhealthy when the probe binary is missing", func(t *testing.T) {
		cfg := testConfig(t)
		readyState := NewReadyState(cfg, nil, &fakeProber{err: errors.New("exec: ffprobe: not found")})
		markAll(readyState)
		app := CreateApp(cfg, time.Now(), readyState)

		req := httptest.NewRequest("GET", "/health/ready", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, 503, resp.StatusCode)

		data := decodeBody(t, resp.Body)
		assert.Equal(t, "unhealthy", data["status"])
		assert.Contains(t, data["ffprobe"], "unavailable")
	})
}

// TestFiberResponseWriter tests the adapter implementation
func TestFiberResponseWriter(t *testing.T) {
	app := fiber.New()

	t.Run("NewFiberResponseWriter creates valid writer", func(t *testing.T) {
		app.Get("/test", func(c *fiber.Ctx) error {
			writer := NewFiberResponseWriter(c)
			assert.NotNil(t, writer)
			assert.NotNil(t, writer.Header())
			return c.SendString("ok")
		})

		req := httptest.NewRequest("GET", "/test", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("WriteHeader sets status code once", func(t *testing.T) {
		app.Get("/status", func(c *fiber.Ctx) error {
			writer := NewFiberResponseWriter(c)
			writer.WriteHeader(201)
			writer.WriteHeader(500)
			_, err := writer.Write([]byte("created"))
			return err
		})

		req := httptest.NewRequest("GET", "/status", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, 201, resp.StatusCode)
	})

	t.Run("Header modification works", func(t *testing.T) {
		app.Get("/headers", func(c *fiber.Ctx) error {
			writer := NewFiberResponseWriter(c)
			writer.Header().Set("X-Custom-Header", "test-value")
			_, err := writer.Write([]byte("ok"))
			return err
		})

		req := httptest.NewRequest("GET", "/headers", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, "test-value", resp.Header.Get("X-Custom-Header"))
	})
}

func TestPrometheusHandler(t *testing.T) {
	app := fiber.New()
	app.Get("/metrics", PrometheusHandler())

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), "text/plain"),
		"unexpected content type %q", resp.Header.Get(fiber.HeaderContentType))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}

// BenchmarkReadyStateCheck benchmarks the IsFullyReady check
func BenchmarkReadyStateCheck(b *testing.B) {
	readyState := NewReadyState(&config.Config{Port: "8080"}, nil, nil)
	readyState.MarkDirsReady()
	readyState.MarkProbeReady()
	readyState.MarkRedisReady()
	readyState.MarkWorkersReady()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = readyState.IsFullyReady()
	}
}
