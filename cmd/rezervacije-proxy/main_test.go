package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/rezervacije-proxy/internal/config"
	"github.com/Sternrassler/rezervacije-proxy/internal/testutil"
	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))

	err := root.Execute()
	return out.String(), err
}

func testConfig(upstreamURL string) *config.Config {
	return &config.Config{
		UpstreamURL:     upstreamURL,
		ListenAddr:      "127.0.0.1:0",
		UpstreamTimeout: time.Second,
		BulkTimeout:     200 * time.Millisecond,
		BulkConcurrency: 2,
		CacheTTL:        time.Minute,
		LogLevel:        "error",
		ShutdownTimeout: time.Second,
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "rezervacije-proxy dev"), out)
}

func TestBulkCmd(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetReservations("12", testutil.NewResultsResponse(map[string]string{"id": "r1"}))
	mock.SetReservations("15", testutil.NewServerErrorResponse())

	t.Setenv("RESERVATIONS_API_URL", mock.URL())
	t.Setenv("LOG_LEVEL", "error")

	out, err := runCmd(t, "bulk", "--start", "2024-03-04", "--end", "2024-03-05", "--id", "12,15")
	require.NoError(t, err)
	assert.JSONEq(t, `{"12":[{"id":"r1"}],"15":[]}`, out)
	assert.Equal(t, 2, mock.RequestCount())
}

func TestBulkCmd_MissingStart(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	t.Setenv("RESERVATIONS_API_URL", mock.URL())
	t.Setenv("LOG_LEVEL", "error")

	_, err := runCmd(t, "bulk", "--end", "2024-03-05", "--id", "12")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start")
	assert.Zero(t, mock.RequestCount())
}

func TestUserAgent(t *testing.T) {
	cfg := testConfig("http://localhost")
	assert.Equal(t, "rezervacije-proxy/dev", userAgent(cfg))

	cfg.UserAgent = "custom/1.0"
	assert.Equal(t, "custom/1.0", userAgent(cfg))
}

func TestServe(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/sets/", testutil.MockResponse{Body: `[{"slug":"rezervacije_fri"}]`})

	mr := miniredis.RunT(t)
	cfg := testConfig(mock.URL())
	cfg.RedisURL = mr.Addr()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, ln, zerolog.Nop()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	for _, want := range []string{"MISS", "HIT"} {
		resp, err := http.Get(base + "/api/sets/")
		require.NoError(t, err)
		var body []map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, want, resp.Header.Get("X-Cache"))
		assert.Equal(t, "rezervacije_fri", body[0]["slug"])
	}
	assert.Equal(t, 1, mock.RequestCount())

	resp, err := http.Get(base + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
