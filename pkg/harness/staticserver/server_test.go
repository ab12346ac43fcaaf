package staticserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memDist(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p/dist/index.html", []byte("<title>built</title>"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/p/dist/assets/app.js", []byte("console.log(1)"), 0o644))
	return fs
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

// freePort holds a port on all interfaces until the test ends.
func freePort(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func testConfig(fs afero.Fs, port int) Config {
	cfg := DefaultConfig()
	cfg.Fs = fs
	cfg.Dir = "/p/dist"
	cfg.StartPort = port
	cfg.Logger = logrus.New()
	return cfg
}

func TestHandler_Ping(t *testing.T) {
	h := NewHandler(afero.NewMemMapFs(), "/nowhere", "/", false)

	rec := get(t, h, "/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())

	h = NewHandler(memDist(t), "/p/dist", "/app/", true)
	rec = get(t, h, "/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestHandler_ServesFiles(t *testing.T) {
	h := NewHandler(memDist(t), "/p/dist", "/", false)

	rec := get(t, h, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>built</title>")

	rec = get(t, h, "/assets/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Cache-Control"))

	rec = get(t, h, "/missing.js")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Base(t *testing.T) {
	h := NewHandler(memDist(t), "/p/dist", "app", false)

	rec := get(t, h, "/app/assets/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = get(t, h, "/assets/app.js")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, h, "/app")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/app/", rec.Header().Get("Location"))
}

func TestHandler_DevDisablesCaching(t *testing.T) {
	h := NewHandler(memDist(t), "/p/dist", "/", true)

	rec := get(t, h, "/assets/app.js")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestNormalizeBase(t *testing.T) {
	tests := []struct {
		in, base string
	}{
		{"", "/"},
		{"/", "/"},
		{"./", "/"},
		{"app", "/app/"},
		{"/app", "/app/"},
		{"/nested/app/", "/nested/app/"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.base, NormalizeBase(tt.in))
		})
	}
}

func TestServer_StartAndPing(t *testing.T) {
	ln, port := freePort(t)
	require.NoError(t, ln.Close())

	srv, err := NewServer(testConfig(memDist(t), port))
	require.NoError(t, err)

	url, err := srv.Start(context.Background())
	require.NoError(t, err)
	defer func() { assert.NoError(t, srv.Close()) }()

	assert.Equal(t, fmt.Sprintf("http://localhost:%d/", srv.Port()), url)
	assert.NotEmpty(t, srv.Addr())

	resp, err := http.Get(url + "ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))

	again, err := srv.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, url, again)
}

func TestServer_SkipsPortInUse(t *testing.T) {
	_, taken := freePort(t)

	cfg := testConfig(memDist(t), taken)
	cfg.Base = "/app/"
	srv, err := NewServer(cfg)
	require.NoError(t, err)

	url, err := srv.Start(context.Background())
	require.NoError(t, err)
	defer srv.Close()

	assert.Greater(t, srv.Port(), taken)
	assert.Equal(t, fmt.Sprintf("http://localhost:%d/app/", srv.Port()), url)

	resp, err := http.Get(url + "assets/app.js")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_PartialConfigRetriesPorts(t *testing.T) {
	_, taken := freePort(t)

	srv, err := NewServer(Config{Fs: memDist(t), Dir: "/p/dist", StartPort: taken, Logger: logrus.New()})
	require.NoError(t, err)

	url, err := srv.Start(context.Background())
	require.NoError(t, err)
	defer srv.Close()

	assert.Greater(t, srv.Port(), taken)
	assert.Equal(t, fmt.Sprintf("http://localhost:%d/", srv.Port()), url)
}

func TestServer_PortsExhausted(t *testing.T) {
	_, taken := freePort(t)

	cfg := testConfig(memDist(t), taken)
	cfg.MaxPortAttempts = 1
	srv, err := NewServer(cfg)
	require.NoError(t, err)

	_, err = srv.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPortsExhausted))

	var exhausted *PortsExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, taken, exhausted.First)
	assert.Equal(t, taken, exhausted.Last)
	assert.Empty(t, srv.Addr())
}

func TestServer_OtherBindErrorsFailFast(t *testing.T) {
	cfg := testConfig(memDist(t), 5000)
	// TEST-NET-1 is never assigned to a local interface.
	cfg.Host = "192.0.2.1"
	srv, err := NewServer(cfg)
	require.NoError(t, err)

	_, err = srv.Start(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPortsExhausted))
	assert.Contains(t, err.Error(), "failed to listen on port 5000")
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	srv, err := NewServer(testConfig(memDist(t), 5000))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
	assert.Zero(t, srv.Port())
}

func TestNewServer_RequiresDir(t *testing.T) {
	_, err := NewServer(Config{})
	assert.Error(t, err)
}
