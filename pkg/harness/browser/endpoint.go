package browser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/spf13/afero"
)

// EndpointFile is the file, inside the setup dir, holding the CDP endpoint
// of the shared browser.
const EndpointFile = "wsEndpoint"

// ErrNoEndpoint is returned when no browser endpoint was published.
var ErrNoEndpoint = errors.New("browser endpoint not found; did global setup run?")

// DefaultSetupDir is where global setup publishes the browser endpoint.
func DefaultSetupDir() string {
	return filepath.Join(os.TempDir(), "playground_rod_global_setup")
}

// ReadEndpoint reads the endpoint published in dir.
func ReadEndpoint(fs afero.Fs, dir string) (string, error) {
	data, err := afero.ReadFile(fs, filepath.Join(dir, EndpointFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s: %w", dir, ErrNoEndpoint)
		}
		return "", fmt.Errorf("failed to read browser endpoint: %w", err)
	}
	endpoint := strings.TrimSpace(string(data))
	if endpoint == "" {
		return "", fmt.Errorf("%s is empty: %w", filepath.Join(dir, EndpointFile), ErrNoEndpoint)
	}
	return endpoint, nil
}

// WriteEndpoint publishes endpoint in dir, creating dir if needed.
func WriteEndpoint(fs afero.Fs, dir, endpoint string) error {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return afero.WriteFile(fs, filepath.Join(dir, EndpointFile), []byte(endpoint), 0o644)
}

// LaunchConfig configures the shared Chrome started by global setup.
type LaunchConfig struct {
	Headless bool          // Run in headless mode (default: true)
	Bin      string        // Browser binary; empty lets Rod find or download one
	Timeout  time.Duration // Startup timeout (default: 30s)
}

// DefaultLaunchConfig returns sensible defaults for e2e runs.
func DefaultLaunchConfig() LaunchConfig {
	return LaunchConfig{
		Headless: true,
		Timeout:  30 * time.Second,
	}
}

// Shared is a browser process launched for a whole run.
type Shared struct {
	// Endpoint is the CDP websocket URL suites connect to.
	Endpoint string
	l        *launcher.Launcher
}

// Launch starts Chrome with flags suited to containers and CI.
func Launch(cfg LaunchConfig) (*Shared, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage")
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)
	go func() {
		u, err := l.Launch()
		done <- result{u, err}
	}()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("failed to launch Chrome: %w", r.err)
		}
		return &Shared{Endpoint: r.url, l: l}, nil
	case <-time.After(timeout):
		l.Kill()
		return nil, fmt.Errorf("failed to launch Chrome: timed out after %s", timeout)
	}
}

// Close kills the browser and removes its temporary profile.
// Always call this (via defer) to prevent orphaned Chrome processes.
func (s *Shared) Close() {
	s.l.Kill()
	s.l.Cleanup()
}
