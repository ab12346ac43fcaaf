package vitecli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/thesyncim/playground-harness/pkg/bundler"
)

// ServeConfig configures the serve-module runner.
type ServeConfig struct {
	// Runtimes maps a serve file extension to the command that runs it.
	Runtimes map[string][]string
	// StopGrace is how long the server gets to exit after an interrupt.
	StopGrace time.Duration
	Logger    bundler.Logger
}

// DefaultServeConfig runs JavaScript with node and TypeScript through tsx.
func DefaultServeConfig() ServeConfig {
	return ServeConfig{
		Runtimes: map[string][]string{
			".js":  {"node"},
			".cjs": {"node"},
			".ts":  {"npx", "tsx"},
		},
		StopGrace: 5 * time.Second,
		Logger:    bundler.NopLogger(),
	}
}

var urlRe = regexp.MustCompile(`https?://[^\s"']+`)

// ServeModule returns a factory that turns a serve file into a
// bundler.CustomServer. The server runs as
//
//	<runtime> <serve file> <root dir> <is build>
//
// and must print the URL it listens on. The first URL printed becomes the
// suite URL.
func ServeModule(cfg ServeConfig) func(path string) (bundler.CustomServer, error) {
	d := DefaultServeConfig()
	if cfg.Runtimes == nil {
		cfg.Runtimes = d.Runtimes
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = d.StopGrace
	}
	if cfg.Logger == nil {
		cfg.Logger = d.Logger
	}

	return func(path string) (bundler.CustomServer, error) {
		runtime, ok := cfg.Runtimes[filepath.Ext(path)]
		if !ok || len(runtime) == 0 {
			return bundler.CustomServer{}, fmt.Errorf("no runtime configured for %s", filepath.Base(path))
		}
		if _, err := os.Stat(path); err != nil {
			return bundler.CustomServer{}, err
		}

		serve := func(ctx context.Context, rootDir string, isBuild bool) (io.Closer, string, error) {
			args := append(append([]string(nil), runtime[1:]...), path, rootDir, strconv.FormatBool(isBuild))
			cmd := exec.Command(runtime[0], args...)
			cmd.Dir = rootDir

			ready := make(chan string, 1)
			proc, err := startProcess(cmd, func(line string) {
				if u := urlRe.FindString(line); u != "" {
					select {
					case ready <- u:
					default:
					}
				}
				cfg.Logger.Info(line)
			})
			if err != nil {
				return nil, "", fmt.Errorf("failed to start %s: %w", filepath.Base(path), err)
			}
			closer := closerFunc(func() error { return proc.stop(cfg.StopGrace) })

			select {
			case u := <-ready:
				return closer, u, nil
			case <-proc.Done():
				return nil, "", fmt.Errorf("%s exited before printing its URL: %v", filepath.Base(path), proc.Err())
			case <-ctx.Done():
				_ = closer.Close()
				return nil, "", ctx.Err()
			}
		}
		return bundler.CustomServer{Serve: serve}, nil
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
