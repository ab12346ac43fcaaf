// Package fsbundler is a pure-Go Bundler for playgrounds made of static
// files.
//
// Its dev server serves the project root as-is with caching disabled. A
// build copies the root into the output directory; in watch mode the copy is
// redone whenever a file under the root changes.
package fsbundler

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/thesyncim/playground-harness/internal/clock"
	"github.com/thesyncim/playground-harness/pkg/bundler"
	"github.com/thesyncim/playground-harness/pkg/harness/staticserver"
)

// Config configures the bundler.
type Config struct {
	// Fs holds the project. Watch mode observes the OS file system, so it
	// only sees changes when Fs is backed by it.
	Fs              afero.Fs
	Host            string        // Dev server bind host
	MaxPortAttempts int           // Dev server ports probed before giving up
	Debounce        time.Duration // Quiet period before a watch rebuild
	Clock           clock.Clock   // Source of build durations
	Logger          logrus.FieldLogger
}

// DefaultConfig returns the configuration used by the harness.
func DefaultConfig() Config {
	return Config{
		Fs:              afero.NewOsFs(),
		MaxPortAttempts: 100,
		Debounce:        50 * time.Millisecond,
		Clock:           clock.System{},
		Logger:          logrus.StandardLogger(),
	}
}

// SkippedDirs are left out of builds and watches.
var SkippedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
}

// Bundler implements bundler.Bundler over a file system.
type Bundler struct {
	cfg Config
}

var _ bundler.Bundler = (*Bundler)(nil)

// New creates a Bundler. Zero fields of cfg take their defaults.
func New(cfg Config) *Bundler {
	d := DefaultConfig()
	if cfg.Fs == nil {
		cfg.Fs = d.Fs
	}
	if cfg.MaxPortAttempts <= 0 {
		cfg.MaxPortAttempts = d.MaxPortAttempts
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = d.Debounce
	}
	if cfg.Clock == nil {
		cfg.Clock = d.Clock
	}
	if cfg.Logger == nil {
		cfg.Logger = d.Logger
	}
	cfg.Logger = cfg.Logger.WithField("component", "fsbundler")
	return &Bundler{cfg: cfg}
}

// CreateServer prepares a dev server for opts.Root. It listens on the first
// free port at or above opts.Port.
func (b *Bundler) CreateServer(_ context.Context, opts bundler.Options) (bundler.DevServer, error) {
	opts = opts.WithDefaults()
	if ok, _ := afero.DirExists(b.cfg.Fs, opts.Root); !ok {
		return nil, fmt.Errorf("project root %s does not exist", opts.Root)
	}

	srv, err := staticserver.NewServer(staticserver.Config{
		Fs:              b.cfg.Fs,
		Dir:             opts.Root,
		Base:            opts.Base,
		Host:            b.cfg.Host,
		StartPort:       opts.Port,
		MaxPortAttempts: b.cfg.MaxPortAttempts,
		Dev:             true,
		Logger:          b.cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &devServer{
		srv:  srv,
		opts: opts,
		cfg: bundler.ResolvedConfig{
			Root:   opts.Root,
			Base:   staticserver.NormalizeBase(opts.Base),
			OutDir: outDir(opts),
		},
	}, nil
}

type devServer struct {
	srv  *staticserver.Server
	opts bundler.Options
	cfg  bundler.ResolvedConfig
}

func (s *devServer) Listen(ctx context.Context) error {
	url, err := s.srv.Start(ctx)
	if err != nil {
		return err
	}
	s.opts.Logger.Info(fmt.Sprintf("  ➜  Local:   %s", url))
	return nil
}

func (s *devServer) Config() bundler.ResolvedConfig {
	cfg := s.cfg
	cfg.Port = s.srv.Port()
	return cfg
}

func (s *devServer) Close() error {
	return s.srv.Close()
}

// Build copies opts.Root into its output directory. In watch mode it
// returns once watching has started; the first copy is reported through
// the watcher's events.
func (b *Bundler) Build(ctx context.Context, opts bundler.Options) (*bundler.BuildResult, error) {
	opts = opts.WithDefaults()
	if ok, _ := afero.DirExists(b.cfg.Fs, opts.Root); !ok {
		return nil, &bundler.BuildError{Root: opts.Root, Err: os.ErrNotExist}
	}

	res := &bundler.BuildResult{Config: bundler.ResolvedConfig{
		Root:   opts.Root,
		Base:   staticserver.NormalizeBase(opts.Base),
		OutDir: outDir(opts),
		Watch:  opts.Watch,
	}}

	if !opts.Watch {
		if _, err := b.build(ctx, opts); err != nil {
			return nil, err
		}
		return res, nil
	}

	w, err := b.watch(opts)
	if err != nil {
		return nil, err
	}
	res.Watcher = w
	return res, nil
}

// build runs one build cycle and reports how long it took.
func (b *Bundler) build(ctx context.Context, opts bundler.Options) (time.Duration, error) {
	start := b.cfg.Clock.Now()
	out := outDir(opts)

	if err := b.cfg.Fs.RemoveAll(out); err != nil {
		return 0, b.fail(opts, fmt.Errorf("failed to clear %s: %w", out, err))
	}
	err := afero.Walk(b.cfg.Fs, opts.Root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			if p == out || (p != opts.Root && SkippedDirs[info.Name()]) {
				return filepath.SkipDir
			}
		}
		rel, err := filepath.Rel(opts.Root, p)
		if err != nil {
			return err
		}
		target := filepath.Join(out, rel)
		if info.IsDir() {
			return b.cfg.Fs.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(b.cfg.Fs, p, target, info.Mode().Perm())
	})
	if err != nil {
		return 0, b.fail(opts, err)
	}

	d := clock.Since(b.cfg.Clock, start)
	opts.Logger.Info(fmt.Sprintf("✓ built in %dms", d.Milliseconds()))
	return d, nil
}

func (b *Bundler) fail(opts bundler.Options, err error) error {
	err = &bundler.BuildError{Root: opts.Root, Err: err}
	opts.Logger.Error("error during build:\n"+err.Error(), bundler.LogErrorOptions{Error: err})
	return err
}

// outDir resolves the absolute output directory.
func outDir(opts bundler.Options) string {
	if filepath.IsAbs(opts.OutDir) {
		return filepath.Clean(opts.OutDir)
	}
	return filepath.Join(opts.Root, opts.OutDir)
}

// within reports whether p is dir or below it.
func within(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, dir+string(filepath.Separator))
}

func copyFile(fs afero.Fs, from, to string, perm os.FileMode) error {
	in, err := fs.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", from, err)
	}
	return out.Close()
}
