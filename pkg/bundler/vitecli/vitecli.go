// Package vitecli is a Bundler that drives the Vite command line.
//
// Dev servers run `vite --port N`, builds `vite build`, optionally with
// `--watch`. Progress is read from the CLI's output: the "Local:" line
// carries the dev server URL, and "built in" / "error during build" mark the
// end of a build cycle.
package vitecli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thesyncim/playground-harness/pkg/bundler"
	"github.com/thesyncim/playground-harness/pkg/harness/staticserver"
)

// Config configures how the CLI is invoked.
type Config struct {
	// Command is the program and leading arguments, e.g. ["npx", "vite"].
	Command []string
	// Env is appended to the current environment of every child.
	Env []string
	// StopGrace is how long a child gets to exit after an interrupt.
	StopGrace time.Duration
	Logger    logrus.FieldLogger
}

// DefaultConfig returns the configuration used by the CLI commands.
func DefaultConfig() Config {
	return Config{
		Command:   []string{"npx", "vite"},
		StopGrace: 5 * time.Second,
		Logger:    logrus.StandardLogger(),
	}
}

// Bundler implements bundler.Bundler on top of the Vite CLI.
type Bundler struct {
	cfg Config
}

var _ bundler.Bundler = (*Bundler)(nil)

// New creates a Bundler. Zero fields of cfg take their defaults.
func New(cfg Config) *Bundler {
	d := DefaultConfig()
	if len(cfg.Command) == 0 {
		cfg.Command = d.Command
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = d.StopGrace
	}
	if cfg.Logger == nil {
		cfg.Logger = d.Logger
	}
	cfg.Logger = cfg.Logger.WithField("component", "vitecli")
	return &Bundler{cfg: cfg}
}

var (
	localRe   = regexp.MustCompile(`Local:\s+(https?://\S+)`)
	builtRe   = regexp.MustCompile(`built in ([0-9.]+)\s*(ms|s)`)
	startedRe = regexp.MustCompile(`(?i)build started`)
)

// ErrExited is returned when the CLI exits before reporting readiness.
var ErrExited = errors.New("vite exited before it was ready")

func (b *Bundler) command(opts bundler.Options, args ...string) *exec.Cmd {
	full := append(append([]string(nil), b.cfg.Command[1:]...), args...)
	if opts.ConfigFile != "" {
		full = append(full, "--config", opts.ConfigFile)
	}
	full = append(full, "--base", staticserver.NormalizeBase(opts.Base))

	cmd := exec.Command(b.cfg.Command[0], full...)
	cmd.Dir = opts.Root
	cmd.Env = append(os.Environ(), b.cfg.Env...)
	return cmd
}

// CreateServer prepares `vite` for opts.Root. The process starts in Listen.
func (b *Bundler) CreateServer(_ context.Context, opts bundler.Options) (bundler.DevServer, error) {
	opts = opts.WithDefaults()
	return &devServer{
		b:    b,
		opts: opts,
		cmd:  b.command(opts, "--port", strconv.Itoa(opts.Port)),
	}, nil
}

type devServer struct {
	b    *Bundler
	opts bundler.Options
	cmd  *exec.Cmd

	mu   sync.Mutex
	proc *process
	port int
}

// Listen starts the CLI and waits for it to print its local URL. ctx bounds
// the wait only; the server keeps running until Close.
func (s *devServer) Listen(ctx context.Context) error {
	ready := make(chan string, 1)
	proc, err := startProcess(s.cmd, func(line string) {
		if m := localRe.FindStringSubmatch(line); m != nil {
			select {
			case ready <- m[1]:
			default:
			}
		}
		logLine(s.opts.Logger, line)
	})
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", s.cmd.Path, err)
	}
	s.mu.Lock()
	s.proc = proc
	s.mu.Unlock()

	select {
	case raw := <-ready:
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("unexpected dev server URL %q: %w", raw, err)
		}
		port, err := strconv.Atoi(u.Port())
		if err != nil {
			return fmt.Errorf("unexpected dev server URL %q: %w", raw, err)
		}
		s.mu.Lock()
		s.port = port
		s.mu.Unlock()
		return nil
	case <-proc.Done():
		return fmt.Errorf("%w: %v", ErrExited, proc.Err())
	case <-ctx.Done():
		_ = proc.stop(s.b.cfg.StopGrace)
		return ctx.Err()
	}
}

func (s *devServer) Config() bundler.ResolvedConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bundler.ResolvedConfig{
		Root:   s.opts.Root,
		Base:   staticserver.NormalizeBase(s.opts.Base),
		OutDir: outDir(s.opts),
		Port:   s.port,
	}
}

func (s *devServer) Close() error {
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()
	if proc == nil {
		return nil
	}
	return proc.stop(s.b.cfg.StopGrace)
}

// Build runs `vite build`. In watch mode the process keeps running and its
// cycles are reported through the returned watcher.
func (b *Bundler) Build(ctx context.Context, opts bundler.Options) (*bundler.BuildResult, error) {
	opts = opts.WithDefaults()
	args := []string{"build", "--outDir", outDir(opts)}
	if opts.Watch {
		args = append(args, "--watch")
	}
	cmd := b.command(opts, args...)

	res := &bundler.BuildResult{Config: bundler.ResolvedConfig{
		Root:   opts.Root,
		Base:   staticserver.NormalizeBase(opts.Base),
		OutDir: outDir(opts),
		Watch:  opts.Watch,
	}}

	if opts.Watch {
		w, err := b.watch(cmd, opts)
		if err != nil {
			return nil, err
		}
		res.Watcher = w
		return res, nil
	}

	var failure string
	proc, err := startProcess(cmd, func(line string) {
		if strings.Contains(line, "error during build") {
			failure = line
		}
		logLine(opts.Logger, line)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}
	select {
	case <-proc.Done():
	case <-ctx.Done():
		_ = proc.stop(b.cfg.StopGrace)
		return nil, ctx.Err()
	}
	if err := proc.Err(); err != nil {
		if failure != "" {
			err = fmt.Errorf("%s: %w", failure, err)
		}
		return nil, &bundler.BuildError{Root: opts.Root, Err: err}
	}
	return res, nil
}

// ErrWatchExited is wrapped by the fatal error a watcher reports when the
// CLI exits on its own.
var ErrWatchExited = errors.New("vite watch exited")

// watcher turns the output of `vite build --watch` into build events.
type watcher struct {
	*bundler.Emitter
	proc    *process
	grace   time.Duration
	closing atomic.Bool
}

func (b *Bundler) watch(cmd *exec.Cmd, opts bundler.Options) (*watcher, error) {
	w := &watcher{Emitter: bundler.NewEmitter(), grace: b.cfg.StopGrace}
	var lastErr string
	proc, err := startProcess(cmd, func(line string) {
		logLine(opts.Logger, line)
		if strings.Contains(strings.ToLower(line), "error") {
			lastErr = line
		}
		for _, ev := range parseWatchLine(line) {
			if ev.Code == bundler.EventError {
				ev.Err = &bundler.BuildError{Root: opts.Root, Err: errors.New(line)}
			}
			w.Emit(ev)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}
	w.proc = proc

	go func() {
		<-proc.Done()
		if w.closing.Load() {
			return
		}
		cause := ErrWatchExited
		if err := proc.Err(); err != nil {
			cause = fmt.Errorf("%w: %w", ErrWatchExited, err)
		}
		if lastErr != "" {
			cause = fmt.Errorf("%s: %w", lastErr, cause)
		}
		w.Emit(bundler.Event{
			Code:  bundler.EventError,
			Err:   &bundler.BuildError{Root: opts.Root, Err: cause},
			Fatal: true,
		})
	}()
	return w, nil
}

func (w *watcher) Close() error {
	w.closing.Store(true)
	return w.proc.stop(w.grace)
}

// parseWatchLine maps one line of watch output to the events it marks.
func parseWatchLine(line string) []bundler.Event {
	switch {
	case startedRe.MatchString(line):
		return []bundler.Event{{Code: bundler.EventStart}, {Code: bundler.EventBundleStart}}
	case strings.Contains(line, "error during build"):
		return []bundler.Event{{Code: bundler.EventError}}
	}
	if m := builtRe.FindStringSubmatch(line); m != nil {
		return []bundler.Event{
			{Code: bundler.EventBundleEnd, Duration: parseDuration(m[1], m[2])},
			{Code: bundler.EventEnd},
		}
	}
	return nil
}

func parseDuration(value, unit string) time.Duration {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	if unit == "s" {
		return time.Duration(f * float64(time.Second))
	}
	return time.Duration(f * float64(time.Millisecond))
}

// logLine forwards CLI output to the bundler logger by severity.
func logLine(l bundler.Logger, line string) {
	lower := strings.ToLower(line)
	switch {
	case strings.HasPrefix(lower, "error") || strings.Contains(lower, "error during build"):
		l.Error(line, bundler.LogErrorOptions{})
	case strings.Contains(lower, "warning") || strings.HasPrefix(line, "(!)"):
		l.Warn(line)
	default:
		l.Info(line)
	}
}

func outDir(opts bundler.Options) string {
	if filepath.IsAbs(opts.OutDir) {
		return filepath.Clean(opts.OutDir)
	}
	return filepath.Join(opts.Root, opts.OutDir)
}
