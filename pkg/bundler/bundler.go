// Package bundler defines the contract between the playground harness and
// the build tool under test.
//
// A Bundler can either start a dev server that serves a project's sources
// directly, or produce a production build into an output directory. Builds
// may run in watch mode, in which case the returned Watcher reports each
// rebuild cycle as a sequence of events.
//
// Two implementations live in subpackages: fsbundler, a pure-Go reference
// bundler, and vitecli, which drives the Vite CLI as a child process.
package bundler

import (
	"context"
	"fmt"
)

// Default configuration values shared by implementations.
const (
	DefaultBase    = "/"
	DefaultOutDir  = "dist"
	DefaultDevPort = 5173
)

// Options configures a dev server or build for one project.
type Options struct {
	Root       string // Project root directory
	ConfigFile string // Optional bundler config file, passed through as-is
	Base       string // Public base path (default "/")
	OutDir     string // Build output directory, relative to Root (default "dist")
	Watch      bool   // Build in watch mode
	Port       int    // First port a dev server tries (default 5173)
	Logger     Logger // Sink for bundler output; nil discards it
}

// WithDefaults returns a copy of o with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	if o.Base == "" {
		o.Base = DefaultBase
	}
	if o.OutDir == "" {
		o.OutDir = DefaultOutDir
	}
	if o.Port == 0 {
		o.Port = DefaultDevPort
	}
	if o.Logger == nil {
		o.Logger = NopLogger()
	}
	return o
}

// ResolvedConfig is the configuration a bundler actually ran with.
type ResolvedConfig struct {
	Root   string
	Base   string
	OutDir string // Absolute output directory
	Port   int    // Dev server port, zero for builds
	Watch  bool
}

// DevServer is a running (or ready to run) dev server.
type DevServer interface {
	// Listen binds the server and starts serving. It returns once the server
	// accepts connections.
	Listen(ctx context.Context) error
	// Config returns the resolved configuration. Port is only meaningful
	// after Listen succeeds.
	Config() ResolvedConfig
	Close() error
}

// BuildResult describes a finished build, or a started watch-mode build.
type BuildResult struct {
	Config ResolvedConfig
	// Watcher is non-nil only when the build runs in watch mode.
	Watcher Watcher
}

// Bundler starts dev servers and runs builds.
type Bundler interface {
	CreateServer(ctx context.Context, opts Options) (DevServer, error)
	// Build runs a production build. In watch mode it returns as soon as
	// the watcher is running; completion is reported through its events.
	Build(ctx context.Context, opts Options) (*BuildResult, error)
}

// BuildError reports a failed build cycle.
type BuildError struct {
	Root string
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build of %s failed: %v", e.Root, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}
