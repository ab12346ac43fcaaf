// Package staticserver provides an importable HTTP server for a built
// playground.
//
// The server answers GET /ping with "pong" for liveness checks and serves
// every other path from the build output directory, mounted under the
// configured base path. When the starting port is taken it probes upward,
// one port at a time, until a bind succeeds.
package staticserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Config holds server configuration options.
type Config struct {
	Fs              afero.Fs      // File system Dir lives on (default: OS)
	Dir             string        // Directory to serve
	Base            string        // Public base path, e.g. "/" or "/app/"
	Host            string        // Bind host; empty binds all interfaces
	StartPort       int           // First port to try
	MaxPortAttempts int           // Ports probed before giving up
	Dev             bool          // Disable caching, for watch-mode builds
	ReadTimeout     time.Duration // HTTP read timeout
	WriteTimeout    time.Duration // HTTP write timeout
	Logger          logrus.FieldLogger
}

// Defaults for zero Config fields.
const (
	DefaultStartPort       = 5000
	DefaultMaxPortAttempts = 100
)

// DefaultConfig returns the configuration used for build-mode suites.
func DefaultConfig() Config {
	return Config{
		Fs:              afero.NewOsFs(),
		Base:            "/",
		StartPort:       DefaultStartPort,
		MaxPortAttempts: DefaultMaxPortAttempts,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		Logger:          logrus.StandardLogger(),
	}
}

// ErrPortsExhausted is matched by errors.Is when no port in the probed range
// could be bound.
var ErrPortsExhausted = errors.New("no free port")

// PortsExhaustedError reports the range of ports that were all in use.
type PortsExhaustedError struct {
	First, Last int
}

func (e *PortsExhaustedError) Error() string {
	return fmt.Sprintf("no free port in %d-%d", e.First, e.Last)
}

func (e *PortsExhaustedError) Is(target error) bool {
	return target == ErrPortsExhausted
}

// Server serves a directory over plain HTTP.
type Server struct {
	cfg        Config
	httpServer *http.Server
	listener   net.Listener
	port       int
	url        string
	mu         sync.Mutex
	running    bool
}

// NewServer creates a new server with the given configuration. Zero fields
// other than Dir take their DefaultConfig values.
// The server is not started until Start() is called.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Dir == "" {
		return nil, errors.New("staticserver: Dir is required")
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.StartPort <= 0 {
		cfg.StartPort = DefaultStartPort
	}
	if cfg.MaxPortAttempts <= 0 {
		cfg.MaxPortAttempts = DefaultMaxPortAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	cfg.Base = NormalizeBase(cfg.Base)
	cfg.Logger = cfg.Logger.WithField("component", "staticserver")

	return &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Handler:      NewHandler(cfg.Fs, cfg.Dir, cfg.Base, cfg.Dev),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}, nil
}

// NewHandler routes /ping to a fixed response and everything else to the
// files under dir, mounted at base.
func NewHandler(fs afero.Fs, dir, base string, dev bool) http.Handler {
	base = NormalizeBase(base)

	var files http.Handler = http.FileServer(afero.NewHttpFs(fs).Dir(dir))
	if base != "/" {
		files = http.StripPrefix(strings.TrimSuffix(base, "/"), files)
	}
	if dev {
		files = noCache(files)
	}

	r := chi.NewRouter()
	r.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			files.ServeHTTP(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	if base == "/" {
		r.Handle("/*", files)
	} else {
		r.Handle(base+"*", files)
		r.Handle(strings.TrimSuffix(base, "/"), http.RedirectHandler(base, http.StatusMovedPermanently))
	}
	return r
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// NormalizeBase turns a configured base into "/" or "/segment/.../".
func NormalizeBase(base string) string {
	base = strings.TrimSpace(base)
	if base == "" || base == "/" || base == "." || base == "./" {
		return "/"
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// Start binds the first free port at or above StartPort and begins serving.
// It returns the URL the directory is reachable at, including the base.
// This method is non-blocking - the server runs in a goroutine.
func (s *Server) Start(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.url, nil
	}

	ln, port, err := listenFrom(ctx, s.cfg.Host, s.cfg.StartPort, s.cfg.MaxPortAttempts, s.cfg.Logger)
	if err != nil {
		return "", err
	}

	s.listener = ln
	s.port = port
	s.url = fmt.Sprintf("http://localhost:%d%s", port, s.cfg.Base)
	s.running = true

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.cfg.Logger.WithError(err).Warn("static server stopped")
		}
	}()

	s.cfg.Logger.WithField("url", s.url).Debug("static server listening")
	return s.url, nil
}

// listenFrom binds host:port, moving to the next port whenever the address
// is already in use.
func listenFrom(
	ctx context.Context, host string, start, attempts int, log logrus.FieldLogger,
) (net.Listener, int, error) {
	var lc net.ListenConfig
	port := start
	for i := 0; i < attempts; i++ {
		port = start + i
		ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(host, fmt.Sprint(port)))
		if err == nil {
			return ln, port, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, 0, fmt.Errorf("failed to listen on port %d: %w", port, err)
		}
		log.WithField("port", port).Debug("port in use, trying next")
	}
	return nil, 0, &PortsExhaustedError{First: start, Last: port}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	return s.httpServer.Shutdown(ctx)
}

// Close shuts the server down, waiting at most five seconds for in-flight
// requests.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Addr returns the address the server is listening on.
// Returns empty string if server is not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ""
	}
	return s.listener.Addr().String()
}

// Port returns the bound port, or zero before Start.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// URL returns the URL returned by Start.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}
