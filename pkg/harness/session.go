// Package harness bootstraps end-to-end suites against playground projects.
//
// For each suite the harness connects to the shared browser published by
// global setup and opens a page. When the suite lives in a playground it
// then starts the project, either as a dev server or as a production build
// behind a static server, and points the page at it. Everything the servers
// and the page print is captured for assertions.
//
// A suite owns one Session. Setup errors do not abort the suite: the page is
// closed so the suite's own assertions fail fast, and the original error is
// returned again from Close so it is reported as the cause.
package harness

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/thesyncim/playground-harness/pkg/bundler"
	"github.com/thesyncim/playground-harness/pkg/harness/browser"
	"github.com/thesyncim/playground-harness/pkg/harness/capture"
	"github.com/thesyncim/playground-harness/pkg/harness/playground"
)

// Session is the state of one suite, from Start to Close.
type Session struct {
	cfg Config
	env EnvConfig
	log logrus.FieldLogger

	browser browser.Browser
	page    browser.Page
	server  io.Closer
	watcher bundler.Watcher
	project *playground.Project
	logger  bundler.Logger

	serverLogs    *capture.Buffer[string]
	browserLogs   *capture.Buffer[string]
	browserErrors *capture.Buffer[error]

	restoreConsole func()

	mu       sync.Mutex
	url      string
	setupErr error
	closed   bool
}

func newSession(cfg Config, env EnvConfig, suitePath string) *Session {
	return &Session{
		cfg:           cfg,
		env:           env,
		log:           cfg.Logger.WithFields(logrus.Fields{"component": "harness", "suite": suitePath}),
		serverLogs:    capture.NewBuffer[string](),
		browserLogs:   capture.NewBuffer[string](),
		browserErrors: capture.NewBuffer[error](),
	}
}

// IsBuild reports whether the suite runs against a production build.
func (s *Session) IsBuild() bool { return s.env.Build }

// IsServe reports whether the suite runs against a dev server.
func (s *Session) IsServe() bool { return !s.env.Build }

// URL returns the URL the project is served at. It is empty until startup
// succeeds, or when a custom server did not report one.
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// SetURL overrides the suite URL, for suites that start extra servers.
func (s *Session) SetURL(url string) {
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
}

// Browser returns the suite's browser.
func (s *Session) Browser() browser.Browser { return s.browser }

// Page returns the suite's page.
func (s *Session) Page() browser.Page { return s.page }

// Watcher returns the build watcher, or nil outside watch-mode builds.
func (s *Session) Watcher() bundler.Watcher { return s.watcher }

// Project returns the resolved playground, or nil for suites outside one.
func (s *Session) Project() *playground.Project { return s.project }

// Logger returns the logger handed to the bundler, or nil when no bundler
// was started.
func (s *Session) Logger() bundler.Logger { return s.logger }

// ServerLogs returns server-side log lines in order.
func (s *Session) ServerLogs() []string { return s.serverLogs.Items() }

// ResetServerLogs clears the server log buffer.
func (s *Session) ResetServerLogs() { s.serverLogs.Reset() }

// BrowserLogs returns browser console messages in order.
func (s *Session) BrowserLogs() []string { return s.browserLogs.Items() }

// BrowserErrors returns uncaught page errors in order.
func (s *Session) BrowserErrors() []error { return s.browserErrors.Items() }

// SetupErr returns the error that interrupted startup, if any.
func (s *Session) SetupErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setupErr
}

// ResetSetupErr forgets the setup error, so Close no longer reports it.
func (s *Session) ResetSetupErr() {
	s.mu.Lock()
	s.setupErr = nil
	s.mu.Unlock()
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.setupErr = err
	s.mu.Unlock()
}

// Close tears the suite down: page, server, watcher, browser, then the
// console interceptor. It returns the setup error, if one was captured,
// joined with any teardown failures. Calling Close again only repeats the
// setup error.
func (s *Session) Close() error {
	s.mu.Lock()
	closed := s.closed
	s.closed = true
	setupErr := s.setupErr
	s.mu.Unlock()
	if closed {
		return setupErr
	}

	s.serverLogs.Reset()

	errs := []error{setupErr}
	if s.page != nil {
		errs = append(errs, wrap("close page", s.page.Close()))
	}
	if s.server != nil {
		errs = append(errs, wrap("close server", s.server.Close()))
	}
	if s.watcher != nil {
		errs = append(errs, wrap("close watcher", s.watcher.Close()))
	}
	if s.browser != nil {
		errs = append(errs, wrap("close browser", s.browser.Close()))
	}
	if s.restoreConsole != nil {
		s.restoreConsole()
	}
	return errors.Join(errs...)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
