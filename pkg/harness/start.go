package harness

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/thesyncim/playground-harness/pkg/bundler"
	"github.com/thesyncim/playground-harness/pkg/harness/browser"
	"github.com/thesyncim/playground-harness/pkg/harness/capture"
	"github.com/thesyncim/playground-harness/pkg/harness/playground"
	"github.com/thesyncim/playground-harness/pkg/harness/staticserver"
)

// Start bootstraps the suite defined in suitePath.
//
// The browser connection and page are set up for every suite; failures
// there are returned directly. For suites inside a playground, Start then
// starts the project. Errors from that stage close the page and are kept
// in the session instead of being returned, see Session.Close.
func Start(ctx context.Context, suitePath string, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()

	env, err := resolveEnv(cfg)
	if err != nil {
		return nil, err
	}
	s := newSession(cfg, env, suitePath)

	endpoint, err := browser.ReadEndpoint(cfg.Fs, env.SetupDir)
	if err != nil {
		return nil, err
	}
	b, err := cfg.Connector.Connect(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	s.browser = b

	page, err := b.NewPage(ctx)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	s.page = page
	page.Capture(s.browserLogs.Append, s.browserErrors.Append)

	s.restoreConsole = capture.InterceptWarnings(cfg.Logger, s.serverLogs, cfg.SuppressedWarnings...)

	if _, ok := playground.Name(suitePath); !ok {
		s.log.Debug("suite is outside any playground, no server started")
		return s, nil
	}

	if err := s.startProject(ctx, suitePath); err != nil {
		// Closing the page makes the suite's first page interaction fail
		// at once instead of timing out and hiding err.
		_ = s.page.Close()
		s.fail(err)
	}
	return s, nil
}

func resolveEnv(cfg Config) (EnvConfig, error) {
	if cfg.Env != nil {
		env := *cfg.Env
		if env.SetupDir == "" {
			env.SetupDir = browser.DefaultSetupDir()
		}
		return env, nil
	}
	return LoadOSEnv()
}

func (s *Session) startProject(ctx context.Context, suitePath string) error {
	p, err := playground.Resolve(suitePath, s.cfg.Playground)
	if err != nil {
		return err
	}
	s.project = p
	s.log = s.log.WithField("playground", p.Name)

	custom, ok, err := s.customServer(p)
	if err != nil {
		return err
	}
	if ok && custom.PreServe != nil {
		if err := custom.PreServe(ctx, p.RootDir, s.IsBuild()); err != nil {
			return fmt.Errorf("preServe for %s failed: %w", p.Name, err)
		}
	}
	if ok && custom.ReplacesDefault() {
		srv, url, err := custom.Serve(ctx, p.RootDir, s.IsBuild())
		if err != nil {
			return fmt.Errorf("custom server for %s failed: %w", p.Name, err)
		}
		s.server = srv
		s.SetURL(url)
		return nil
	}

	mem := capture.NewMemoryLogger(s.serverLogs)
	s.logger = mem
	if s.env.Debug {
		s.logger = capture.Tee(mem, s.log)
	}

	opts := bundler.Options{
		Root:       p.RootDir,
		ConfigFile: p.ConfigFile,
		Base:       p.Config.Base,
		OutDir:     p.Config.Build.OutDir,
		Watch:      p.Config.Build.Watch,
		Port:       p.Config.Server.Port,
		Logger:     s.logger,
	}
	if s.IsBuild() {
		return s.startBuild(ctx, opts)
	}
	return s.startDev(ctx, opts)
}

func (s *Session) customServer(p *playground.Project) (bundler.CustomServer, bool, error) {
	if cs, ok := s.cfg.CustomServers[p.Name]; ok {
		return cs, true, nil
	}
	if p.ServeModule == "" {
		return bundler.CustomServer{}, false, nil
	}
	if s.cfg.ServeModule == nil {
		s.log.WithField("module", p.ServeModule).Debug("no serve module runner configured, using default startup")
		return bundler.CustomServer{}, false, nil
	}
	cs, err := s.cfg.ServeModule(p.ServeModule)
	if err != nil {
		return cs, false, fmt.Errorf("failed to load %s: %w", p.ServeModule, err)
	}
	return cs, true, nil
}

func (s *Session) startDev(ctx context.Context, opts bundler.Options) error {
	if err := os.Setenv(InlineEnv, InlineServe); err != nil {
		return err
	}

	srv, err := s.cfg.Bundler.CreateServer(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to create dev server: %w", err)
	}
	s.server = srv
	if err := srv.Listen(ctx); err != nil {
		return fmt.Errorf("failed to start dev server: %w", err)
	}

	rc := srv.Config()
	s.SetURL(fmt.Sprintf("http://localhost:%d%s", rc.Port, staticserver.NormalizeBase(rc.Base)))
	s.log.WithField("url", s.URL()).Debug("dev server ready")
	return s.navigate(ctx)
}

func (s *Session) startBuild(ctx context.Context, opts bundler.Options) error {
	if err := os.Setenv(InlineEnv, InlineBuild); err != nil {
		return err
	}

	res, err := s.cfg.Bundler.Build(ctx, opts)
	if err != nil {
		return err
	}
	if res == nil {
		return errors.New("bundler returned no build result")
	}
	if res.Watcher != nil {
		s.watcher = res.Watcher
		// Serve only once the first cycle has written the output.
		if err := NotifyRebuildComplete(ctx, res.Watcher); err != nil {
			return fmt.Errorf("waiting for first build: %w", err)
		}
	}

	sc := s.cfg.StaticServer
	sc.Dir = res.Config.OutDir
	sc.Base = res.Config.Base
	sc.Dev = res.Config.Watch
	sc.Logger = s.log
	srv, err := staticserver.NewServer(sc)
	if err != nil {
		return err
	}
	url, err := srv.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start static server: %w", err)
	}
	s.server = srv
	s.SetURL(url)
	return s.navigate(ctx)
}

func (s *Session) navigate(ctx context.Context) error {
	return s.page.Navigate(ctx, s.URL())
}
