package harness

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/thesyncim/playground-harness/pkg/harness/browser"
	"github.com/thesyncim/playground-harness/pkg/harness/playground"
)

// GlobalConfig configures the once-per-run setup.
type GlobalConfig struct {
	// Env holds the environment switches. Nil reads the process environment.
	Env *EnvConfig
	Fs  afero.Fs
	// Workspace is the directory holding playground/. Fixtures are copied
	// to Workspace/TempDirName.
	Workspace   string
	TempDirName string
	Launch      browser.LaunchConfig
	Logger      logrus.FieldLogger

	// launch is replaced in tests.
	launch func(browser.LaunchConfig) (endpoint string, stop func(), err error)
}

// DefaultGlobalConfig returns the configuration for a workspace.
func DefaultGlobalConfig(workspace string) GlobalConfig {
	return GlobalConfig{
		Fs:          afero.NewOsFs(),
		Workspace:   workspace,
		TempDirName: playground.DefaultTempDir,
		Launch:      browser.DefaultLaunchConfig(),
		Logger:      logrus.StandardLogger(),
	}
}

// GlobalSetup prepares a run: it launches the shared browser, publishes its
// endpoint where Start looks for it, and copies the playground fixtures to
// their temp dir.
//
// The returned teardown kills the browser, removes the endpoint and, unless
// VITE_PRESERVE_BUILD_ARTIFACTS is set, the fixture copies.
func GlobalSetup(cfg GlobalConfig) (teardown func() error, err error) {
	d := DefaultGlobalConfig(cfg.Workspace)
	if cfg.Fs == nil {
		cfg.Fs = d.Fs
	}
	if cfg.TempDirName == "" {
		cfg.TempDirName = d.TempDirName
	}
	if cfg.Launch.Timeout <= 0 {
		cfg.Launch.Timeout = d.Launch.Timeout
	}
	if cfg.Logger == nil {
		cfg.Logger = d.Logger
	}
	if cfg.launch == nil {
		cfg.launch = launchShared
	}
	log := cfg.Logger.WithField("component", "global-setup")

	var env EnvConfig
	if cfg.Env != nil {
		env = *cfg.Env
		if env.SetupDir == "" {
			env.SetupDir = browser.DefaultSetupDir()
		}
	} else if env, err = LoadOSEnv(); err != nil {
		return nil, err
	}
	cfg.Launch.Headless = env.HeadlessMode()

	src := filepath.Join(cfg.Workspace, playground.DirName)
	tmp := filepath.Join(cfg.Workspace, cfg.TempDirName)
	if err := playground.CopyFixtures(cfg.Fs, src, tmp); err != nil {
		return nil, err
	}
	log.WithField("dir", tmp).Debug("fixtures copied")

	endpoint, stop, err := cfg.launch(cfg.Launch)
	if err != nil {
		return nil, err
	}
	if err := browser.WriteEndpoint(cfg.Fs, env.SetupDir, endpoint); err != nil {
		stop()
		return nil, err
	}
	log.WithField("endpoint", endpoint).Info("browser launched")

	return func() error {
		stop()
		var errs []error
		if err := cfg.Fs.RemoveAll(env.SetupDir); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", env.SetupDir, err))
		}
		if !env.PreserveArtifacts {
			if err := cfg.Fs.RemoveAll(tmp); err != nil {
				errs = append(errs, fmt.Errorf("failed to remove %s: %w", tmp, err))
			}
		}
		return errors.Join(errs...)
	}, nil
}

func launchShared(cfg browser.LaunchConfig) (string, func(), error) {
	b, err := browser.Launch(cfg)
	if err != nil {
		return "", nil, err
	}
	return b.Endpoint, b.Close, nil
}
