package harness

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/thesyncim/playground-harness/pkg/bundler"
	"github.com/thesyncim/playground-harness/pkg/bundler/fsbundler"
	"github.com/thesyncim/playground-harness/pkg/harness/browser"
	"github.com/thesyncim/playground-harness/pkg/harness/capture"
	"github.com/thesyncim/playground-harness/pkg/harness/playground"
	"github.com/thesyncim/playground-harness/pkg/harness/staticserver"
)

// Config configures how suites are bootstrapped.
type Config struct {
	// Env holds the environment switches. Nil reads the process environment
	// when a suite starts.
	Env *EnvConfig

	// Fs is used for the endpoint file, project resolution and static
	// serving. It must be the file system the bundler writes to.
	Fs afero.Fs

	Connector browser.Connector
	Bundler   bundler.Bundler

	// CustomServers maps playground names to servers that replace or
	// prefix the default startup.
	CustomServers map[string]bundler.CustomServer
	// ServeModule builds a CustomServer from a serve.{ts,cjs,js} file
	// found next to a suite. Nil ignores such files.
	ServeModule func(path string) (bundler.CustomServer, error)

	Playground   playground.Options
	StaticServer staticserver.Config

	// Logger is the process console. Warnings logged through it during a
	// suite are captured into the server logs.
	Logger             *logrus.Logger
	SuppressedWarnings []string

	// SetupTimeout bounds Setup and Main.
	SetupTimeout time.Duration
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Fs:                 afero.NewOsFs(),
		Connector:          browser.RodConnector{},
		Bundler:            fsbundler.New(fsbundler.DefaultConfig()),
		Playground:         playground.DefaultOptions(),
		StaticServer:       staticserver.DefaultConfig(),
		Logger:             logrus.StandardLogger(),
		SuppressedWarnings: capture.DefaultSuppressedWarnings,
		SetupTimeout:       30 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Fs == nil {
		c.Fs = d.Fs
	}
	if c.Connector == nil {
		c.Connector = d.Connector
	}
	if c.Bundler == nil {
		c.Bundler = d.Bundler
	}
	if c.Playground.Fs == nil {
		c.Playground.Fs = c.Fs
	}
	if c.Playground.TempDirName == "" {
		c.Playground.TempDirName = d.Playground.TempDirName
	}
	if len(c.Playground.ConfigFileNames) == 0 {
		c.Playground.ConfigFileNames = d.Playground.ConfigFileNames
	}
	c.StaticServer = staticDefaults(c.StaticServer, d.StaticServer)
	c.StaticServer.Fs = c.Fs
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	if c.SuppressedWarnings == nil {
		c.SuppressedWarnings = d.SuppressedWarnings
	}
	if c.SetupTimeout <= 0 {
		c.SetupTimeout = d.SetupTimeout
	}
	return c
}

// staticDefaults fills the zero fields of c from d one by one, so a caller
// setting only StartPort keeps the rest of the defaults.
func staticDefaults(c, d staticserver.Config) staticserver.Config {
	if c.Base == "" {
		c.Base = d.Base
	}
	if c.StartPort <= 0 {
		c.StartPort = d.StartPort
	}
	if c.MaxPortAttempts <= 0 {
		c.MaxPortAttempts = d.MaxPortAttempts
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	return c
}
