package harness

import (
	"fmt"
	"os"

	"github.com/mstoykov/envconfig"

	"github.com/thesyncim/playground-harness/pkg/harness/browser"
)

// InlineEnv tells the bundler under test which mode the harness runs it in.
const (
	InlineEnv   = "VITE_INLINE"
	InlineServe = "inline-serve"
	InlineBuild = "inline-build"
)

// EnvConfig holds the environment switches of a run.
type EnvConfig struct {
	// Build runs suites against a production build instead of a dev server.
	Build bool `envconfig:"VITE_TEST_BUILD"`
	// Debug forwards server logs to the logger as well as the buffers.
	Debug bool `envconfig:"VITE_DEBUG_SERVE"`
	// PreserveArtifacts keeps the playground temp copies after global
	// teardown.
	PreserveArtifacts bool `envconfig:"VITE_PRESERVE_BUILD_ARTIFACTS"`
	// SetupDir is where global setup publishes the browser endpoint.
	SetupDir string `envconfig:"PLAYGROUND_SETUP_DIR"`
	// Headless controls the browser launched by global setup. Nil means
	// headless; see HeadlessMode.
	Headless *bool `envconfig:"HEADLESS"`
}

// HeadlessMode reports whether the browser runs headless. Only an explicit
// false opens a window.
func (e EnvConfig) HeadlessMode() bool {
	return e.Headless == nil || *e.Headless
}

// DefaultEnv returns the values used for variables that are not set.
func DefaultEnv() EnvConfig {
	return EnvConfig{
		SetupDir: browser.DefaultSetupDir(),
	}
}

// LoadEnv reads the environment through lookup, starting from DefaultEnv.
func LoadEnv(lookup func(key string) (string, bool)) (EnvConfig, error) {
	env := DefaultEnv()
	if err := envconfig.Process("", &env, lookup); err != nil {
		return env, fmt.Errorf("invalid environment: %w", err)
	}
	if env.SetupDir == "" {
		env.SetupDir = browser.DefaultSetupDir()
	}
	return env, nil
}

// LoadOSEnv reads the process environment.
func LoadOSEnv() (EnvConfig, error) {
	return LoadEnv(os.LookupEnv)
}
