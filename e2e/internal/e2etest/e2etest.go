//go:build e2e

// Package e2etest wires global setup and suite setup together for the e2e
// packages.
package e2etest

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/thesyncim/playground-harness/pkg/harness"
	"github.com/thesyncim/playground-harness/pkg/harness/playground"
)

var env harness.EnvConfig

// Config returns the harness configuration for suites of this run.
func Config() harness.Config {
	return harness.Config{Env: &env}
}

// Main runs global setup for the workspace holding the calling file, then
// the package's tests. When the caller lives in a playground, the tests run
// against a session bound through bind.
func Main(m *testing.M, bind func(*harness.Session)) int {
	_, file, _, ok := runtime.Caller(1)
	if !ok {
		fmt.Fprintln(os.Stderr, "e2etest: cannot determine the calling file")
		return 1
	}

	teardown, err := globalSetup(workspace(file))
	if err != nil {
		fmt.Fprintf(os.Stderr, "e2etest: %v\n", err)
		return 1
	}

	var code int
	if _, inPlayground := playground.Name(file); inPlayground {
		code = harness.MainSuite(m, file, bind, Config())
	} else {
		code = m.Run()
	}

	if err := teardown(); err != nil {
		fmt.Fprintf(os.Stderr, "e2etest: %v\n", err)
	}
	// Safety net for panics or os.Exit paths where teardown did not run.
	cleanupOrphanedBrowsers()
	return code
}

func globalSetup(ws string) (func() error, error) {
	var err error
	if env, err = harness.LoadOSEnv(); err != nil {
		return nil, err
	}
	// A private setup dir per package keeps parallel packages apart.
	if env.SetupDir, err = os.MkdirTemp("", "playground_rod_"); err != nil {
		return nil, err
	}

	cfg := harness.DefaultGlobalConfig(ws)
	cfg.Env = &env
	return harness.GlobalSetup(cfg)
}

// workspace is the directory that holds playground/ for file. Files outside
// any playground use their own directory.
func workspace(file string) string {
	slashed := filepath.ToSlash(file)
	if i := strings.LastIndex(slashed, "/"+playground.DirName+"/"); i >= 0 {
		return filepath.FromSlash(slashed[:i])
	}
	return filepath.Dir(file)
}

// cleanupOrphanedBrowsers attempts to kill Chrome processes that may have
// been left behind by failed tests. This is best-effort cleanup.
//
// Only browsers started by Rod's launcher match, identified by its
// user-data-dir.
func cleanupOrphanedBrowsers() {
	switch runtime.GOOS {
	case "darwin", "linux":
		// pkill returns non-zero if no processes matched, ignore error
		_ = exec.Command("pkill", "-f", "rod/user-data").Run()
	case "windows":
		// No command-line matching in taskkill; leave system browsers alone.
	}
}
