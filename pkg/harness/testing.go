package harness

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"testing"
)

// Setup starts a session for the suite in the calling test file and closes
// it when t finishes. A setup error is reported through t at cleanup, after
// the suite's own failures.
func Setup(t testing.TB, cfg Config) *Session {
	t.Helper()
	_, file, _, ok := runtime.Caller(1)
	if !ok {
		t.Fatal("harness: cannot determine the calling file")
	}
	return SetupSuite(t, file, cfg)
}

// SetupSuite is Setup for an explicit suite path.
func SetupSuite(t testing.TB, suitePath string, cfg Config) *Session {
	t.Helper()
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SetupTimeout)
	defer cancel()

	s, err := Start(ctx, suitePath, cfg)
	if err != nil {
		t.Fatalf("harness setup: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("harness: %v", err)
		}
	})
	return s
}

// Main runs the package's tests against one session shared by the whole
// package. bind receives the session before any test runs. The suite path
// is the file calling Main. It returns the exit code for os.Exit.
//
//	var pg *harness.Session
//
//	func TestMain(m *testing.M) {
//		os.Exit(harness.Main(m, func(s *harness.Session) { pg = s }, harness.Config{}))
//	}
func Main(m *testing.M, bind func(*Session), cfg Config) int {
	_, file, _, ok := runtime.Caller(1)
	if !ok {
		fmt.Fprintln(os.Stderr, "harness: cannot determine the calling file")
		return 1
	}
	return MainSuite(m, file, bind, cfg)
}

// Runner runs a package's tests. *testing.M implements it.
type Runner interface {
	Run() int
}

// MainSuite is Main for an explicit suite path.
func MainSuite(m Runner, suitePath string, bind func(*Session), cfg Config) int {
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SetupTimeout)
	s, err := Start(ctx, suitePath, cfg)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "harness setup: %v\n", err)
		return 1
	}
	if bind != nil {
		bind(s)
	}

	code := m.Run()
	if err := s.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "harness: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}
