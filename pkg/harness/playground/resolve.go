// Package playground maps a test suite to the fixture project it exercises.
//
// Suites live under a directory named "playground", one subdirectory per
// fixture project:
//
//	<workspace>/playground/<name>/.../x_test.go
//
// Before the run, the fixtures are copied to <workspace>/playground-temp so
// that tests may edit files freely. Resolve locates that copy and the
// optional files inside it that change how the project is served.
package playground

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// Defaults for Options.
const (
	DirName          = "playground"
	DefaultTempDir   = "playground-temp"
	RootDirName      = "root"
	ConfigName       = "playground.config.yaml"
	DefaultBundlerCF = "vite.config.js"
)

// ServeModuleNames are the custom server files looked up next to a suite,
// in order of preference.
var ServeModuleNames = []string{"serve.ts", "serve.cjs", "serve.js"}

var (
	// ErrNotPlayground is returned for suites outside any playground tree.
	ErrNotPlayground = errors.New("suite is not inside a playground")
	// ErrFixtureMissing is returned when the temp copy of a playground does
	// not exist, usually because global setup did not run.
	ErrFixtureMissing = errors.New("playground fixture copy is missing")
)

var nameRe = regexp.MustCompile(`(^|/)` + DirName + `/([\w-]+)/`)

// Options controls resolution.
type Options struct {
	Fs              afero.Fs
	TempDirName     string   // Directory next to "playground" holding the copies
	ConfigFileNames []string // Candidate bundler config files, next to the suite or in the root dir
}

// DefaultOptions returns the options used by the harness.
func DefaultOptions() Options {
	return Options{
		Fs:              afero.NewOsFs(),
		TempDirName:     DefaultTempDir,
		ConfigFileNames: []string{DefaultBundlerCF},
	}
}

// Project is a resolved playground.
type Project struct {
	Name        string // Playground name, e.g. "css"
	SuitePath   string // Suite file the project was resolved from
	Workspace   string // Directory containing "playground" and the temp dir
	TestDir     string // Temp copy of the fixture
	RootDir     string // TestDir/root if present, else TestDir
	ServeModule string // Custom server file, or empty
	ConfigFile  string // Custom bundler config file, or empty
	Config      Config // Contents of playground.config.yaml, or defaults
}

// Name extracts the playground name from a suite path. ok is false when
// the path is not under a playground directory.
func Name(suitePath string) (name string, ok bool) {
	m := nameRe.FindStringSubmatch(filepath.ToSlash(suitePath))
	if m == nil {
		return "", false
	}
	return m[2], true
}

// Resolve maps a suite file to its playground project.
func Resolve(suitePath string, opts Options) (*Project, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.TempDirName == "" {
		opts.TempDirName = DefaultTempDir
	}

	slashed := filepath.ToSlash(suitePath)
	loc := nameRe.FindStringSubmatchIndex(slashed)
	if loc == nil {
		return nil, fmt.Errorf("%s: %w", suitePath, ErrNotPlayground)
	}
	name := slashed[loc[4]:loc[5]]
	// loc[3] is the end of the optional leading slash group.
	workspace := slashed[:loc[3]]
	if workspace == "" {
		workspace = "."
	}
	workspace = filepath.FromSlash(strings.TrimSuffix(workspace, "/"))
	if workspace == "" {
		workspace = string(filepath.Separator)
	}

	p := &Project{
		Name:      name,
		SuitePath: suitePath,
		Workspace: workspace,
		TestDir:   filepath.Join(workspace, opts.TempDirName, name),
	}

	if ok, _ := afero.DirExists(opts.Fs, p.TestDir); !ok {
		return nil, fmt.Errorf("%s: %w", p.TestDir, ErrFixtureMissing)
	}

	p.RootDir = p.TestDir
	if ok, _ := afero.DirExists(opts.Fs, filepath.Join(p.TestDir, RootDirName)); ok {
		p.RootDir = filepath.Join(p.TestDir, RootDirName)
	}

	p.ServeModule = firstFile(opts.Fs, filepath.Dir(suitePath), ServeModuleNames)
	// A config next to the suite overrides the project's own.
	p.ConfigFile = firstFile(opts.Fs, filepath.Dir(suitePath), opts.ConfigFileNames)
	if p.ConfigFile == "" {
		p.ConfigFile = firstFile(opts.Fs, p.RootDir, opts.ConfigFileNames)
	}

	cfg, err := LoadConfig(opts.Fs, filepath.Join(p.RootDir, ConfigName))
	if err != nil {
		return nil, err
	}
	p.Config = cfg

	return p, nil
}

// OutDir returns the absolute build output directory of the project.
func (p *Project) OutDir() string {
	out := p.Config.Build.OutDir
	if filepath.IsAbs(out) {
		return out
	}
	return filepath.Join(p.RootDir, out)
}

func firstFile(fs afero.Fs, dir string, names []string) string {
	for _, n := range names {
		candidate := filepath.Join(dir, n)
		if ok, _ := afero.Exists(fs, candidate); ok {
			if isDir, _ := afero.IsDir(fs, candidate); !isDir {
				return candidate
			}
		}
	}
	return ""
}

// relSlash returns rel as a forward-slash path, for matching skip lists.
func relSlash(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return target
	}
	return path.Clean(filepath.ToSlash(rel))
}
