package playground

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, filepath.FromSlash(path), []byte(content), 0o644))
}

func memOptions(fs afero.Fs) Options {
	opts := DefaultOptions()
	opts.Fs = fs
	return opts
}

func TestName(t *testing.T) {
	tests := []struct {
		path string
		name string
		ok   bool
	}{
		{"/ws/playground/foo/__tests__/x.spec.ts", "foo", true},
		{"/ws/playground/css-modules/css_test.go", "css-modules", true},
		{"playground/foo/x_test.go", "foo", true},
		{`C:\ws\playground\bar\x_test.go`, "bar", true},
		{"/ws/packages/harness/x_test.go", "", false},
		{"/ws/playground-temp/foo/x_test.go", "", false},
		{"/ws/playground/x_test.go", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			name, ok := Name(filepath.FromSlash(tt.path))
			if filepath.Separator == '/' && tt.path[0] == 'C' {
				t.Skip("windows path")
			}
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestResolve_NotPlayground(t *testing.T) {
	_, err := Resolve("/ws/packages/harness/x_test.go", memOptions(afero.NewMemMapFs()))
	assert.True(t, errors.Is(err, ErrNotPlayground))
}

func TestResolve_FixtureMissing(t *testing.T) {
	_, err := Resolve("/ws/playground/foo/__tests__/x.spec.ts", memOptions(afero.NewMemMapFs()))
	assert.True(t, errors.Is(err, ErrFixtureMissing))
}

func TestResolve_Defaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/ws/playground-temp/foo/index.html", "<h1>foo</h1>")

	p, err := Resolve("/ws/playground/foo/__tests__/x.spec.ts", memOptions(fs))
	require.NoError(t, err)

	assert.Equal(t, "foo", p.Name)
	assert.Equal(t, filepath.FromSlash("/ws"), p.Workspace)
	assert.Equal(t, filepath.FromSlash("/ws/playground-temp/foo"), p.TestDir)
	assert.Equal(t, p.TestDir, p.RootDir)
	assert.Empty(t, p.ServeModule)
	assert.Empty(t, p.ConfigFile)
	assert.Equal(t, DefaultConfig(), p.Config)
	assert.Equal(t, filepath.FromSlash("/ws/playground-temp/foo/dist"), p.OutDir())
}

func TestResolve_RootSubdirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/ws/playground-temp/foo/root/index.html", "<h1>root</h1>")
	writeFile(t, fs, "/ws/playground-temp/foo/root/vite.config.js", "export default {}")

	p, err := Resolve("/ws/playground/foo/__tests__/x.spec.ts", memOptions(fs))
	require.NoError(t, err)

	assert.Equal(t, filepath.FromSlash("/ws/playground-temp/foo/root"), p.RootDir)
	assert.Equal(t, filepath.FromSlash("/ws/playground-temp/foo/root/vite.config.js"), p.ConfigFile)
}

func TestResolve_SuiteConfigOverridesRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/ws/playground-temp/foo/vite.config.js", "export default {}")
	writeFile(t, fs, "/ws/playground/foo/__tests__/vite.config.js", "export default { base: '/x/' }")

	p, err := Resolve("/ws/playground/foo/__tests__/x.spec.ts", memOptions(fs))
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/ws/playground/foo/__tests__/vite.config.js"), p.ConfigFile)
}

func TestResolve_RootFileIsNotARoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/ws/playground-temp/foo/root", "not a directory")

	p, err := Resolve("/ws/playground/foo/x_test.go", memOptions(fs))
	require.NoError(t, err)
	assert.Equal(t, p.TestDir, p.RootDir)
}

func TestResolve_ServeModulePreference(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/ws/playground-temp/ssr", 0o755))
	writeFile(t, fs, "/ws/playground/ssr/__tests__/serve.js", "")
	writeFile(t, fs, "/ws/playground/ssr/__tests__/serve.cjs", "")

	p, err := Resolve("/ws/playground/ssr/__tests__/ssr.spec.ts", memOptions(fs))
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/ws/playground/ssr/__tests__/serve.cjs"), p.ServeModule)

	writeFile(t, fs, "/ws/playground/ssr/__tests__/serve.ts", "")
	p, err = Resolve("/ws/playground/ssr/__tests__/ssr.spec.ts", memOptions(fs))
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/ws/playground/ssr/__tests__/serve.ts"), p.ServeModule)
}

func TestResolve_CustomTempDirAndConfigNames(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/ws/e2e/testdata/tmp/foo/custom.config.mjs", "")

	opts := memOptions(fs)
	opts.TempDirName = filepath.Join("testdata", "tmp")
	opts.ConfigFileNames = []string{"vite.config.js", "custom.config.mjs"}

	p, err := Resolve("/ws/e2e/playground/foo/foo_test.go", opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/ws/e2e"), p.Workspace)
	assert.Equal(t, filepath.FromSlash("/ws/e2e/testdata/tmp/foo/custom.config.mjs"), p.ConfigFile)
}

func TestResolve_PlaygroundConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/ws/playground-temp/foo/playground.config.yaml", `
base: /app/
build:
  outDir: out
  watch: true
server:
  port: 9600
`)

	p, err := Resolve("/ws/playground/foo/x_test.go", memOptions(fs))
	require.NoError(t, err)

	assert.Equal(t, "/app/", p.Config.Base)
	assert.Equal(t, "out", p.Config.Build.OutDir)
	assert.True(t, p.Config.Build.Watch)
	assert.Equal(t, 9600, p.Config.Server.Port)
	assert.Equal(t, filepath.FromSlash("/ws/playground-temp/foo/out"), p.OutDir())
}

func TestResolve_BadPlaygroundConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/ws/playground-temp/foo/playground.config.yaml", "base: [unterminated")

	_, err := Resolve("/ws/playground/foo/x_test.go", memOptions(fs))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/c.yaml", "build:\n  watch: true\n")

	cfg, err := LoadConfig(fs, "/c.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/", cfg.Base)
	assert.Equal(t, "dist", cfg.Build.OutDir)
	assert.True(t, cfg.Build.Watch)
}
