package harness

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/playground-harness/pkg/bundler"
	"github.com/thesyncim/playground-harness/pkg/harness/browser"
	"github.com/thesyncim/playground-harness/pkg/harness/playground"
	"github.com/thesyncim/playground-harness/pkg/harness/staticserver"
)

const (
	testSetupDir  = "/setup"
	testWorkspace = "/work"
	testEndpoint  = "ws://127.0.0.1:9222/devtools/browser/test"
)

type fakePage struct {
	mu        sync.Mutex
	navigated []string
	closed    int
	navErr    error
	onConsole func(string)
	onError   func(error)
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	return p.navErr
}

func (p *fakePage) Capture(onConsole func(string), onError func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onConsole, p.onError = onConsole, onError
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *fakePage) urls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigated...)
}

type fakeBrowser struct {
	endpoint string
	page     *fakePage
	closed   bool
	closeErr error
}

func (b *fakeBrowser) NewPage(context.Context) (browser.Page, error) { return b.page, nil }

func (b *fakeBrowser) Close() error {
	b.closed = true
	return b.closeErr
}

type fakeDevServer struct {
	cfg       bundler.ResolvedConfig
	listenErr error
	closed    bool
}

func (s *fakeDevServer) Listen(context.Context) error   { return s.listenErr }
func (s *fakeDevServer) Config() bundler.ResolvedConfig { return s.cfg }
func (s *fakeDevServer) Close() error {
	s.closed = true
	return nil
}

type fakeWatcher struct {
	*bundler.Emitter
	closed bool
}

func (w *fakeWatcher) Close() error {
	w.closed = true
	return nil
}

// fakeBundler records the options it was called with. Build writes an
// index.html into the output dir on fs.
type fakeBundler struct {
	fs       afero.Fs
	opts     bundler.Options
	inline   string
	server   *fakeDevServer
	watcher  *fakeWatcher
	buildErr error
}

func (b *fakeBundler) CreateServer(_ context.Context, opts bundler.Options) (bundler.DevServer, error) {
	b.opts = opts
	opts = opts.WithDefaults()
	b.server = &fakeDevServer{cfg: bundler.ResolvedConfig{Root: opts.Root, Base: opts.Base, Port: opts.Port}}
	opts.Logger.Info("dev server starting")
	return b.server, nil
}

func (b *fakeBundler) Build(_ context.Context, opts bundler.Options) (*bundler.BuildResult, error) {
	b.opts = opts
	if b.buildErr != nil {
		return nil, b.buildErr
	}
	opts = opts.WithDefaults()
	out := filepath.Join(opts.Root, opts.OutDir)
	if err := afero.WriteFile(b.fs, filepath.Join(out, "index.html"), []byte("<h1>built</h1>"), 0o644); err != nil {
		return nil, err
	}
	res := &bundler.BuildResult{Config: bundler.ResolvedConfig{Root: opts.Root, Base: opts.Base, OutDir: out, Watch: opts.Watch}}
	if opts.Watch {
		b.watcher = &fakeWatcher{Emitter: bundler.NewEmitter()}
		b.watcher.Emit(bundler.Event{Code: bundler.EventStart})
		b.watcher.Emit(bundler.Event{Code: bundler.EventEnd})
		res.Watcher = b.watcher
	}
	return res, nil
}

type fixture struct {
	fs      afero.Fs
	page    *fakePage
	browser *fakeBrowser
	bundler *fakeBundler
	logger  *logrus.Logger
	env     EnvConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv(InlineEnv, "")

	fs := afero.NewMemMapFs()
	require.NoError(t, browser.WriteEndpoint(fs, testSetupDir, testEndpoint))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	page := &fakePage{}
	return &fixture{
		fs:      fs,
		page:    page,
		browser: &fakeBrowser{page: page},
		bundler: &fakeBundler{fs: fs},
		logger:  logger,
		env:     EnvConfig{SetupDir: testSetupDir},
	}
}

func (f *fixture) config() Config {
	sc := staticserver.DefaultConfig()
	sc.Host = "127.0.0.1"
	sc.StartPort = 15000
	return Config{
		Env: &f.env,
		Fs:  f.fs,
		Connector: browser.ConnectorFunc(func(_ context.Context, endpoint string) (browser.Browser, error) {
			f.browser.endpoint = endpoint
			return f.browser, nil
		}),
		Bundler:      f.bundler,
		StaticServer: sc,
		Logger:       f.logger,
	}
}

// addPlayground creates the temp copy of a playground and returns the path
// of a suite file inside it.
func (f *fixture) addPlayground(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	tmp := filepath.Join(testWorkspace, playground.DefaultTempDir, name)
	require.NoError(t, f.fs.MkdirAll(tmp, 0o755))
	for rel, content := range files {
		require.NoError(t, afero.WriteFile(f.fs, filepath.Join(tmp, rel), []byte(content), 0o644))
	}
	return filepath.Join(testWorkspace, playground.DirName, name, "__tests__", name+"_test.go")
}

var errBoom = errors.New("boom")
