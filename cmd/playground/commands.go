package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/thesyncim/playground-harness/pkg/bundler"
	"github.com/thesyncim/playground-harness/pkg/bundler/fsbundler"
	"github.com/thesyncim/playground-harness/pkg/bundler/vitecli"
	"github.com/thesyncim/playground-harness/pkg/harness"
	"github.com/thesyncim/playground-harness/pkg/harness/capture"
	"github.com/thesyncim/playground-harness/pkg/harness/playground"
	"github.com/thesyncim/playground-harness/pkg/harness/staticserver"
)

type globalFlags struct {
	workspace string
	tempDir   string
	verbose   bool
}

type cli struct {
	out    io.Writer
	flags  globalFlags
	fs     afero.Fs
	logger *logrus.Logger
	// wait blocks until the user asks to stop. Replaced in tests.
	wait func(ctx context.Context)
}

func newRootCmd(out io.Writer) *cobra.Command {
	return newCLI(out).rootCmd()
}

func newCLI(out io.Writer) *cli {
	c := &cli{
		out:    out,
		fs:     afero.NewOsFs(),
		logger: logrus.New(),
		wait:   waitForSignal,
	}
	c.logger.SetOutput(os.Stderr)
	return c
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "playground",
		Short:        "Run playground e2e harness pieces by hand",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if c.flags.verbose {
				c.logger.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.SetOut(c.out)

	pf := root.PersistentFlags()
	pf.StringVarP(&c.flags.workspace, "workspace", "w", ".", "directory containing playground/")
	pf.StringVar(&c.flags.tempDir, "temp-dir", playground.DefaultTempDir, "fixture copy directory, relative to the workspace")
	pf.BoolVarP(&c.flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(c.launchCmd(), c.prepareCmd(), c.serveCmd())
	return root
}

func (c *cli) banner(title string) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintln(c.out, title)
}

func (c *cli) printURL(label, url string) {
	cyan := color.New(color.FgCyan).SprintFunc()
	_, _ = fmt.Fprintf(c.out, "  %s %s\n", label, cyan(url))
}

func (c *cli) launchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "launch",
		Short: "Launch the shared browser and copy fixtures, as global setup does",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := harness.LoadOSEnv()
			if err != nil {
				return err
			}
			cfg := harness.DefaultGlobalConfig(c.flags.workspace)
			cfg.Env = &env
			cfg.Fs = c.fs
			cfg.TempDirName = c.flags.tempDir
			cfg.Logger = c.logger

			teardown, err := harness.GlobalSetup(cfg)
			if err != nil {
				return err
			}

			c.banner("Playground browser ready")
			_, _ = fmt.Fprintf(c.out, "  endpoint published in %s\n", env.SetupDir)
			_, _ = fmt.Fprintln(c.out, "  run suites in another terminal, Ctrl-C to stop")

			c.wait(cmd.Context())
			return teardown()
		},
	}
}

func (c *cli) prepareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Copy playground fixtures to the temp directory",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			src := filepath.Join(c.flags.workspace, playground.DirName)
			dst := filepath.Join(c.flags.workspace, c.flags.tempDir)
			if err := playground.CopyFixtures(c.fs, src, dst); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.out, "copied %s to %s\n", src, dst)
			return nil
		},
	}
}

type serveFlags struct {
	build   bool
	vite    bool
	prepare bool
}

func (c *cli) serveCmd() *cobra.Command {
	var sf serveFlags
	cmd := &cobra.Command{
		Use:   "serve <playground>",
		Short: "Serve one playground the way a suite sees it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context(), args[0], sf)
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&sf.build, "build", false, "serve a production build instead of the dev server")
	fl.BoolVar(&sf.vite, "vite", false, "use the Vite CLI instead of the built-in file bundler")
	fl.BoolVar(&sf.prepare, "prepare", true, "copy fixtures before serving")
	return cmd
}

func (c *cli) serve(ctx context.Context, name string, sf serveFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if sf.prepare {
		src := filepath.Join(c.flags.workspace, playground.DirName)
		dst := filepath.Join(c.flags.workspace, c.flags.tempDir)
		if err := playground.CopyFixtures(c.fs, src, dst); err != nil {
			return err
		}
	}

	opts := playground.DefaultOptions()
	opts.Fs = c.fs
	opts.TempDirName = c.flags.tempDir
	suite := filepath.Join(c.flags.workspace, playground.DirName, name, "serve_test.go")
	p, err := playground.Resolve(suite, opts)
	if err != nil {
		return err
	}

	var b bundler.Bundler
	if sf.vite {
		b = vitecli.New(vitecli.Config{Logger: c.logger})
	} else {
		fc := fsbundler.DefaultConfig()
		fc.Fs = c.fs
		fc.Logger = c.logger
		b = fsbundler.New(fc)
	}

	bo := bundler.Options{
		Root:       p.RootDir,
		ConfigFile: p.ConfigFile,
		Base:       p.Config.Base,
		OutDir:     p.Config.Build.OutDir,
		Watch:      p.Config.Build.Watch,
		Port:       p.Config.Server.Port,
		Logger:     capture.NewLogrusLogger(c.logger),
	}

	var (
		url    string
		closer io.Closer
	)
	if sf.build {
		res, err := b.Build(ctx, bo)
		if err != nil {
			return err
		}
		if res.Watcher != nil {
			defer res.Watcher.Close()
			if err := harness.NotifyRebuildComplete(ctx, res.Watcher); err != nil {
				return err
			}
		}
		sc := staticserver.DefaultConfig()
		sc.Fs = c.fs
		sc.Dir = res.Config.OutDir
		sc.Base = res.Config.Base
		sc.Dev = res.Config.Watch
		sc.Logger = c.logger
		srv, err := staticserver.NewServer(sc)
		if err != nil {
			return err
		}
		if url, err = srv.Start(ctx); err != nil {
			return err
		}
		closer = srv
	} else {
		srv, err := b.CreateServer(ctx, bo)
		if err != nil {
			return err
		}
		if err := srv.Listen(ctx); err != nil {
			_ = srv.Close()
			return err
		}
		rc := srv.Config()
		url = fmt.Sprintf("http://localhost:%d%s", rc.Port, staticserver.NormalizeBase(rc.Base))
		closer = srv
	}
	defer closer.Close()

	mode := "dev"
	if sf.build {
		mode = "build"
	}
	c.banner(fmt.Sprintf("Serving playground %s (%s)", p.Name, mode))
	c.printURL("➜  Local:", url)

	c.wait(ctx)
	return nil
}

func waitForSignal(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}
