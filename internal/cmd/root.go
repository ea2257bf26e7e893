// Package cmd provides the sitelapse command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steveyegge/sitelapse/internal/exitcode"
	"github.com/steveyegge/sitelapse/internal/preview"
	"github.com/steveyegge/sitelapse/internal/style"
)

// app is the state shared by the root command and its subcommands.
type app struct {
	input      string
	configPath string
	verbose    bool

	logger *zap.Logger
	out    io.Writer
	errOut io.Writer

	// runStarted is set once a command's RunE is entered; errors before that
	// are argument errors.
	runStarted bool

	// newController builds the preview controller. Tests replace it.
	newController func(opts preview.Options) (*preview.Controller, error)
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		out:           out,
		errOut:        errOut,
		logger:        zap.NewNop(),
		newController: preview.New,
	}
}

// newRootCmd builds the command tree around a.
func newRootCmd(a *app) *cobra.Command {
	cf := &captureFlags{}

	root := &cobra.Command{
		Use:   "sitelapse OUTPUT_DIR",
		Short: "Screenshot a live site preview for every commit or profile",
		Long: `sitelapse captures one screenshot of a live site preview per item.

An item is a git revision (--start-commit walks from that revision to HEAD,
oldest first) or a rendering profile (--profile-group N takes the profiles of
group N in the project file). Without either, the current work tree is
captured once.

For each item the preview server is started, sitelapse waits until its log
shows that a page was served, captures the screen region, and stops the
preview together with anything it spawned before moving on.

Output:
  OUTPUT_DIR/<item>/screenshot.png    one per item
  OUTPUT_DIR/<item>/<copy-file>       with --copy-file
  OUTPUT_DIR/manifest.json            after a successful run
  OUTPUT_DIR/slides.md                with --slides

Examples:
  sitelapse out --start-commit 3f2a9c1
  sitelapse out --profile-group 0 --file slides.qmd
  sitelapse out --capture browser --slides`,
		Version:       Version,
		Args:          outputDirArg,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(a.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a.runStarted = true
			return runCapture(cmd.Context(), a, cf, cmd, args[0])
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return exitcode.Wrap(exitcode.FatalArgument, "invalid flags", err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.input, "input", ".", "Site project directory")
	pf.StringVar(&a.configPath, "config", "", "Config file (default <input>/.sitelapse.toml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging, including the preview's output")

	f := root.Flags()
	f.StringVar(&cf.file, "file", "", "Target file passed to the preview tool")
	f.StringVar(&cf.startCommit, "start-commit", "", "Capture every revision from `HASH` to HEAD")
	f.IntVar(&cf.profileGroup, "profile-group", 0, "Capture every profile in group `N` of the project file")
	f.StringVar(&cf.copyFile, "copy-file", "", "File, relative to --input, copied into each item directory")
	f.StringVar(&cf.backend, "capture", "", "Capture backend: command, screen or browser (overrides config)")
	f.BoolVar(&cf.slides, "slides", false, "Write OUTPUT_DIR/slides.md")
	root.MarkFlagsMutuallyExclusive("start-commit", "profile-group")

	root.AddCommand(newOrphansCmd(a), newRegionCmd(a), newVersionCmd(a))
	return root
}

func outputDirArg(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return exitcode.Usage("expected exactly one OUTPUT_DIR, got %d argument(s)\n\nRun '%s --help' for usage",
			len(args), cmd.CommandPath())
	}
	if strings.TrimSpace(args[0]) == "" {
		return exitcode.Usage("OUTPUT_DIR is empty")
	}
	return nil
}

// Execute runs the root command and returns an exit code.
// The caller (main) should call os.Exit with this code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runArgs(ctx, os.Args[1:], newApp(os.Stdout, os.Stderr))
}

func runArgs(ctx context.Context, args []string, a *app) int {
	root := newRootCmd(a)
	root.SetArgs(args)

	err := execute(ctx, root, a)
	if err != nil {
		fmt.Fprintf(a.errOut, "%s %v\n", style.ErrorPrefix, err)
	}
	return exitcode.Code(err)
}

// execute runs root and classifies errors raised before any command body ran
// (unknown flags, flag conflicts, wrong argument count) as argument errors.
func execute(ctx context.Context, root *cobra.Command, a *app) error {
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var kinded *exitcode.Error
	if !a.runStarted && !errors.As(err, &kinded) {
		return exitcode.Wrap(exitcode.FatalArgument, "invalid arguments", err)
	}
	return err
}
