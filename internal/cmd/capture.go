package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steveyegge/sitelapse/internal/artifact"
	"github.com/steveyegge/sitelapse/internal/capture"
	"github.com/steveyegge/sitelapse/internal/config"
	"github.com/steveyegge/sitelapse/internal/exitcode"
	"github.com/steveyegge/sitelapse/internal/git"
	"github.com/steveyegge/sitelapse/internal/preview"
	"github.com/steveyegge/sitelapse/internal/region"
	"github.com/steveyegge/sitelapse/internal/run"
	"github.com/steveyegge/sitelapse/internal/sequence"
	"github.com/steveyegge/sitelapse/internal/style"
	"github.com/steveyegge/sitelapse/internal/workspace"
)

type captureFlags struct {
	file         string
	startCommit  string
	profileGroup int
	copyFile     string
	backend      string
	slides       bool
}

// runCapture validates everything it can before the first side effect, then
// hands the item loop to run.Runner.
func runCapture(ctx context.Context, a *app, f *captureFlags, cmd *cobra.Command, outputDir string) error {
	input, cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}

	if f.backend != "" {
		cfg.Capture.Backend = f.backend
	}
	if f.slides {
		cfg.Slides.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return exitcode.Wrap(exitcode.FatalArgument, "--capture", err)
	}

	profileMode := cmd.Flags().Changed("profile-group")
	if profileMode && f.profileGroup < 0 {
		return exitcode.Usage("--profile-group must be >= 0, got %d", f.profileGroup)
	}

	provider, mutator, err := a.plan(ctx, input, cfg, f, profileMode)
	if err != nil {
		return err
	}

	capturer, err := capture.New(cfg.Capture, a.logger)
	if err != nil {
		return exitcode.Wrap(exitcode.ConfigInvalid, "capture", err)
	}
	src, err := region.FromConfig(cfg.Region)
	if err != nil {
		return exitcode.Wrap(exitcode.ConfigInvalid, "region", err)
	}

	opts := preview.OptionsFromConfig(cfg.Preview, input)
	opts.Logger = a.logger.Named("preview")
	ctrl, err := a.newController(opts)
	if err != nil {
		return exitcode.Wrap(exitcode.ConfigInvalid, "preview", err)
	}

	outAbs, err := filepath.Abs(outputDir)
	if err != nil {
		return exitcode.Wrap(exitcode.FatalArgument, "OUTPUT_DIR", err)
	}

	runner := run.New(run.Options{
		OutputDir:      outAbs,
		InputDir:       input,
		TargetFile:     f.file,
		CopyFile:       f.copyFile,
		Screenshot:     cfg.ScreenshotName(),
		PreStartDelay:  cfg.Run.PreStartDelay.Duration,
		Slides:         cfg.Slides.Enabled,
		SlidesTemplate: cfg.Slides.Template,
		SlidesOutput:   cfg.Slides.Output,
		Logger:         a.logger,
		Out:            a.out,
	}, provider, mutator, ctrl, capturer, &artifact.Copier{Logger: a.logger}, src)

	m, err := runner.Run(ctx)
	if live := ctrl.Live(); live != nil {
		// Run stops every preview it starts; this only fires on a bug.
		a.logger.Error("preview still live after run", zap.Int("pid", live.PID))
		ctrl.Stop(live)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s Captured %d item(s) into %s\n",
		style.SuccessPrefix, len(m.Entries), style.Bold.Render(outputDir))
	return nil
}

// loadConfig resolves --input and reads the config file.
func (a *app) loadConfig(cmd *cobra.Command) (string, *config.Config, error) {
	input := a.input
	if !cmd.Flags().Changed("input") {
		// Run from anywhere inside the project.
		if root, err := workspace.Find(input, config.DefaultConfig().Run.ProjectFile); err == nil && root != "" {
			input = root
		}
	}
	input, err := filepath.Abs(input)
	if err != nil {
		return "", nil, exitcode.Wrap(exitcode.FatalArgument, "--input", err)
	}
	info, err := os.Stat(input)
	if err != nil {
		return "", nil, exitcode.Wrap(exitcode.FatalArgument, "--input", err)
	}
	if !info.IsDir() {
		return "", nil, exitcode.Usage("--input %s is not a directory", input)
	}

	path := a.configPath
	if path == "" {
		path = filepath.Join(input, config.FileName)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return "", nil, exitcode.Wrap(exitcode.ConfigInvalid, "loading config", err)
	}
	return input, cfg, nil
}

// plan picks the item provider and workspace mutator for the flags given.
func (a *app) plan(ctx context.Context, input string, cfg *config.Config, f *captureFlags, profileMode bool) (sequence.Provider, workspace.Mutator, error) {
	g := git.NewGit(input).WithContext(ctx)

	switch {
	case f.startCommit != "":
		if !g.IsRepo() {
			return nil, nil, exitcode.Usage("--start-commit needs a git repository; %s is not one", input)
		}
		if _, err := g.Rev(f.startCommit); err != nil {
			return nil, nil, exitcode.Usage("--start-commit %s: unknown revision", f.startCommit)
		}
		mutator, err := workspace.NewGitCheckout(g, a.logger.Named("workspace"))
		if err != nil {
			return nil, nil, exitcode.Wrap(exitcode.WorkspaceFailed, "preparing work tree", err)
		}
		return &sequence.History{Git: g, Start: f.startCommit}, mutator, nil

	case profileMode:
		project := cfg.Run.ProjectFile
		if !filepath.IsAbs(project) {
			project = filepath.Join(input, project)
		}
		return &sequence.Profiles{ProjectFile: project, Group: f.profileGroup}, workspace.Noop{}, nil

	default:
		return &sequence.Current{Git: g}, workspace.Noop{}, nil
	}
}
