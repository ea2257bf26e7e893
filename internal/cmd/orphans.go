package cmd

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/sitelapse/internal/exitcode"
	"github.com/steveyegge/sitelapse/internal/preview"
	"github.com/steveyegge/sitelapse/internal/style"
)

func newOrphansCmd(a *app) *cobra.Command {
	var force bool

	orphansCmd := &cobra.Command{
		Use:   "orphans",
		Short: "Find preview servers left behind by earlier runs",
		Long: `Find processes whose command line matches the preview signature
(preview.signature in the config, default "quarto preview").

A normal run stops every preview it starts. Leftovers come from runs that
were killed with SIGKILL or crashed.

Examples:
  sitelapse orphans          # List leftover preview processes
  sitelapse orphans list     # Same as above
  sitelapse orphans kill     # Kill them, after confirmation
  sitelapse orphans kill -f  # Kill without confirmation`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.runStarted = true
			return runOrphansList(a, cmd)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List leftover preview processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.runStarted = true
			return runOrphansList(a, cmd)
		},
	}

	killCmd := &cobra.Command{
		Use:   "kill",
		Short: "Kill leftover preview processes",
		Long: `Send SIGTERM to every leftover preview process, wait briefly, then
SIGKILL whatever is still running.

Without flags, prompts for confirmation before killing.
Use -f/--force to kill without confirmation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.runStarted = true
			return runOrphansKill(a, cmd, force)
		},
	}
	killCmd.Flags().BoolVarP(&force, "force", "f", false, "Kill without confirmation")

	orphansCmd.AddCommand(listCmd, killCmd)
	return orphansCmd
}

func (a *app) controller(cmd *cobra.Command) (*preview.Controller, error) {
	input, cfg, err := a.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	opts := preview.OptionsFromConfig(cfg.Preview, input)
	opts.Logger = a.logger.Named("preview")
	ctrl, err := a.newController(opts)
	if err != nil {
		return nil, exitcode.Wrap(exitcode.ConfigInvalid, "preview", err)
	}
	return ctrl, nil
}

func runOrphansList(a *app, cmd *cobra.Command) error {
	ctrl, err := a.controller(cmd)
	if err != nil {
		return err
	}
	procs, err := ctrl.Leftovers()
	if err != nil {
		return fmt.Errorf("listing processes: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(procs) == 0 {
		fmt.Fprintf(out, "%s No leftover preview processes matching %q\n",
			style.SuccessPrefix, ctrl.Signature())
		return nil
	}

	fmt.Fprintf(out, "%s Found %d leftover preview process(es):\n\n", style.WarningPrefix, len(procs))
	fmt.Fprint(out, processTable(procs))
	return nil
}

func runOrphansKill(a *app, cmd *cobra.Command, force bool) error {
	ctrl, err := a.controller(cmd)
	if err != nil {
		return err
	}
	procs, err := ctrl.Leftovers()
	if err != nil {
		return fmt.Errorf("listing processes: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(procs) == 0 {
		fmt.Fprintf(out, "%s No leftover preview processes matching %q\n",
			style.SuccessPrefix, ctrl.Signature())
		return nil
	}

	fmt.Fprintf(out, "%s Found %d leftover preview process(es):\n\n", style.WarningPrefix, len(procs))
	fmt.Fprint(out, processTable(procs))
	fmt.Fprintln(out)

	if !force {
		fmt.Fprintf(out, "Kill these %d process(es)? [y/N] ", len(procs))
		response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Fprintln(out, "Aborted")
			return nil
		}
	}

	n, err := ctrl.Sweep(cmd.Context())
	if err != nil {
		return fmt.Errorf("sweeping: %w", err)
	}
	fmt.Fprintf(out, "%s %d process(es) signalled\n", style.SuccessPrefix, n)

	if left, err := ctrl.Leftovers(); err == nil && len(left) > 0 {
		fmt.Fprintf(out, "%s %d still running\n", style.ErrorPrefix, len(left))
		return exitcode.Newf(exitcode.Internal, "%d preview process(es) survived SIGKILL", len(left))
	}
	return nil
}

func processTable(procs []preview.Process) string {
	t := style.NewTable(
		style.Column{Name: "PID", Width: 8, Align: style.AlignRight, Style: func(s string) string { return style.Bold.Render(s) }},
		style.Column{Name: "PPID", Width: 8, Align: style.AlignRight},
		style.Column{Name: "COMMAND", Width: 72},
	)
	for _, p := range procs {
		t.AddRow(strconv.Itoa(p.PID), strconv.Itoa(p.PPID), p.Args)
	}
	return t.Render()
}
