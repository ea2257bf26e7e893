package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/sitelapse/internal/exitcode"
	"github.com/steveyegge/sitelapse/internal/region"
	"github.com/steveyegge/sitelapse/internal/style"
)

func newRegionCmd(a *app) *cobra.Command {
	var asJSON bool

	regionCmd := &cobra.Command{
		Use:   "region",
		Short: "Print the screen region captures will use",
		Long: `Print the screen region a run would capture.

With the default macos source this is the last area selected with
cmd-shift-4. Select the browser window's content area that way before
a run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.runStarted = true
			_, cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			src, err := region.FromConfig(cfg.Region)
			if err != nil {
				return exitcode.Wrap(exitcode.ConfigInvalid, "region", err)
			}
			r, err := src.Acquire(cmd.Context())
			if err != nil {
				return exitcode.Wrap(exitcode.ConfigInvalid, "acquiring screen region", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
			fmt.Fprintf(out, "%s %s %s\n", style.ArrowPrefix, style.Bold.Render(r.String()),
				style.Dim.Render("("+cfg.Region.Source+")"))
			return nil
		},
	}
	regionCmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return regionCmd
}
