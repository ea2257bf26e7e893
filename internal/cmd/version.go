package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/steveyegge/sitelapse/internal/cmd.Version=v0.3.0 -X ...Commit=$(git rev-parse --short HEAD)"
var (
	Version = "dev"
	Commit  = ""
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.runStarted = true
			v := Version
			if Commit != "" {
				v += " (" + Commit + ")"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sitelapse %s %s/%s\n", v, runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
