package cmd

import (
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"

	"github.com/gstcheck/gstcheck/internal/appid"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for Crucible, Gofulmen, and Go versions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(w, "%s %s\n", appid.BinaryName, versionInfo.Version)
		if !extended {
			return nil
		}

		version := crucible.GetVersion()
		_, _ = fmt.Fprintf(w, "Commit: %s\n", versionInfo.Commit)
		_, _ = fmt.Fprintf(w, "Built: %s\n", versionInfo.BuildDate)
		_, _ = fmt.Fprintf(w, "Go: %s\n\n", runtime.Version())
		_, _ = fmt.Fprintf(w, "Gofulmen: %s\n", version.Gofulmen)
		_, _ = fmt.Fprintf(w, "Crucible: %s\n", version.Crucible)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&extended, "extended", false, "show extended version information")
}
