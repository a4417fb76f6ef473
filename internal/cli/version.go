package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/genroute/pkg/providers"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build and backend information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "genroute %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Fprint(out, "backends:")
		for _, k := range providers.Kinds {
			fmt.Fprintf(out, " %s", k)
		}
		fmt.Fprintln(out)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
