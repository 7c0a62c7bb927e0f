package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/bonfire-gw/bonfire/internal/build"

	"github.com/spf13/cobra"
)

func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Bonfire version information",
		Long:  `Print the version information of Bonfire`,
		Run: func(cmd *cobra.Command, args []string) {
			version(cmd.OutOrStdout())
		},
	}
}

func version(w io.Writer) {
	if build.Commit != "" {
		_, _ = fmt.Fprintf(w, "Bonfire v%s %s (Go version: %s)\n", build.Version, build.Commit, runtime.Version())
		return
	}
	_, _ = fmt.Fprintf(w, "Bonfire v%s (Go version: %s)\n", build.Version, runtime.Version())
}
