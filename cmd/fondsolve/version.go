package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  argsUsage(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "fondsolve version %s\n", version)
			fmt.Fprintf(a.stdout, "commit: %s\n", commit)
			fmt.Fprintf(a.stdout, "built: %s\n", buildDate)
			fmt.Fprintf(a.stdout, "go version: %s\n", runtime.Version())
			fmt.Fprintf(a.stdout, "os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
