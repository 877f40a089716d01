package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Populated at build time via -ldflags.
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// NewVersionCommand prints build information.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Printf("authcore %s (built %s, %s)\n", Version, BuildDate, runtime.Version())
		},
	}
}
