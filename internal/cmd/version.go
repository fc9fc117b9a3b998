package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X ...cmd.Version=..."
var Version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show solfeed version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("solfeed v%s\n", Version)
	},
}
