package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/tonewave/cmd/tonewave/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("format") {
			return output(build.Current())
		}
		fmt.Println(build.String())
		if verbose {
			if cfg, err := GetConfig(); err == nil {
				fmt.Printf("  config: %s\n", cfg.Path())
			} else {
				fmt.Printf("  config: (unavailable: %v)\n", err)
			}
		}
		return nil
	},
}

func init() {
	addOutputFlags(versionCmd)
	rootCmd.AddCommand(versionCmd)
}
