package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/tonewave/cmd/tonewave/internal/config"
	"github.com/haivivi/tonewave/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and edit configuration",
	Long: `Show and edit the engine and server configuration.

Keys are dotted paths into config.yaml, for example engine.sample_rate or
server.frame_rate.

Examples:
  tonewave config show
  tonewave config get engine.tap_resolution
  tonewave config set engine.tap_resolution 4096
  tonewave config keys`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		return output(cfg)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		fmt.Println(cfg.Path())
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List settable keys with their current values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		for _, k := range config.Keys() {
			v, _ := cfg.Get(k)
			fmt.Fprintf(w, "%s\t%s\n", k, v)
		}
		return w.Flush()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		v, err := cfg.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one configuration value and save",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		// Environment overrides are not written back.
		cfg, err := config.ReadFile(dir)
		if err != nil {
			return err
		}
		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		cli.PrintSuccess("%s = %s (%s)", args[0], args[1], cfg.Path())
		return nil
	},
}

func init() {
	addOutputFlags(configShowCmd)
	configCmd.AddCommand(configShowCmd, configPathCmd, configKeysCmd, configGetCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
