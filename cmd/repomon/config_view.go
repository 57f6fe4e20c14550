package repomon

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skaphos/repomon/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the repomon config",
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Print the resolved config in canonical form",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("format")
		format, err := config.ParseFormat(name)
		if err != nil {
			return err
		}
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return config.Write(cmd.OutOrStdout(), cfg, format)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path runtime commands would use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		path, err := config.ResolveConfigPath(flagConfig, cwd)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
		return err
	},
}

func init() {
	configViewCmd.Flags().StringP("format", "o", string(config.FormatTOML), "document format: toml, yaml")
	configCmd.AddCommand(configViewCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
