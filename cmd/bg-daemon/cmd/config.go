package cmd

import (
	"encoding/json"
	"fmt"

	"go-bg-daemon/internal/config"

	"github.com/spf13/cobra"
)

var configInitForceFlag bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the settings file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the home directory and write a default settings file",
	RunE: func(cmd *cobra.Command, args []string) error {
		home := globalConfig.Home
		if err := config.EnsureHome(home); err != nil {
			return err
		}
		path := config.ConfigFilePath(globalCliFlags)
		if err := config.WriteDefault(path, config.Default(home), configInitForceFlag); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the fully loaded configuration as JSON",
	Long: `Loads configuration from the settings file, environment and flags
(respecting precedence) and prints the result as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonBytes, err := json.MarshalIndent(globalConfig, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(jsonBytes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configInitCmd.Flags().BoolVar(&configInitForceFlag, "force", false, "Overwrite an existing settings file")
}
