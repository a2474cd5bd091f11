package cmd

import (
	"fmt"

	"go-bg-daemon/internal/api"
	"go-bg-daemon/internal/query"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugPrintApiUrlCmd)
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debugging utilities (not for general use)",
}

var debugPrintApiUrlCmd = &cobra.Command{
	Use:   "print-api-url",
	Short: "Build a search query from the settings and print the gallery URL",
	Long: `Builds one query the way an update would and prints the resulting
gallery search URL without calling the API. Queries are randomized in
keywords mode, so repeated runs may differ.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := query.Build(globalConfig.Fetcher, nil)
		if err != nil {
			return err
		}
		client := api.NewClient(globalConfig.Fetcher.ClientID, nil)
		fmt.Fprintln(cmd.OutOrStdout(), client.SearchURL(q))
		return nil
	},
}
