package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/reviewkit/internal/models"
	"github.com/joescharf/reviewkit/internal/output"
)

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Show the hosted-git provider detected for the repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		return providerRun()
	},
}

func init() {
	rootCmd.AddCommand(providerCmd)
}

func providerRun() error {
	remote := getIntegration().Provider()

	fmt.Fprintf(ui.Out, "Provider: %s\n", output.ProviderColor(string(remote.Kind)))
	if remote.Kind == models.ProviderUnknown {
		ui.Warning("No GitHub, GitLab or Bitbucket remote found; pull request commands are disabled")
		return nil
	}
	fmt.Fprintf(ui.Out, "Host:     %s\n", remote.Host)
	if name := remote.FullName(); name != "" {
		fmt.Fprintf(ui.Out, "Repo:     %s\n", name)
	}
	ui.VerboseLog("Remote URL: %s", remote.URL)
	return nil
}
