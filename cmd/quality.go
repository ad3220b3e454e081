package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/reviewkit/internal/models"
)

var qualityCmd = &cobra.Command{
	Use:   "quality <file...>",
	Short: "Run quality heuristics over local files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return qualityRun(args)
	},
}

func init() {
	rootCmd.AddCommand(qualityCmd)
}

func qualityRun(paths []string) error {
	i := getIntegration()
	ctx := context.Background()

	report := models.NeutralQuality()
	for _, p := range paths {
		fq := i.CheckFileQuality(ctx, p)
		report.FileCount++
		report.TotalIssues += fq.Issues
		report.Suggestions = append(report.Suggestions, fq.Suggestions...)
	}
	printQuality(report)
	return nil
}
