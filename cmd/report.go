package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/reviewkit/internal/checklist"
	"github.com/joescharf/reviewkit/internal/models"
	"github.com/joescharf/reviewkit/internal/output"
)

var (
	reportReviewer     string
	reportDiffBase     string
	reportResultsFile  string
	reportSummary      string
	reportApproved     bool
	reportLimit        int
	reportChecklist    string
	reportListFormat   string
	reportExportFormat string
	reportOut          string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate, update and export review reports",
}

var reportGenerateCmd = &cobra.Command{
	Use:   "generate <checklist> [files...]",
	Short: "Start an empty report against a checklist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportGenerateRun(args[0], args[1:])
	},
}

var reportUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace a report's results, summary and approval",
	Long: `Replace a report's results, summary and approval.

The results file is a YAML list:

  - itemId: "1"
    passed: true
  - itemId: "2"
    passed: false
    comment: no length check on username`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportUpdateRun(args[0])
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportShowRun(args[0])
	},
}

var reportHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("limit") {
			reportLimit = viper.GetInt("history.limit")
		}
		return reportHistoryRun()
	},
}

var reportExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Render a report as HTML, Markdown or JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportExportRun(args[0])
	},
}

func init() {
	reportGenerateCmd.Flags().StringVar(&reportReviewer, "reviewer", "", "Reviewer id")
	reportGenerateCmd.Flags().StringVar(&reportDiffBase, "diff", "", "Add files changed locally relative to this git ref")

	reportUpdateCmd.Flags().StringVarP(&reportResultsFile, "file", "f", "", "YAML file with review results (required)")
	reportUpdateCmd.Flags().StringVar(&reportSummary, "summary", "", "Review summary")
	reportUpdateCmd.Flags().BoolVar(&reportApproved, "approved", false, "Mark the review as approved")
	_ = reportUpdateCmd.MarkFlagRequired("file")

	reportHistoryCmd.Flags().IntVar(&reportLimit, "limit", checklist.DefaultHistoryLimit, "Maximum number of reports")
	reportHistoryCmd.Flags().StringVar(&reportChecklist, "checklist", "", "Only reports for this checklist")
	reportHistoryCmd.Flags().StringVar(&reportListFormat, "format", "table", "Output format: table, json, csv")

	reportExportCmd.Flags().StringVar(&reportExportFormat, "format", "html", "Document format: html, markdown, json")
	reportExportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "Write the document to this file instead of stdout")

	reportCmd.AddCommand(reportGenerateCmd)
	reportCmd.AddCommand(reportUpdateCmd)
	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportHistoryCmd)
	reportCmd.AddCommand(reportExportCmd)
	rootCmd.AddCommand(reportCmd)
}

func reportGenerateRun(checklistName string, files []string) error {
	if reportDiffBase != "" {
		changed, err := gitClient.ChangedFiles(repoRoot(), reportDiffBase)
		if err != nil {
			return fmt.Errorf("list changed files: %w", err)
		}
		files = append(files, changed...)
	}
	if dryRun {
		ui.DryRunMsg("Would generate a report for %s over %d file(s)", output.Cyan(checklistName), len(files))
		return nil
	}
	e, err := getEngine()
	if err != nil {
		return err
	}
	r, err := e.GenerateReport(context.Background(), checklistName, files, reportReviewer)
	if err != nil {
		return err
	}
	ui.Success("Report %s created for checklist %s", output.Cyan(r.ID), r.ChecklistName)
	return nil
}

func loadResults(path string) ([]models.ReviewResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}
	results := []models.ReviewResult{}
	if err := yaml.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parse results file %s: %w", path, err)
	}
	return results, nil
}

func reportUpdateRun(id string) error {
	results, err := loadResults(reportResultsFile)
	if err != nil {
		return err
	}
	if err := checklist.ValidateResults(results); err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would update report %s with %d result(s)", output.Cyan(id), len(results))
		return nil
	}

	e, err := getEngine()
	if err != nil {
		return err
	}
	r, err := e.UpdateReport(context.Background(), id, results, reportSummary, reportApproved)
	if err != nil {
		return err
	}
	ui.Success("Report %s updated: %d passed, %d failed, %s",
		output.Cyan(r.ID), r.PassedCount(), r.FailedCount(), output.ApprovalColor(r.Approved))
	return nil
}

func reportShowRun(id string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	ctx := context.Background()
	r, err := e.GetReport(ctx, id)
	if err != nil {
		return err
	}

	descriptions := map[string]string{}
	if cl, err := e.GetChecklist(ctx, r.ChecklistName); err == nil {
		for _, item := range cl.Items {
			descriptions[item.ID] = item.Description
		}
	}

	fmt.Fprintf(ui.Out, "Report:    %s\n", output.Cyan(r.ID))
	fmt.Fprintf(ui.Out, "Checklist: %s\n", r.ChecklistName)
	if r.ReviewerID != "" {
		fmt.Fprintf(ui.Out, "Reviewer:  %s\n", r.ReviewerID)
	}
	fmt.Fprintf(ui.Out, "Created:   %s\n", r.CreatedAt().Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "Status:    %s\n", output.ApprovalColor(r.Approved))
	for _, f := range r.FilePaths {
		fmt.Fprintf(ui.Out, "  - %s\n", f)
	}
	fmt.Fprintln(ui.Out)

	if len(r.Results) > 0 {
		table := ui.Table([]string{"Item", "Result", "Comment"})
		for _, res := range r.Results {
			desc := descriptions[res.ItemID]
			if desc == "" {
				desc = res.ItemID
			}
			_ = table.Append([]string{desc, output.PassFail(res.IsPassed()), res.Comment})
		}
		_ = table.Render()
		fmt.Fprintln(ui.Out)
	}
	if r.Summary != "" {
		fmt.Fprintln(ui.Out, r.Summary)
	}
	return nil
}

func reportHistoryRun() error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var reports []models.Report
	if reportChecklist != "" {
		reports, err = e.ReportHistoryForChecklist(ctx, reportChecklist, reportLimit)
	} else {
		reports, err = e.ReportHistory(ctx, reportLimit)
	}
	if err != nil {
		return err
	}

	switch reportListFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case "csv":
		w := csv.NewWriter(ui.Out)
		_ = w.Write([]string{"ID", "Checklist", "Reviewer", "Created", "Files", "Passed", "Failed", "Approved"})
		for _, r := range reports {
			_ = w.Write([]string{
				r.ID, r.ChecklistName, r.ReviewerID, r.CreatedAt().Format(time.RFC3339),
				strconv.Itoa(len(r.FilePaths)), strconv.Itoa(r.PassedCount()), strconv.Itoa(r.FailedCount()),
				strconv.FormatBool(r.Approved),
			})
		}
		w.Flush()
		return w.Error()
	case "table", "":
	default:
		return fmt.Errorf("unknown format: %s (use: table, json, csv)", reportListFormat)
	}

	if len(reports) == 0 {
		ui.Info("No reports")
		return nil
	}
	table := ui.Table([]string{"ID", "Checklist", "Reviewer", "Created", "Results", "Status"})
	for _, r := range reports {
		_ = table.Append([]string{
			r.ID,
			r.ChecklistName,
			r.ReviewerID,
			r.CreatedAt().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d/%d", r.PassedCount(), len(r.Results)),
			output.ApprovalColor(r.Approved),
		})
	}
	_ = table.Render()
	return nil
}

func reportExportRun(id string) error {
	format, err := checklist.ParseFormat(reportExportFormat)
	if err != nil {
		return err
	}
	e, err := getEngine()
	if err != nil {
		return err
	}
	doc := e.ExportReport(context.Background(), id, format)

	if reportOut == "" {
		_, err := fmt.Fprint(ui.Out, doc)
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would write %s report to %s", format, reportOut)
		return nil
	}
	if err := os.WriteFile(reportOut, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	ui.Success("Exported report %s to %s", output.Cyan(id), reportOut)
	return nil
}
