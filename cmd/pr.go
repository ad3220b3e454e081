package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/reviewkit/internal/models"
	"github.com/joescharf/reviewkit/internal/output"
	"github.com/joescharf/reviewkit/internal/provider"
)

var (
	prTitle       string
	prDescription string
	prSource      string
	prTarget      string
)

var prCmd = &cobra.Command{
	Use:   "pr",
	Short: "Work with pull requests on the detected provider",
}

var prListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List open pull requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		return prListRun()
	},
}

var prCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a pull request",
	RunE: func(cmd *cobra.Command, args []string) error {
		return prCreateRun()
	},
}

var prCommentCmd = &cobra.Command{
	Use:   "comment <id> <path> <line> <text...>",
	Short: "Post an inline review comment",
	Args:  cobra.MinimumNArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePRID(args[0])
		if err != nil {
			return err
		}
		line, err := strconv.Atoi(args[2])
		if err != nil || line <= 0 {
			return fmt.Errorf("invalid line number: %s", args[2])
		}
		return prCommentRun(id, args[1], line, strings.Join(args[3:], " "))
	},
}

var prReviewCmd = &cobra.Command{
	Use:   "review <id> <approve|request_changes|comment> [text...]",
	Short: "Submit a review decision",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePRID(args[0])
		if err != nil {
			return err
		}
		decision := models.ReviewDecision(args[1])
		if !decision.Valid() {
			return fmt.Errorf("invalid decision: %s (use: approve, request_changes, comment)", args[1])
		}
		return prReviewRun(id, decision, strings.Join(args[2:], " "))
	},
}

var prFilesCmd = &cobra.Command{
	Use:   "files <id>",
	Short: "List files changed by a pull request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePRID(args[0])
		if err != nil {
			return err
		}
		return prFilesRun(id)
	},
}

var prQualityCmd = &cobra.Command{
	Use:   "quality <id>",
	Short: "Run quality heuristics over a pull request's changed files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePRID(args[0])
		if err != nil {
			return err
		}
		return prQualityRun(id)
	},
}

func init() {
	prCreateCmd.Flags().StringVar(&prTitle, "title", "", "Pull request title (required)")
	prCreateCmd.Flags().StringVar(&prDescription, "description", "", "Pull request description")
	prCreateCmd.Flags().StringVar(&prSource, "source", "", "Source branch (default: current branch)")
	prCreateCmd.Flags().StringVar(&prTarget, "target", "main", "Target branch")
	_ = prCreateCmd.MarkFlagRequired("title")

	prCmd.AddCommand(prListCmd)
	prCmd.AddCommand(prCreateCmd)
	prCmd.AddCommand(prCommentCmd)
	prCmd.AddCommand(prReviewCmd)
	prCmd.AddCommand(prFilesCmd)
	prCmd.AddCommand(prQualityCmd)
	rootCmd.AddCommand(prCmd)
}

func parsePRID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(s, "#"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid pull request id: %s", s)
	}
	return id, nil
}

// requireProvider fails early when the repository has no supported remote.
func requireProvider(i *provider.Integration) error {
	if i.Provider().Kind == models.ProviderUnknown {
		return provider.ErrNoProvider
	}
	return nil
}

func prListRun() error {
	i := getIntegration()
	prs, err := i.OpenPullRequests(context.Background())
	if err != nil {
		return err
	}
	if len(prs) == 0 {
		ui.Info("No open pull requests on %s", output.ProviderColor(string(i.Provider().Kind)))
		return nil
	}

	table := ui.Table([]string{"#", "Title", "Author", "Branch"})
	for _, pr := range prs {
		branch := ""
		if pr.SourceBranch != "" {
			branch = pr.SourceBranch + " -> " + pr.TargetBranch
		}
		_ = table.Append([]string{strconv.Itoa(pr.ID), pr.Title, pr.Author, branch})
	}
	_ = table.Render()
	return nil
}

func prCreateRun() error {
	i := getIntegration()
	if err := requireProvider(i); err != nil {
		return err
	}
	if prSource == "" {
		branch, err := gitClient.CurrentBranch(repoRoot())
		if err != nil {
			return fmt.Errorf("no --source given and current branch unknown: %w", err)
		}
		prSource = branch
	}
	if dryRun {
		ui.DryRunMsg("Would open pull request %q (%s -> %s) on %s", prTitle, prSource, prTarget, i.Provider().Kind)
		return nil
	}

	created, err := i.CreatePullRequest(context.Background(), prTitle, prDescription, prSource, prTarget)
	if err != nil {
		return err
	}
	if created == nil {
		return provider.ErrNoProvider
	}
	ui.Success("Opened pull request #%d", created.ID)
	if created.URL != "" {
		fmt.Fprintln(ui.Out, created.URL)
	}
	return nil
}

func prCommentRun(id int, path string, line int, text string) error {
	i := getIntegration()
	if err := requireProvider(i); err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would comment on PR %d at %s:%d", id, path, line)
		return nil
	}
	if !i.AddReviewComment(context.Background(), id, path, line, text) {
		return fmt.Errorf("failed to add comment to PR %d (see log for details)", id)
	}
	ui.Success("Commented on PR #%d at %s:%d", id, path, line)
	return nil
}

func prReviewRun(id int, decision models.ReviewDecision, text string) error {
	i := getIntegration()
	if err := requireProvider(i); err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would submit review on PR %d: %s", id, decision)
		return nil
	}
	if !i.SubmitReview(context.Background(), id, decision, text) {
		return fmt.Errorf("failed to submit review on PR %d (see log for details)", id)
	}
	ui.Success("Submitted %s review on PR #%d", decision, id)
	return nil
}

func prFilesRun(id int) error {
	files, err := getIntegration().ChangedFiles(context.Background(), id)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintln(ui.Out, f)
	}
	return nil
}

func prQualityRun(id int) error {
	q := getIntegration().CheckPullRequestQuality(context.Background(), id)
	printQuality(q)
	return nil
}

func printQuality(q models.QualityReport) {
	fmt.Fprintf(ui.Out, "Files checked: %d\n", q.FileCount)
	fmt.Fprintf(ui.Out, "Issues:        %s\n", output.IssueColor(q.TotalIssues))
	if len(q.Suggestions) == 0 {
		return
	}
	fmt.Fprintln(ui.Out)
	for _, s := range q.Suggestions {
		fmt.Fprintf(ui.Out, "  - %s\n", s)
	}
}
