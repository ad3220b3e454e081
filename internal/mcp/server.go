package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/reviewkit/internal/checklist"
	"github.com/joescharf/reviewkit/internal/models"
)

// PullRequests is the provider surface exposed as tools.
type PullRequests interface {
	Provider() models.Remote
	OpenPullRequests(ctx context.Context) ([]models.PullRequestSummary, error)
	AddReviewComment(ctx context.Context, prID int, filePath string, line int, comment string) bool
	SubmitReview(ctx context.Context, prID int, decision models.ReviewDecision, comment string) bool
	ChangedFiles(ctx context.Context, prID int) ([]string, error)
	CheckPullRequestQuality(ctx context.Context, prID int) models.QualityReport
}

// Server wraps the checklist engine and pull request integration and
// exposes them as MCP tools.
type Server struct {
	engine *checklist.Engine
	pulls  PullRequests
}

// NewServer creates the MCP server wrapper.
func NewServer(engine *checklist.Engine, pulls PullRequests) *Server {
	return &Server{engine: engine, pulls: pulls}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("reviewkit", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listChecklistsTool())
	srv.AddTool(s.getChecklistTool())
	srv.AddTool(s.createChecklistTool())
	srv.AddTool(s.generateReportTool())
	srv.AddTool(s.updateReportTool())
	srv.AddTool(s.reportHistoryTool())
	srv.AddTool(s.exportReportTool())
	srv.AddTool(s.detectProviderTool())
	srv.AddTool(s.listPullRequestsTool())
	srv.AddTool(s.changedFilesTool())
	srv.AddTool(s.prQualityTool())
	srv.AddTool(s.addCommentTool())
	srv.AddTool(s.submitReviewTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any, what string) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal %s: %v", what, err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func engineError(action string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, checklist.ErrValidation):
		return mcp.NewToolResultError(fmt.Sprintf("invalid input: %v", err))
	case errors.Is(err, checklist.ErrNotFound):
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %v", action, err))
}

// ---------------------------------------------------------------------------
// Checklists
// ---------------------------------------------------------------------------

// rk_list_checklists
func (s *Server) listChecklistsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rk_list_checklists",
		mcp.WithDescription("List the names of all stored review checklists as a JSON array, sorted."),
	)
	return tool, s.handleListChecklists
}

func (s *Server) handleListChecklists(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.engine.AvailableChecklists(ctx), "checklists")
}

// rk_get_checklist
func (s *Server) getChecklistTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rk_get_checklist",
		mcp.WithDescription("Get a checklist and its items by name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Checklist name")),
	)
	return tool, s.handleGetChecklist
}

func (s *Server) handleGetChecklist(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: name"), nil
	}
	cl, err := s.engine.GetChecklist(ctx, name)
	if err != nil {
		return engineError("get checklist", err), nil
	}
	return jsonResult(cl, "checklist")
}

// rk_create_checklist
func (s *Server) createChecklistTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rk_create_checklist",
		mcp.WithDescription("Create or replace a checklist. items is a JSON array of {\"id\", \"description\"} objects."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Checklist name")),
		mcp.WithString("items", mcp.Required(), mcp.Description(`JSON array, e.g. [{"id":"1","description":"Check for SQL injection"}]`)),
	)
	return tool, s.handleCreateChecklist
}

func (s *Server) handleCreateChecklist(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: name"), nil
	}
	raw, err := request.RequireString("items")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: items"), nil
	}
	var items []models.ChecklistItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("items must be a JSON array: %v", err)), nil
	}
	cl, err := s.engine.CreateChecklist(ctx, name, items)
	if err != nil {
		return engineError("create checklist", err), nil
	}
	return jsonResult(cl, "checklist")
}

// ---------------------------------------------------------------------------
// Reports
// ---------------------------------------------------------------------------

// rk_generate_report
func (s *Server) generateReportTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rk_generate_report",
		mcp.WithDescription("Start an empty review report against a checklist. Returns the report with its id."),
		mcp.WithString("checklist", mcp.Required(), mcp.Description("Checklist name")),
		mcp.WithArray("files", mcp.WithStringItems(), mcp.Description("Files under review")),
		mcp.WithString("reviewer", mcp.Description("Reviewer id")),
	)
	return tool, s.handleGenerateReport
}

func (s *Server) handleGenerateReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("checklist")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: checklist"), nil
	}
	files := request.GetStringSlice("files", []string{})
	reviewer := request.GetString("reviewer", "")

	r, err := s.engine.GenerateReport(ctx, name, files, reviewer)
	if err != nil {
		return engineError("generate report", err), nil
	}
	return jsonResult(r, "report")
}

// rk_update_report
func (s *Server) updateReportTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rk_update_report",
		mcp.WithDescription("Replace the results, summary and approval of a report. results is a JSON array of {\"itemId\", \"passed\", \"comment\"} objects."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Report id")),
		mcp.WithString("results", mcp.Required(), mcp.Description(`JSON array, e.g. [{"itemId":"1","passed":true}]`)),
		mcp.WithString("summary", mcp.Description("Review summary")),
		mcp.WithBoolean("approved", mcp.Description("Whether the review is approved (default: false)")),
	)
	return tool, s.handleUpdateReport
}

func (s *Server) handleUpdateReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	raw, err := request.RequireString("results")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: results"), nil
	}
	var results []models.ReviewResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("results must be a JSON array: %v", err)), nil
	}

	r, err := s.engine.UpdateReport(ctx, id, results, request.GetString("summary", ""), request.GetBool("approved", false))
	if err != nil {
		return engineError("update report", err), nil
	}
	return jsonResult(r, "report")
}

// rk_report_history
func (s *Server) reportHistoryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rk_report_history",
		mcp.WithDescription("List recent reports, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of reports (default: 10)")),
		mcp.WithString("checklist", mcp.Description("Only reports for this checklist")),
	)
	return tool, s.handleReportHistory
}

func (s *Server) handleReportHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", -1)

	var (
		reports []models.Report
		err     error
	)
	if name := request.GetString("checklist", ""); name != "" {
		reports, err = s.engine.ReportHistoryForChecklist(ctx, name, limit)
	} else {
		reports, err = s.engine.ReportHistory(ctx, limit)
	}
	if err != nil {
		return engineError("list reports", err), nil
	}
	return jsonResult(reports, "reports")
}

// rk_export_report
func (s *Server) exportReportTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rk_export_report",
		mcp.WithDescription("Render a report as an HTML, Markdown or JSON document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Report id")),
		mcp.WithString("format", mcp.Description("html, markdown or json (default: markdown)")),
	)
	return tool, s.handleExportReport
}

func (s *Server) handleExportReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	format, err := checklist.ParseFormat(request.GetString("format", string(checklist.FormatMarkdown)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.engine.ExportReport(ctx, id, format)), nil
}

// ---------------------------------------------------------------------------
// Pull requests
// ---------------------------------------------------------------------------

// rk_detect_provider
func (s *Server) detectProviderTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rk_detect_provider",
		mcp.WithDescription("Report the hosted-git provider (github, gitlab, bitbucket or unknown) detected from the repository remote."),
	)
	return tool, s.handleDetectProvider
}

func (s *Server) handleDetectProvider(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.pulls.Provider(), "provider")
}

// rk_list_pull_requests
func (s *Server) listPullRequestsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rk_list_pull_requests",
		mcp.WithDescription("List open pull requests with id, title and author."),
	)
	return tool, s.handleListPullRequests
}

func (s *Server) handleListPullRequests(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prs, err := s.pulls.OpenPullRequests(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list pull requests: %v", err)), nil
	}
	return jsonResult(prs, "pull requests")
}

func requirePRID(request mcp.CallToolRequest) (int, *mcp.CallToolResult) {
	id := request.GetInt("pr", 0)
	if id <= 0 {
		return 0, mcp.NewToolResultError("missing required parameter: pr (positive integer)")
	}
	return id, nil
}

// rk_changed_files
func (s *Server) changedFilesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rk_changed_files",
		mcp.WithDescription("List the files changed by a pull request."),
		mcp.WithNumber("pr", mcp.Required(), mcp.Description("Pull request number")),
	)
	return tool, s.handleChangedFiles
}

func (s *Server) handleChangedFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requirePRID(request)
	if errResult != nil {
		return errResult, nil
	}
	files, err := s.pulls.ChangedFiles(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list changed files: %v", err)), nil
	}
	return jsonResult(files, "files")
}

// rk_pr_quality
func (s *Server) prQualityTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rk_pr_quality",
		mcp.WithDescription("Run heuristic quality checks over the files changed by a pull request."),
		mcp.WithNumber("pr", mcp.Required(), mcp.Description("Pull request number")),
	)
	return tool, s.handlePRQuality
}

func (s *Server) handlePRQuality(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requirePRID(request)
	if errResult != nil {
		return errResult, nil
	}
	return jsonResult(s.pulls.CheckPullRequestQuality(ctx, id), "quality report")
}

// rk_add_review_comment
func (s *Server) addCommentTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rk_add_review_comment",
		mcp.WithDescription("Post an inline comment on a line of a pull request file."),
		mcp.WithNumber("pr", mcp.Required(), mcp.Description("Pull request number")),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("Line number in the new file")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Comment text")),
	)
	return tool, s.handleAddComment
}

func (s *Server) handleAddComment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requirePRID(request)
	if errResult != nil {
		return errResult, nil
	}
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}
	body, err := request.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: body"), nil
	}
	line := request.GetInt("line", 0)
	if line <= 0 {
		return mcp.NewToolResultError("missing required parameter: line (positive integer)"), nil
	}
	return jsonResult(map[string]bool{"ok": s.pulls.AddReviewComment(ctx, id, path, line, body)}, "result")
}

// rk_submit_review
func (s *Server) submitReviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rk_submit_review",
		mcp.WithDescription("Submit a review decision on a pull request."),
		mcp.WithNumber("pr", mcp.Required(), mcp.Description("Pull request number")),
		mcp.WithString("decision", mcp.Required(), mcp.Description("approve, request_changes or comment")),
		mcp.WithString("body", mcp.Description("Review comment")),
	)
	return tool, s.handleSubmitReview
}

func (s *Server) handleSubmitReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requirePRID(request)
	if errResult != nil {
		return errResult, nil
	}
	decision, err := request.RequireString("decision")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: decision"), nil
	}
	d := models.ReviewDecision(decision)
	if !d.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("invalid decision %q (use: approve, request_changes, comment)", decision)), nil
	}
	return jsonResult(map[string]bool{"ok": s.pulls.SubmitReview(ctx, id, d, request.GetString("body", ""))}, "result")
}
