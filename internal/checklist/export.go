package checklist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

// Format is an export document format.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat maps user input to a Format. "md" is accepted for markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "html", "htm":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format: %s (use: html, markdown, json)", s)
}

// Extension returns the file extension conventionally used for f.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatJSON:
		return ".json"
	default:
		return ".html"
	}
}

type exportRow struct {
	ItemID      string `json:"itemId"`
	Description string `json:"description"`
	Passed      bool   `json:"passed"`
	Comment     string `json:"comment,omitempty"`
}

type exportView struct {
	ReportID      string      `json:"reportId"`
	ChecklistName string      `json:"checklistName"`
	ReviewerID    string      `json:"reviewerId,omitempty"`
	Created       string      `json:"created"`
	FilePaths     []string    `json:"filePaths"`
	Results       []exportRow `json:"results"`
	Passed        int         `json:"passed"`
	Failed        int         `json:"failed"`
	Summary       string      `json:"summary"`
	Approved      bool        `json:"approved"`
}

const htmlReport = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Review Report: {{ .ChecklistName }}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: 0.4rem 0.6rem; text-align: left; }
.pass { color: #1a7f37; font-weight: bold; }
.fail { color: #cf222e; font-weight: bold; }
</style>
</head>
<body>
<h1>Review Report: {{ .ChecklistName }}</h1>
<p>Report ID: {{ .ReportID }}<br>
Created: {{ .Created }}{{ if .ReviewerID }}<br>
Reviewer: {{ .ReviewerID }}{{ end }}</p>
<h2>Files</h2>
{{ if .FilePaths }}<ul>
{{ range .FilePaths }}<li><code>{{ . }}</code></li>
{{ end }}</ul>{{ else }}<p>No files.</p>{{ end }}
<h2>Results ({{ .Passed }} passed, {{ .Failed }} failed)</h2>
{{ if .Results }}<table>
<tr><th>Item</th><th>Status</th><th>Comment</th></tr>
{{ range .Results }}<tr><td>{{ .Description }}</td><td class="{{ if .Passed }}pass{{ else }}fail{{ end }}">{{ if .Passed }}PASS{{ else }}FAIL{{ end }}</td><td>{{ .Comment }}</td></tr>
{{ end }}</table>{{ else }}<p>No results recorded.</p>{{ end }}
<h2>Summary</h2>
<p>{{ if .Summary }}{{ .Summary }}{{ else }}No summary.{{ end }}</p>
<h2>Status</h2>
<p class="{{ if .Approved }}pass{{ else }}fail{{ end }}">{{ if .Approved }}Approved{{ else }}Not approved{{ end }}</p>
</body>
</html>
`

const markdownReport = `# Review Report: {{ .ChecklistName }}

- Report ID: {{ .ReportID }}
- Created: {{ .Created }}
{{- if .ReviewerID }}
- Reviewer: {{ .ReviewerID }}
{{- end }}

## Files
{{ if .FilePaths }}
{{ range .FilePaths }}- ` + "`{{ . }}`" + `
{{ end }}{{ else }}
No files.
{{ end }}
## Results ({{ .Passed }} passed, {{ .Failed }} failed)
{{ if .Results }}
| Item | Status | Comment |
|------|--------|---------|
{{ range .Results }}| {{ cell .Description }} | {{ if .Passed }}PASS{{ else }}FAIL{{ end }} | {{ cell .Comment }} |
{{ end }}{{ else }}
No results recorded.
{{ end }}
## Summary

{{ if .Summary }}{{ .Summary }}{{ else }}No summary.{{ end }}

## Status

{{ if .Approved }}**Approved**{{ else }}**Not approved**{{ end }}
`

var (
	htmlTmpl = htmltemplate.Must(htmltemplate.New("report").Parse(htmlReport))
	mdTmpl   = texttemplate.Must(texttemplate.New("report").Funcs(texttemplate.FuncMap{
		"cell": markdownCell,
	}).Parse(markdownReport))
)

// markdownCell keeps a value on one table row.
func markdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

// ExportReport renders a report and its checklist in the requested format.
// It never fails: on any error it logs and returns an error document naming
// the report id.
func (e *Engine) ExportReport(ctx context.Context, id string, format Format) string {
	doc, err := e.renderReport(ctx, id, format)
	if err != nil {
		e.log.Error("export report failed", "op", "export_report", "report_id", id, "format", string(format), "error", err)
		return errorDocument(id, format, err)
	}
	return doc
}

// ExportReportToHTML is ExportReport with FormatHTML.
func (e *Engine) ExportReportToHTML(ctx context.Context, id string) string {
	return e.ExportReport(ctx, id, FormatHTML)
}

func (e *Engine) renderReport(ctx context.Context, id string, format Format) (string, error) {
	r, err := e.GetReport(ctx, id)
	if err != nil {
		return "", err
	}
	cl, err := e.GetChecklist(ctx, r.ChecklistName)
	if err != nil {
		return "", err
	}

	view := exportView{
		ReportID:      r.ID,
		ChecklistName: cl.Name,
		ReviewerID:    r.ReviewerID,
		Created:       r.CreatedAt().UTC().Format(time.RFC3339),
		FilePaths:     r.FilePaths,
		Summary:       r.Summary,
		Approved:      r.Approved,
		Passed:        r.PassedCount(),
		Failed:        r.FailedCount(),
	}
	for _, res := range r.Results {
		desc := res.ItemID
		if item := cl.Item(res.ItemID); item != nil {
			desc = item.Description
		}
		view.Results = append(view.Results, exportRow{
			ItemID:      res.ItemID,
			Description: desc,
			Passed:      res.IsPassed(),
			Comment:     res.Comment,
		})
	}

	var buf bytes.Buffer
	switch format {
	case FormatHTML:
		err = htmlTmpl.Execute(&buf, view)
	case FormatMarkdown:
		err = mdTmpl.Execute(&buf, view)
	case FormatJSON:
		if view.Results == nil {
			view.Results = []exportRow{}
		}
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		err = enc.Encode(view)
	default:
		err = fmt.Errorf("unsupported export format: %q", format)
	}
	if err != nil {
		return "", fmt.Errorf("render %s: %w", format, err)
	}
	return buf.String(), nil
}

const errorTitle = "Error Exporting Report"

func errorDocument(id string, format Format, cause error) string {
	switch format {
	case FormatMarkdown:
		return fmt.Sprintf("# %s\n\nReport ID: %s\n\n%s\n", errorTitle, id, cause.Error())
	case FormatJSON:
		data, _ := json.MarshalIndent(map[string]string{
			"error":    errorTitle,
			"reportId": id,
			"detail":   cause.Error(),
		}, "", "  ")
		return string(data) + "\n"
	default:
		esc := htmltemplate.HTMLEscapeString
		return fmt.Sprintf("<!DOCTYPE html>\n<html lang=\"en\">\n<head><meta charset=\"UTF-8\"><title>%s</title></head>\n<body>\n<h1>%s</h1>\n<p>Report ID: %s</p>\n<p>%s</p>\n</body>\n</html>\n",
			errorTitle, errorTitle, esc(id), esc(cause.Error()))
	}
}
