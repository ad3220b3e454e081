// Package quality implements a cheap per-file static heuristic: line-oriented
// smell patterns keyed on file extension plus a few generic rules.
package quality

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"

	"github.com/joescharf/reviewkit/internal/models"
)

const (
	DefaultMaxLineLength = 120
	DefaultMaxFileLines  = 500

	// binarySniffLen is how much of a file is searched for a NUL byte.
	binarySniffLen = 8 << 10
)

// Rule counts occurrences of one smell in a file. Pattern rules count
// matching lines; Count, when set, replaces the pattern.
type Rule struct {
	Message string
	Pattern *regexp.Regexp
	Count   func(lines []string) int
}

func (r Rule) occurrences(lines []string) int {
	if r.Count != nil {
		return r.Count(lines)
	}
	n := 0
	for _, l := range lines {
		if r.Pattern.MatchString(l) {
			n++
		}
	}
	return n
}

func lineRule(pattern, message string) Rule {
	return Rule{Message: message, Pattern: regexp.MustCompile(pattern)}
}

var (
	goRules = []Rule{
		lineRule(`\bfmt\.Print(f|ln)?\(`, "debug print via fmt.Print"),
		lineRule(`\bpanic\(`, "panic call; prefer returning an error"),
		lineRule(`(^|\s)_\s*=[^=]|,\s*_\s*:?=`, "discarded value; check the error"),
	}
	jsRules = []Rule{
		lineRule(`\bconsole\.log\(`, "console.log left in code"),
		lineRule(`\bdebugger\b`, "debugger statement"),
		lineRule(`(^|[^\w.$])var\s`, "var declaration; use let or const"),
		lineRule(`(^|[^=!<>])(==|!=)($|[^=])`, "loose equality; use === or !=="),
	}
	tsRules = append(append([]Rule{}, jsRules...),
		lineRule(`:\s*any\b`, "explicit any type"),
	)
	pyRules = []Rule{
		lineRule(`(^|[^\w.])print\(`, "print call left in code"),
		lineRule(`^\s*except\s*:`, "bare except clause"),
		lineRule(`^\s*from\s+\S+\s+import\s+\*`, "wildcard import"),
	}
	jvmRules = []Rule{
		lineRule(`System\.out\.print`, "System.out printing; use a logger"),
		lineRule(`\.printStackTrace\(\)`, "printStackTrace call; use a logger"),
	}
	rubyRules = []Rule{
		lineRule(`^\s*puts\s`, "puts left in code"),
		lineRule(`\bbinding\.pry\b`, "binding.pry breakpoint"),
	}
)

// languageRules maps a lower-case extension to its rules.
var languageRules = map[string][]Rule{
	".go":   goRules,
	".js":   jsRules,
	".jsx":  jsRules,
	".mjs":  jsRules,
	".cjs":  jsRules,
	".ts":   tsRules,
	".tsx":  tsRules,
	".py":   pyRules,
	".java": jvmRules,
	".kt":   jvmRules,
	".rb":   rubyRules,
}

var (
	markerPattern   = regexp.MustCompile(`\b(TODO|FIXME|XXX)\b`)
	trailingPattern = regexp.MustCompile(`[ \t]+$`)
)

// Option configures a Checker.
type Option func(*Checker)

// WithRoot resolves relative paths against dir.
func WithRoot(dir string) Option {
	return func(c *Checker) { c.root = dir }
}

// WithMaxLineLength sets the long-line threshold.
func WithMaxLineLength(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.maxLine = n
		}
	}
}

// WithMaxFileLines sets the long-file threshold.
func WithMaxFileLines(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.maxLines = n
		}
	}
}

// WithLogger sets the logger for skipped files.
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) { c.log = l }
}

// WithRules adds or replaces the rules for an extension.
func WithRules(ext string, rules ...Rule) Option {
	return func(c *Checker) { c.rules[strings.ToLower(ext)] = rules }
}

// Checker scores files read through an afero filesystem.
type Checker struct {
	fs       afero.Fs
	root     string
	maxLine  int
	maxLines int
	rules    map[string][]Rule
	log      *slog.Logger
}

// New creates a Checker reading from fsys.
func New(fsys afero.Fs, opts ...Option) *Checker {
	c := &Checker{
		fs:       fsys,
		maxLine:  DefaultMaxLineLength,
		maxLines: DefaultMaxFileLines,
		rules:    make(map[string][]Rule, len(languageRules)),
		log:      slog.Default(),
	}
	for ext, rules := range languageRules {
		c.rules[ext] = rules
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckFile applies the generic and extension rules to path. Unreadable and
// binary files yield a neutral result with a nil error; only a cancelled
// context is returned as an error.
func (c *Checker) CheckFile(ctx context.Context, path string) (models.FileQuality, error) {
	neutral := models.FileQuality{Path: path, Suggestions: []string{}}
	if err := ctx.Err(); err != nil {
		return neutral, err
	}

	full := path
	if c.root != "" && !filepath.IsAbs(path) {
		full = filepath.Join(c.root, path)
	}
	data, err := afero.ReadFile(c.fs, full)
	if err != nil {
		c.log.Debug("quality check skipped", "op", "check_file_quality", "path", path, "error", err)
		return neutral, nil
	}
	if isBinary(data) {
		c.log.Debug("quality check skipped binary file", "op", "check_file_quality", "path", path)
		return neutral, nil
	}

	lines := splitLines(string(data))
	rules := append(c.genericRules(), c.rules[strings.ToLower(filepath.Ext(path))]...)

	out := neutral
	for _, r := range rules {
		n := r.occurrences(lines)
		if n == 0 {
			continue
		}
		out.Issues += n
		out.Suggestions = append(out.Suggestions, fmt.Sprintf("%s: %s (%d occurrence(s))", path, r.Message, n))
	}
	return out, nil
}

func (c *Checker) genericRules() []Rule {
	maxLine, maxLines := c.maxLine, c.maxLines
	return []Rule{
		{
			Message: fmt.Sprintf("line longer than %d characters", maxLine),
			Count: func(lines []string) int {
				n := 0
				for _, l := range lines {
					if utf8.RuneCountInString(l) > maxLine {
						n++
					}
				}
				return n
			},
		},
		{Message: "TODO/FIXME/XXX marker", Pattern: markerPattern},
		{
			Message: fmt.Sprintf("file longer than %d lines; consider splitting", maxLines),
			Count: func(lines []string) int {
				if len(lines) > maxLines {
					return 1
				}
				return 0
			},
		},
		{Message: "trailing whitespace", Pattern: trailingPattern},
	}
}

func isBinary(data []byte) bool {
	if len(data) > binarySniffLen {
		data = data[:binarySniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// splitLines splits on \n, tolerating \r\n, without a phantom final line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
