// Package checklist owns review checklists and the reports produced against
// them: validation, persistence through a store.Store, history and export.
package checklist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/reviewkit/internal/models"
	"github.com/joescharf/reviewkit/internal/store"
)

// DefaultHistoryLimit is the number of reports ReportHistory returns when the
// caller passes a negative limit.
const DefaultHistoryLimit = 10

// Disposable is a resource released by Engine.Dispose.
type Disposable interface {
	Dispose()
}

// DisposableFunc adapts a plain function to Disposable.
type DisposableFunc func()

func (f DisposableFunc) Dispose() { f() }

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for internally handled failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides the time source used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides report id allocation.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// Engine manages checklists and review reports.
type Engine struct {
	store store.Store
	log   *slog.Logger
	now   func() time.Time
	newID func() string

	mu          sync.Mutex
	disposables []Disposable
}

// NewEngine creates an engine persisting through s.
func NewEngine(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		log:   slog.Default(),
		now:   time.Now,
		newID: func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// --- Checklists ---

// CreateChecklist validates and stores a checklist, replacing any existing
// checklist of the same name. Nothing is written when validation fails.
func (e *Engine) CreateChecklist(ctx context.Context, name string, items []models.ChecklistItem) (*models.Checklist, error) {
	if err := ValidateChecklistName(name); err != nil {
		return nil, err
	}
	if err := ValidateChecklistItems(items); err != nil {
		return nil, err
	}

	cl := &models.Checklist{
		Name:  name,
		Items: append([]models.ChecklistItem(nil), items...),
	}
	if err := e.put(ctx, store.NamespaceChecklists, name, cl); err != nil {
		e.log.Error("create checklist failed", "op", "create_checklist", "checklist", name, "error", err)
		return nil, err
	}
	return cl, nil
}

// AvailableChecklists returns the sorted names of all stored checklists.
// A storage failure is logged and yields an empty list.
func (e *Engine) AvailableChecklists(ctx context.Context) []string {
	names, err := e.store.Keys(ctx, store.NamespaceChecklists)
	if err != nil {
		e.log.Error("list checklists failed", "op", "list_checklists", "error", err)
		return []string{}
	}
	if names == nil {
		names = []string{}
	}
	sort.Strings(names)
	return names
}

// GetChecklist loads a checklist by name.
func (e *Engine) GetChecklist(ctx context.Context, name string) (*models.Checklist, error) {
	var cl models.Checklist
	found, err := e.fetch(ctx, store.NamespaceChecklists, name, &cl)
	if err != nil {
		e.log.Error("get checklist failed", "op", "get_checklist", "checklist", name, "error", err)
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrChecklistNotFound, name)
	}
	return &cl, nil
}

// --- Reports ---

// GenerateReport creates an empty report for an existing checklist. Failures
// are always returned as errors; no placeholder report is produced.
func (e *Engine) GenerateReport(ctx context.Context, checklistName string, filePaths []string, reviewerID string) (*models.Report, error) {
	if _, err := e.GetChecklist(ctx, checklistName); err != nil {
		return nil, err
	}

	r := &models.Report{
		ID:            e.newID(),
		ChecklistName: checklistName,
		FilePaths:     append([]string{}, filePaths...),
		ReviewerID:    reviewerID,
		Timestamp:     e.now().UnixMilli(),
		Results:       []models.ReviewResult{},
		Summary:       "",
		Approved:      false,
	}
	if err := e.put(ctx, store.NamespaceReports, r.ID, r); err != nil {
		e.log.Error("generate report failed", "op", "generate_report", "checklist", checklistName, "report_id", r.ID, "error", err)
		return nil, err
	}
	return r, nil
}

// GetReport loads a report by id.
func (e *Engine) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var r models.Report
	found, err := e.fetch(ctx, store.NamespaceReports, id, &r)
	if err != nil {
		e.log.Error("get report failed", "op", "get_report", "report_id", id, "error", err)
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	return &r, nil
}

// UpdateReport replaces the results, summary and approval of a report
// wholesale. Validation and not-found failures happen before any write.
func (e *Engine) UpdateReport(ctx context.Context, id string, results []models.ReviewResult, summary string, approved bool) (*models.Report, error) {
	if err := ValidateResults(results); err != nil {
		return nil, err
	}

	r, err := e.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}

	r.Results = append([]models.ReviewResult{}, results...)
	r.Summary = summary
	r.Approved = approved

	if err := e.put(ctx, store.NamespaceReports, id, r); err != nil {
		e.log.Error("update report failed", "op", "update_report", "report_id", id, "error", err)
		return nil, err
	}
	return r, nil
}

// ReportHistory returns up to limit reports, most recent first. A negative
// limit means DefaultHistoryLimit; zero returns no reports.
func (e *Engine) ReportHistory(ctx context.Context, limit int) ([]models.Report, error) {
	return e.history(ctx, limit, func(*models.Report) bool { return true })
}

// ReportHistoryForChecklist is ReportHistory restricted to one checklist.
func (e *Engine) ReportHistoryForChecklist(ctx context.Context, checklistName string, limit int) ([]models.Report, error) {
	return e.history(ctx, limit, func(r *models.Report) bool { return r.ChecklistName == checklistName })
}

func (e *Engine) history(ctx context.Context, limit int, keep func(*models.Report) bool) ([]models.Report, error) {
	if limit < 0 {
		limit = DefaultHistoryLimit
	}

	ids, err := e.store.Keys(ctx, store.NamespaceReports)
	if err != nil {
		e.log.Error("list reports failed", "op", "report_history", "error", err)
		return nil, &PersistenceError{Op: "list", Key: string(store.NamespaceReports), Err: err}
	}

	reports := make([]models.Report, 0, len(ids))
	for _, id := range ids {
		var r models.Report
		found, err := e.fetch(ctx, store.NamespaceReports, id, &r)
		if err != nil {
			e.log.Warn("skipping unreadable report", "op", "report_history", "report_id", id, "error", err)
			continue
		}
		if found && keep(&r) {
			reports = append(reports, r)
		}
	}

	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].Timestamp != reports[j].Timestamp {
			return reports[i].Timestamp > reports[j].Timestamp
		}
		return reports[i].ID > reports[j].ID
	})

	if limit < len(reports) {
		reports = reports[:limit]
	}
	return reports, nil
}

// --- Lifecycle ---

// Register adds a resource to be released by Dispose.
func (e *Engine) Register(d Disposable) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disposables = append(e.disposables, d)
}

// Dispose releases every registered resource exactly once. Later calls are
// no-ops until something new is registered.
func (e *Engine) Dispose() {
	e.mu.Lock()
	pending := e.disposables
	e.disposables = nil
	e.mu.Unlock()

	for _, d := range pending {
		d.Dispose()
	}
}

// --- store helpers ---

func (e *Engine) put(ctx context.Context, ns store.Namespace, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &PersistenceError{Op: "encode", Key: store.Key(ns, key), Err: err}
	}
	if err := e.store.Set(ctx, ns, key, string(data)); err != nil {
		return &PersistenceError{Op: "write", Key: store.Key(ns, key), Err: err}
	}
	return nil
}

func (e *Engine) fetch(ctx context.Context, ns store.Namespace, key string, v any) (bool, error) {
	data, ok, err := e.store.Get(ctx, ns, key)
	if err != nil {
		return false, &PersistenceError{Op: "read", Key: store.Key(ns, key), Err: err}
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return false, &PersistenceError{Op: "decode", Key: store.Key(ns, key), Err: err}
	}
	return true, nil
}
