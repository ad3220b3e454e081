package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/reviewkit/internal/checklist"
	"github.com/joescharf/reviewkit/internal/models"
)

func resetChecklistFlags(t *testing.T) {
	t.Helper()
	checklistFile = ""
	checklistItems = nil
	t.Cleanup(func() {
		checklistFile = ""
		checklistItems = nil
	})
}

func TestParseItemFlags(t *testing.T) {
	items, err := parseItemFlags([]string{"1=Check for SQL injection", " 2 = Validate = inputs "})
	require.NoError(t, err)
	assert.Equal(t, []models.ChecklistItem{
		{ID: "1", Description: "Check for SQL injection"},
		{ID: "2", Description: "Validate = inputs"},
	}, items)

	_, err = parseItemFlags([]string{"no-separator"})
	assert.Error(t, err)
}

func TestLoadChecklistItems(t *testing.T) {
	dir := t.TempDir()

	list := filepath.Join(dir, "list.yaml")
	require.NoError(t, os.WriteFile(list, []byte("- id: \"1\"\n  description: Names\n"), 0o644))
	items, err := loadChecklistItems(list)
	require.NoError(t, err)
	assert.Equal(t, []models.ChecklistItem{{ID: "1", Description: "Names"}}, items)

	doc := filepath.Join(dir, "doc.yaml")
	require.NoError(t, os.WriteFile(doc, []byte("name: style\nitems:\n  - id: a\n    description: Tabs\n  - id: b\n    description: Imports\n"), 0o644))
	items, err = loadChecklistItems(doc)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, "b", items[1].ID)

	_, err = loadChecklistItems(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestChecklistCreateRun_Items(t *testing.T) {
	testEnv(t)
	resetChecklistFlags(t)
	checklistItems = []string{"1=Check for SQL injection", "2=Validate inputs"}

	require.NoError(t, checklistCreateRun("security"))

	e, err := getEngine()
	require.NoError(t, err)
	cl, err := e.GetChecklist(context.Background(), "security")
	require.NoError(t, err)
	assert.Len(t, cl.Items, 2)
}

func TestChecklistCreateRun_Invalid(t *testing.T) {
	testEnv(t)
	resetChecklistFlags(t)

	err := checklistCreateRun("empty")
	require.Error(t, err)
	assert.ErrorIs(t, err, checklist.ErrValidation)

	checklistFile = "x.yaml"
	checklistItems = []string{"1=a"}
	assert.Error(t, checklistCreateRun("both"))
}

func TestChecklistCreateRun_DryRun(t *testing.T) {
	testEnv(t)
	resetChecklistFlags(t)
	dryRun = true
	ui.DryRun = true
	defer func() { dryRun = false }()
	checklistItems = []string{"1=a"}

	require.NoError(t, checklistCreateRun("style"))
	assert.Nil(t, engine, "dry run must not open the store")
}

func TestChecklistListAndShow(t *testing.T) {
	testEnv(t)
	resetChecklistFlags(t)
	var buf bytes.Buffer
	ui.Out = &buf

	require.NoError(t, checklistListRun())
	assert.Contains(t, buf.String(), "No checklists")

	checklistItems = []string{"1=Check for SQL injection"}
	require.NoError(t, checklistCreateRun("security"))
	checklistItems = []string{"1=Names"}
	require.NoError(t, checklistCreateRun("style"))

	buf.Reset()
	require.NoError(t, checklistListRun())
	assert.Equal(t, "security\nstyle\n", buf.String())

	buf.Reset()
	require.NoError(t, checklistShowRun("security"))
	assert.Contains(t, buf.String(), "Check for SQL injection")

	assert.ErrorIs(t, checklistShowRun("missing"), checklist.ErrNotFound)
}
