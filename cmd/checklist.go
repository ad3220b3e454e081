package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/reviewkit/internal/models"
	"github.com/joescharf/reviewkit/internal/output"
)

var (
	checklistFile  string
	checklistItems []string
)

var checklistCmd = &cobra.Command{
	Use:     "checklist",
	Aliases: []string{"cl"},
	Short:   "Manage review checklists",
}

var checklistCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create or replace a checklist",
	Long: `Create or replace a checklist from a YAML file or --item flags.

The YAML file is either a list of items or a mapping with an items key:

  items:
    - id: "1"
      description: Check for SQL injection
    - id: "2"
      description: Validate inputs`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return checklistCreateRun(args[0])
	},
}

var checklistListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List checklist names",
	RunE: func(cmd *cobra.Command, args []string) error {
		return checklistListRun()
	},
}

var checklistShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a checklist and its items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return checklistShowRun(args[0])
	},
}

func init() {
	checklistCreateCmd.Flags().StringVarP(&checklistFile, "file", "f", "", "YAML file with checklist items")
	checklistCreateCmd.Flags().StringArrayVar(&checklistItems, "item", nil, "Checklist item as id=description (repeatable)")

	checklistCmd.AddCommand(checklistCreateCmd)
	checklistCmd.AddCommand(checklistListCmd)
	checklistCmd.AddCommand(checklistShowCmd)
	rootCmd.AddCommand(checklistCmd)
}

// parseItemFlags turns id=description pairs into checklist items.
func parseItemFlags(flags []string) ([]models.ChecklistItem, error) {
	items := make([]models.ChecklistItem, 0, len(flags))
	for _, f := range flags {
		id, desc, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --item %q (use id=description)", f)
		}
		items = append(items, models.ChecklistItem{ID: strings.TrimSpace(id), Description: strings.TrimSpace(desc)})
	}
	return items, nil
}

// loadChecklistItems reads items from a YAML file holding either a list or
// a mapping with an items key.
func loadChecklistItems(path string) ([]models.ChecklistItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checklist file: %w", err)
	}

	var items []models.ChecklistItem
	if err := yaml.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var doc models.Checklist
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse checklist file %s: %w", path, err)
	}
	return doc.Items, nil
}

func checklistCreateRun(name string) error {
	var items []models.ChecklistItem
	switch {
	case checklistFile != "" && len(checklistItems) > 0:
		return fmt.Errorf("use either --file or --item, not both")
	case checklistFile != "":
		loaded, err := loadChecklistItems(checklistFile)
		if err != nil {
			return err
		}
		items = loaded
	default:
		parsed, err := parseItemFlags(checklistItems)
		if err != nil {
			return err
		}
		items = parsed
	}

	if dryRun {
		ui.DryRunMsg("Would create checklist %s with %d item(s)", output.Cyan(name), len(items))
		return nil
	}

	e, err := getEngine()
	if err != nil {
		return err
	}
	cl, err := e.CreateChecklist(context.Background(), name, items)
	if err != nil {
		return err
	}
	ui.Success("Saved checklist %s (%d items)", output.Cyan(cl.Name), len(cl.Items))
	return nil
}

func checklistListRun() error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	names := e.AvailableChecklists(context.Background())
	if len(names) == 0 {
		ui.Info("No checklists. Create one with: rk checklist create <name> --item id=description")
		return nil
	}
	for _, n := range names {
		fmt.Fprintln(ui.Out, n)
	}
	return nil
}

func checklistShowRun(name string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	cl, err := e.GetChecklist(context.Background(), name)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s (%d items)\n\n", output.Cyan(cl.Name), len(cl.Items))
	table := ui.Table([]string{"ID", "Description"})
	for _, item := range cl.Items {
		_ = table.Append([]string{item.ID, item.Description})
	}
	_ = table.Render()
	return nil
}
