package checklist

import (
	"strings"

	"github.com/joescharf/reviewkit/internal/models"
)

// Validation messages surfaced to callers verbatim.
const (
	MsgItemsEmpty     = "Checklist items must be a non-empty array"
	MsgItemIncomplete = "Each checklist item must have an id and description"
	MsgItemDuplicate  = "Checklist item ids must be unique"
	MsgNameEmpty      = "Checklist name must not be empty"
	MsgResultsMissing = "Results must be an array"
	MsgResultInvalid  = "Each result must have an itemId and passed status"
)

// ValidateChecklistName rejects blank checklist names.
func ValidateChecklistName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid(MsgNameEmpty)
	}
	return nil
}

// ValidateChecklistItems checks that items is non-empty, that every item has
// an id and a description, and that ids are unique.
func ValidateChecklistItems(items []models.ChecklistItem) error {
	if len(items) == 0 {
		return invalid(MsgItemsEmpty)
	}
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" || strings.TrimSpace(item.Description) == "" {
			return invalid(MsgItemIncomplete)
		}
		if seen[item.ID] {
			return invalid(MsgItemDuplicate)
		}
		seen[item.ID] = true
	}
	return nil
}

// ValidateResults checks that results is present and that every entry has an
// item id and an explicit passed status. Item ids are not checked against the
// originating checklist.
func ValidateResults(results []models.ReviewResult) error {
	if results == nil {
		return invalid(MsgResultsMissing)
	}
	for _, r := range results {
		if strings.TrimSpace(r.ItemID) == "" || r.Passed == nil {
			return invalid(MsgResultInvalid)
		}
	}
	return nil
}
