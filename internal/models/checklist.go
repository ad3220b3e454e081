package models

// ChecklistItem is a single reviewable point of a checklist.
type ChecklistItem struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
}

// Checklist is a named, ordered set of review items used as a review template.
type Checklist struct {
	Name  string          `json:"name" yaml:"name"`
	Items []ChecklistItem `json:"items" yaml:"items"`
}

// Item returns the item with the given id, or nil.
func (c *Checklist) Item(id string) *ChecklistItem {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return &c.Items[i]
		}
	}
	return nil
}
