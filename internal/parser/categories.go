package parser

import "ymlfeed/exporter/internal/domain"

// CategoryIndex maps category ids to names for the lifetime of one run.
type CategoryIndex struct {
	names map[string]string
}

func NewCategoryIndex() *CategoryIndex {
	return &CategoryIndex{names: make(map[string]string)}
}

// Put stores the category unconditionally. It reports whether an earlier
// entry with the same id was replaced.
func (c *CategoryIndex) Put(category domain.Category) bool {
	_, replaced := c.names[category.ID]
	c.names[category.ID] = category.Name
	return replaced
}

func (c *CategoryIndex) Get(id string) (string, bool) {
	name, ok := c.names[id]
	return name, ok
}

// Lookup returns the category name or domain.UndefinedCategory.
func (c *CategoryIndex) Lookup(id string) string {
	if name, ok := c.names[id]; ok {
		return name
	}
	return domain.UndefinedCategory
}

func (c *CategoryIndex) Len() int {
	return len(c.names)
}
