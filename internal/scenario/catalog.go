package scenario

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/sahilm/fuzzy"
)

// ErrNotFound is returned when a scenario or category id is unknown.
var ErrNotFound = errors.New("scenario: not found")

// Catalog keeps every loaded category in load order and indexes scenarios by id.
type Catalog struct {
	mu         sync.RWMutex
	categories []Category
	byID       map[string]scenarioRef
	sources    map[string]string
}

type scenarioRef struct {
	category int
	index    int
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		byID:    map[string]scenarioRef{},
		sources: map[string]string{},
	}
}

// Add installs a category. Categories sharing an id are merged; scenario ids
// must be unique across the whole catalog.
func (c *Catalog) Add(cat Category, source string) error {
	normalized, err := cat.Normalized()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sc := range normalized.Scenarios {
		if _, exists := c.byID[sc.ID]; exists {
			return fmt.Errorf("scenario: duplicate id %s (%s and %s)", sc.ID, c.sources[sc.ID], source)
		}
	}
	pos := -1
	for i, existing := range c.categories {
		if existing.ID == normalized.ID {
			pos = i
			break
		}
	}
	if pos < 0 {
		c.categories = append(c.categories, Category{
			ID:          normalized.ID,
			Name:        normalized.Name,
			Description: normalized.Description,
		})
		pos = len(c.categories) - 1
	}
	target := &c.categories[pos]
	for _, sc := range normalized.Scenarios {
		target.Scenarios = append(target.Scenarios, sc)
		c.byID[sc.ID] = scenarioRef{category: pos, index: len(target.Scenarios) - 1}
		c.sources[sc.ID] = source
	}
	return nil
}

// AddFiles adds every source file in order.
func (c *Catalog) AddFiles(files []SourceFile) error {
	for _, file := range files {
		if err := c.Add(file.Category, file.Path); err != nil {
			return err
		}
	}
	return nil
}

// Scenario returns a copy of the scenario with the given id.
func (c *Catalog) Scenario(id string) (Scenario, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ref, ok := c.byID[id]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: scenario %s", ErrNotFound, id)
	}
	return c.categories[ref.category].Scenarios[ref.index].Clone(), nil
}

// Category returns a copy of the category with the given id.
func (c *Catalog) Category(id string) (Category, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cat := range c.categories {
		if cat.ID == id {
			return cloneCategory(cat), nil
		}
	}
	return Category{}, fmt.Errorf("%w: category %s", ErrNotFound, id)
}

// Categories returns copies of every category in load order.
func (c *Catalog) Categories() []Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Category, len(c.categories))
	for i, cat := range c.categories {
		out[i] = cloneCategory(cat)
	}
	return out
}

// Source reports the file a scenario was loaded from.
func (c *Catalog) Source(id string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sources[id]
}

// Len returns the number of scenarios.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Search fuzzy-matches the query against scenario ids, names and stories.
// Results are ordered best match first.
func (c *Catalog) Search(query string) []Scenario {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var (
		all     []Scenario
		targets []string
	)
	for _, cat := range c.categories {
		for _, sc := range cat.Scenarios {
			all = append(all, sc)
			targets = append(targets, sc.ID+" "+sc.Title()+" "+sc.Story)
		}
	}
	if query == "" {
		out := make([]Scenario, len(all))
		for i, sc := range all {
			out[i] = sc.Clone()
		}
		return out
	}
	matches := fuzzy.Find(query, targets)
	out := make([]Scenario, 0, len(matches))
	for _, match := range matches {
		out = append(out, all[match.Index].Clone())
	}
	return out
}

func cloneCategory(cat Category) Category {
	out := Category{ID: cat.ID, Name: cat.Name, Description: cat.Description}
	if len(cat.Scenarios) > 0 {
		out.Scenarios = make([]Scenario, len(cat.Scenarios))
		for i, sc := range cat.Scenarios {
			out.Scenarios[i] = sc.Clone()
		}
	}
	return out
}

// BuildCatalog loads embedded scenarios first and then each directory in
// order. A nil embedded filesystem is skipped.
func BuildCatalog(embedded fs.FS, dirs ...string) (*Catalog, error) {
	catalog := NewCatalog()
	if embedded != nil {
		files, err := LoadFS(embedded)
		if err != nil {
			return nil, err
		}
		if err := catalog.AddFiles(files); err != nil {
			return nil, err
		}
	}
	for _, dir := range dirs {
		files, err := LoadDir(dir)
		if err != nil {
			return nil, err
		}
		if err := catalog.AddFiles(files); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}
