package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultScenarioDir is the conventional location for scenario files when
// loading from disk.
const DefaultScenarioDir = "scenarios"

// Category groups scenarios under one epic.
type Category struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Scenarios   []Scenario `json:"scenarios" yaml:"scenarios"`
}

// Normalized validates every scenario and fills the epic name from the category.
func (c Category) Normalized() (Category, error) {
	out := Category{
		ID:          strings.TrimSpace(c.ID),
		Name:        strings.TrimSpace(c.Name),
		Description: c.Description,
	}
	if out.ID == "" {
		return Category{}, fmt.Errorf("scenario: category id is required")
	}
	if out.Name == "" {
		out.Name = out.ID
	}
	seen := map[string]struct{}{}
	for idx, raw := range c.Scenarios {
		sc, err := raw.Normalized()
		if err != nil {
			return Category{}, fmt.Errorf("category %s scenario[%d]: %w", out.ID, idx, err)
		}
		if _, exists := seen[sc.ID]; exists {
			return Category{}, fmt.Errorf("category %s: duplicate scenario id %s", out.ID, sc.ID)
		}
		seen[sc.ID] = struct{}{}
		if sc.Epic == "" {
			sc.Epic = out.Name
		}
		out.Scenarios = append(out.Scenarios, sc)
	}
	return out, nil
}

// document accepts either a category (scenarios list) or a bare scenario (steps list).
type document struct {
	Category `yaml:",inline"`
	Steps    []Step            `yaml:"steps"`
	Epic     string            `yaml:"epic"`
	Story    string            `yaml:"story"`
	Accept   string            `yaml:"acceptance"`
	Metadata map[string]string `yaml:"metadata"`
}

func (d document) isScenario() bool {
	return len(d.Scenarios) == 0 && d.Steps != nil
}

func (d document) scenario() Scenario {
	return Scenario{
		ID:          d.ID,
		Name:        d.Name,
		Epic:        d.Epic,
		Story:       d.Story,
		Acceptance:  d.Accept,
		Description: d.Description,
		Steps:       d.Steps,
		Metadata:    d.Metadata,
	}
}

// ParseScenarioYAML decodes a single scenario from YAML/JSON bytes.
func ParseScenarioYAML(data []byte) (Scenario, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Scenario{}, fmt.Errorf("scenario: payload is empty")
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("scenario: decode: %w", err)
	}
	return sc.Normalized()
}

// ParseCategoryYAML decodes a category file. A file holding a single scenario
// is wrapped in a category named after the scenario's epic.
func ParseCategoryYAML(data []byte) (Category, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Category{}, fmt.Errorf("scenario: payload is empty")
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Category{}, fmt.Errorf("scenario: decode: %w", err)
	}
	if doc.isScenario() {
		sc := doc.scenario()
		epic := strings.TrimSpace(sc.Epic)
		if epic == "" {
			epic = "uncategorized"
		}
		return Category{ID: slug(epic), Name: epic, Scenarios: []Scenario{sc}}.Normalized()
	}
	return doc.Category.Normalized()
}

// LoadReader reads category data from an io.Reader.
func LoadReader(r io.Reader) (Category, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Category{}, fmt.Errorf("scenario: read: %w", err)
	}
	return ParseCategoryYAML(content)
}

// SourceFile pairs a parsed category with where it came from.
type SourceFile struct {
	Category Category
	Path     string
}

// LoadFile loads a category from an explicit file path.
func LoadFile(path string) (SourceFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return SourceFile{}, fmt.Errorf("scenario: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return SourceFile{}, fmt.Errorf("scenario: %s is a directory", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return SourceFile{}, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	cat, err := ParseCategoryYAML(content)
	if err != nil {
		return SourceFile{}, fmt.Errorf("scenario: %s: %w", path, err)
	}
	return SourceFile{Category: cat, Path: filepath.Clean(path)}, nil
}

// LoadDir scans a directory for YAML/JSON category files and Go scenario
// scripts. Missing directories are treated as empty.
func LoadDir(dir string) ([]SourceFile, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("scenario: read %s: %w", trimmed, err)
	}
	var files []SourceFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(trimmed, name)
		switch {
		case isDataFile(name):
			file, err := LoadFile(path)
			if err != nil {
				return nil, err
			}
			files = append(files, file)
		case filepath.Ext(name) == ".go":
			scripted, err := LoadScriptFile(path)
			if err != nil {
				return nil, err
			}
			files = append(files, scripted...)
		}
	}
	if len(files) == 0 {
		return nil, nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// LoadFS loads every data file at the root of fsys, used for embedded scenarios.
func LoadFS(fsys fs.FS) ([]SourceFile, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("scenario: read embedded: %w", err)
	}
	var files []SourceFile
	for _, entry := range entries {
		if entry.IsDir() || !isDataFile(entry.Name()) {
			continue
		}
		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("scenario: read %s: %w", entry.Name(), err)
		}
		cat, err := ParseCategoryYAML(content)
		if err != nil {
			return nil, fmt.Errorf("scenario: %s: %w", entry.Name(), err)
		}
		files = append(files, SourceFile{Category: cat, Path: "builtin/" + entry.Name()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func isDataFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".json")
}

func slug(value string) string {
	fields := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	if len(fields) == 0 {
		return "uncategorized"
	}
	return strings.Join(fields, "-")
}
