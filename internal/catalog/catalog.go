// internal/catalog/catalog.go
//
// Provides the phrase catalog the game engine draws rounds from.
//
// Responsibilities:
//   - Load the category → phrases document from CATALOG_FILE or the embedded default.
//   - Normalize phrases (trim, drop blanks and duplicates, drop entries without letters).
//   - Answer lookups: Categories, Phrases, Resolve (case-insensitive), Suggest (nearest name).
//
// Document shape (same as the front-end data file):
//
//	{"categories": {"Movies": [{"name": "Blade Runner", "selected": false}, ...], ...}}
//
// Constraints:
//   • Categories are listed in alphabetical order.
//   • A category may exist with zero usable phrases; the engine reports it as empty.
//   • A document without any category is rejected.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/Chious/fm-hangman-game/assets"
)

// maxSuggestDistance bounds how far a typo may be from a category name.
const maxSuggestDistance = 3

var ErrNoCategories = errors.New("catalog: no categories")

type document struct {
	Categories map[string][]entry `json:"categories"`
}

type entry struct {
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

// Catalog is an immutable category → phrases table.
type Catalog struct {
	names   []string
	phrases map[string][]string
	folded  map[string]string // lowercased name → canonical name
}

// Load reads the catalog from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(assets.CatalogJSON())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse builds a Catalog from a JSON document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	m := make(map[string][]string, len(doc.Categories))
	for name, entries := range doc.Categories {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		list := make([]string, 0, len(entries))
		for _, e := range entries {
			list = append(list, e.Name)
		}
		m[name] = append(m[name], list...)
	}
	c := New(m)
	if len(c.names) == 0 {
		return nil, ErrNoCategories
	}
	return c, nil
}

// New builds a Catalog from an in-memory table.
func New(table map[string][]string) *Catalog {
	c := &Catalog{
		phrases: make(map[string][]string, len(table)),
		folded:  make(map[string]string, len(table)),
	}
	for name, list := range table {
		c.names = append(c.names, name)
		c.phrases[name] = normalizePhrases(list)
		c.folded[strings.ToLower(name)] = name
	}
	sort.Strings(c.names)
	return c
}

// normalizePhrases trims entries and drops blanks, duplicates and phrases
// that contain no guessable letter.
func normalizePhrases(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, p := range list {
		p = strings.Join(strings.Fields(p), " ")
		if p == "" || !hasLetter(p) || seen[strings.ToLower(p)] {
			continue
		}
		seen[strings.ToLower(p)] = true
		out = append(out, p)
	}
	return out
}

func hasLetter(s string) bool {
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			return true
		}
	}
	return false
}

// Categories returns the category names in alphabetical order.
func (c *Catalog) Categories() []string {
	return append([]string(nil), c.names...)
}

// Phrases returns the phrases of category, or nil if it is unknown.
func (c *Catalog) Phrases(category string) []string {
	return append([]string(nil), c.phrases[category]...)
}

// Resolve maps a user-supplied name to its canonical spelling, ignoring case
// and surrounding whitespace.
func (c *Catalog) Resolve(name string) (string, bool) {
	canon, ok := c.folded[strings.ToLower(strings.TrimSpace(name))]
	return canon, ok
}

// Suggest returns the category closest to name, if one is near enough to be
// a plausible typo.
func (c *Catalog) Suggest(name string) (string, bool) {
	q := strings.ToLower(strings.TrimSpace(name))
	if q == "" {
		return "", false
	}
	best, bestDist := "", maxSuggestDistance+1
	for _, n := range c.names {
		d := levenshtein.ComputeDistance(q, strings.ToLower(n))
		if d < bestDist {
			best, bestDist = n, d
		}
	}
	return best, best != ""
}

// Stats returns counts of loaded data: (categories, phrases).
func (c *Catalog) Stats() (categories int, phrases int) {
	for _, list := range c.phrases {
		phrases += len(list)
	}
	return len(c.names), phrases
}
