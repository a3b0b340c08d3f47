package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedCatalogLoads(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cats, phrases := c.Stats()
	if cats != 6 || phrases == 0 {
		t.Fatalf("expected 6 categories with phrases, got %d/%d", cats, phrases)
	}
	names := c.Categories()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("categories not sorted: %v", names)
		}
	}
	if len(c.Phrases("Movies")) == 0 {
		t.Fatalf("expected Movies to have phrases")
	}
}

func TestParseNormalizesPhrases(t *testing.T) {
	c, err := Parse([]byte(`{"categories":{
		" Movies ":[{"name":"  Blade   Runner "},{"name":"blade runner"},{"name":""},{"name":"2012"},{"name":"Coda"}],
		"Empty":[]
	}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := c.Phrases("Movies")
	if len(got) != 2 || got[0] != "Blade Runner" || got[1] != "Coda" {
		t.Fatalf("unexpected phrases %q", got)
	}
	if len(c.Phrases("Empty")) != 0 {
		t.Fatalf("expected Empty to stay empty")
	}
	if len(c.Phrases("Nope")) != 0 {
		t.Fatalf("expected unknown category to have no phrases")
	}
	if len(c.Categories()) != 2 {
		t.Fatalf("expected empty category to be listed, got %v", c.Categories())
	}
}

func TestParseRejectsEmptyDocument(t *testing.T) {
	if _, err := Parse([]byte(`{"categories":{}}`)); !errors.Is(err, ErrNoCategories) {
		t.Fatalf("expected ErrNoCategories, got %v", err)
	}
	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Fatalf("expected a decode error")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(`{"categories":{"Birds":[{"name":"Robin"}]}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.Phrases("Birds"); len(got) != 1 || got[0] != "Robin" {
		t.Fatalf("unexpected phrases %v", got)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestResolveAndSuggest(t *testing.T) {
	c := New(map[string][]string{"TV Shows": {"Friends"}, "Movies": {"Coda"}, "Animals": {"Okapi"}})

	if got, ok := c.Resolve("  tv shows "); !ok || got != "TV Shows" {
		t.Fatalf("Resolve = %q,%v", got, ok)
	}
	if _, ok := c.Resolve("films"); ok {
		t.Fatalf("expected films not to resolve")
	}
	if got, ok := c.Suggest("movis"); !ok || got != "Movies" {
		t.Fatalf("Suggest(movis) = %q,%v", got, ok)
	}
	if _, ok := c.Suggest("quantum chromodynamics"); ok {
		t.Fatalf("expected no suggestion for a distant name")
	}
}

func TestReturnedSlicesAreCopies(t *testing.T) {
	c := New(map[string][]string{"Animals": {"Okapi"}})
	c.Phrases("Animals")[0] = "mutated"
	c.Categories()[0] = "mutated"
	if c.Phrases("Animals")[0] != "Okapi" || c.Categories()[0] != "Animals" {
		t.Fatalf("catalog was mutated through a returned slice")
	}
}
