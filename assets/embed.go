package assets

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed data.json
var catalogJSON []byte

//go:embed sql/*.sql
var migrations embed.FS

// CatalogJSON returns the bundled category/phrase document.
func CatalogJSON() []byte {
	return catalogJSON
}

// Migration is one embedded schema script.
type Migration struct {
	Name string
	SQL  string
}

// Migrations lists the embedded *.sql scripts in lexical order.
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrations, "sql")
	if err != nil {
		return nil, err
	}
	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			continue
		}
		b, err := migrations.ReadFile("sql/" + e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Name: e.Name(), SQL: string(b)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
