// Package testutil holds import-layering checks shared by package tests.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Predicate reports whether an import path is forbidden.
type Predicate func(importPath string) bool

// AnyOf matches when any of preds matches.
func AnyOf(preds ...Predicate) Predicate {
	return func(path string) bool {
		for _, p := range preds {
			if p(path) {
				return true
			}
		}
		return false
	}
}

// Prefix matches path itself and everything below it.
func Prefix(prefix string) Predicate {
	return func(path string) bool {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
}

// InternalImport matches any agroqc internal package.
var InternalImport = Prefix("agroqc/internal")

// InfraImport matches the concrete storage and blob backends.
var InfraImport = Prefix("agroqc/internal/infra")

// DriverImport matches database drivers and cloud SDKs.
var DriverImport = AnyOf(
	Prefix("modernc.org/sqlite"),
	Prefix("github.com/jackc/pgx/v5"),
	Prefix("github.com/jmoiron/sqlx"),
	Prefix("github.com/aws/aws-sdk-go-v2"),
)

// TransportImport matches HTTP frameworks.
var TransportImport = AnyOf(
	Prefix("github.com/gin-gonic/gin"),
	Prefix("github.com/gin-contrib"),
	Prefix("net/http"),
)

// AssertNoDirectImports parses the non-test Go files in dir and fails t when
// any import matches forbidden. Build tags are not evaluated.
func AssertNoDirectImports(t testing.TB, dir string, forbidden Predicate, reason string) {
	t.Helper()
	viols, err := DirectImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	if len(viols) > 0 {
		t.Fatalf("forbidden imports (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}

// DirectImportViolations lists "import (in file)" for every forbidden import
// of the non-test files in dir, sorted.
func DirectImportViolations(dir string, forbidden Predicate) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			path := strings.Trim(imp.Path.Value, "\"")
			if forbidden(path) {
				viols = append(viols, path+" (in "+name+")")
			}
		}
	}
	sort.Strings(viols)
	return viols, nil
}
