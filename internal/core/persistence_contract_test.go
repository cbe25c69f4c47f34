package core

import (
	"go/types"
	"sort"
	"testing"

	"golang.org/x/tools/go/packages"
)

func loadModule(t *testing.T) []*packages.Package {
	t.Helper()
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedTypes}
	pkgs, err := packages.Load(cfg, "agroqc/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	return pkgs
}

func lookupInterface(t *testing.T, pkgs []*packages.Package, pkgPath, name string) *types.Interface {
	t.Helper()
	for _, p := range pkgs {
		if p.PkgPath != pkgPath || p.Types == nil {
			continue
		}
		obj := p.Types.Scope().Lookup(name)
		if obj == nil {
			t.Fatalf("%s.%s not found", pkgPath, name)
		}
		iface, ok := obj.Type().Underlying().(*types.Interface)
		if !ok {
			t.Fatalf("%s.%s is not an interface", pkgPath, name)
		}
		return iface
	}
	t.Fatalf("package %s not loaded", pkgPath)
	return nil
}

// implementersOutside lists struct types implementing iface (by pointer)
// declared in packages not in allowed.
func implementersOutside(pkgs []*packages.Package, iface *types.Interface, allowed map[string]bool) []string {
	seen := make(map[string]bool)
	for _, p := range pkgs {
		if p.Types == nil || allowed[p.PkgPath] {
			continue
		}
		scope := p.Types.Scope()
		for _, name := range scope.Names() {
			named, ok := scope.Lookup(name).Type().(*types.Named)
			if !ok {
				continue
			}
			if _, ok := named.Underlying().(*types.Struct); !ok {
				continue
			}
			if types.Implements(types.NewPointer(named), iface) {
				seen[p.PkgPath+"."+name] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Record stores and blob backends live under internal/infra only. Test doubles
// are not loaded. Add a new backend's package here when introducing one.
func TestBackendImplementationsStayInInfra(t *testing.T) {
	pkgs := loadModule(t)

	stores := implementersOutside(pkgs, lookupInterface(t, pkgs, "agroqc/pkg/domain", "PersistentStore"), map[string]bool{
		"agroqc/internal/infra/persistence/memory":   true,
		"agroqc/internal/infra/persistence/sqlstore": true,
		"agroqc/internal/infra/persistence/sqlite":   true,
		"agroqc/internal/infra/persistence/postgres": true,
	})
	if len(stores) > 0 {
		t.Fatalf("unexpected PersistentStore implementations: %v", stores)
	}

	blobs := implementersOutside(pkgs, lookupInterface(t, pkgs, "agroqc/internal/blob/core", "Store"), map[string]bool{
		"agroqc/internal/infra/blob/fs":     true,
		"agroqc/internal/infra/blob/memory": true,
		"agroqc/internal/infra/blob/s3":     true,
	})
	if len(blobs) > 0 {
		t.Fatalf("unexpected blob Store implementations: %v", blobs)
	}
}
