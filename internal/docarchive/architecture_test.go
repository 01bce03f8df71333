package docarchive

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyDocarchiveImportsDocstoreDrivers ensures the concrete document
// store drivers stay behind the docarchive facade. Everything else must
// depend on the core.Store interface.
func TestOnlyDocarchiveImportsDocstoreDrivers(t *testing.T) {
	driverPrefix := "obsingest/internal/infra/docstore"
	corePath := driverPrefix + "/core"
	allowedPrefix := "obsingest/internal/docarchive"

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "obsingest/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		if strings.HasPrefix(pkg.PkgPath, allowedPrefix) {
			continue
		}
		if strings.HasPrefix(pkg.PkgPath, driverPrefix) {
			continue
		}
		for importPath := range pkg.Imports {
			if importPath == corePath {
				continue
			}
			if importPath == driverPrefix || strings.HasPrefix(importPath, driverPrefix+"/") {
				seen[pkg.PkgPath+": "+importPath] = struct{}{}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden import of docstore driver package: %s", v)
		}
		t.Fatalf("found %d forbidden imports of docstore driver packages", len(violations))
	}
}
