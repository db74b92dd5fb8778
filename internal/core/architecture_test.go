package core

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestInfraDoesNotImportCore ensures the dependency arrow points one way:
// the coordinator composes the infra backends, never the reverse. Infra
// packages may only depend on pkg/domain contracts.
func TestInfraDoesNotImportCore(t *testing.T) {
	const (
		infraPrefix = "github.com/shinyyxxx/Mindsim/internal/infra"
		corePath    = "github.com/shinyyxxx/Mindsim/internal/core"
	)

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "github.com/shinyyxxx/Mindsim/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		if !strings.HasPrefix(pkg.PkgPath, infraPrefix) {
			continue
		}
		for importPath := range pkg.Imports {
			if importPath == corePath || strings.HasPrefix(importPath, corePath+"/") {
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
			t.Errorf("forbidden import of core from infra: %s", v)
		}
		t.Fatalf("found %d forbidden imports", len(violations))
	}
}
