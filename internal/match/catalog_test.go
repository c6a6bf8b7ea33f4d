package match

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogValid(t *testing.T) {
	cat := DefaultCatalog()
	if err := cat.Validate(); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}
	if len(cat.Departments) != 101 {
		t.Fatalf("expected 101 departments, got %d", len(cat.Departments))
	}
	owned := 0
	for _, region := range cat.Regions {
		owned += len(region.Departments)
	}
	if owned != len(cat.Departments) {
		t.Fatalf("expected every department to belong to a region, %d of %d owned", owned, len(cat.Departments))
	}
}

func TestDefaultCatalogIsCopy(t *testing.T) {
	a := DefaultCatalog()
	a.Regions[0].Current = "mutated"
	a.Departments["01"] = "mutated"
	b := DefaultCatalog()
	if b.Regions[0].Current == "mutated" || b.Departments["01"] == "mutated" {
		t.Fatal("default catalog shares state between calls")
	}
}

func TestValidateRejectsBrokenCatalogs(t *testing.T) {
	tests := []struct {
		name string
		cat  Catalog
	}{
		{"empty", Catalog{}},
		{"duplicate key", Catalog{
			Regions: []RegionDefinition{
				{Key: "a", Current: "A", Departments: []string{"01"}},
				{Key: "a", Current: "B"},
			},
			Departments: map[string]string{"01": "Ain"},
		}},
		{"shared department", Catalog{
			Regions: []RegionDefinition{
				{Key: "a", Current: "A", Departments: []string{"01"}},
				{Key: "b", Current: "B", Departments: []string{"01"}},
			},
			Departments: map[string]string{"01": "Ain"},
		}},
		{"unknown department", Catalog{
			Regions:     []RegionDefinition{{Key: "a", Current: "A", Departments: []string{"99"}}},
			Departments: map[string]string{"01": "Ain"},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cat.Validate()
			if !errors.Is(err, ErrInvalidCatalog) {
				t.Fatalf("expected ErrInvalidCatalog, got %v", err)
			}
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	cat := Catalog{
		Regions: []RegionDefinition{
			{Key: "wallonie", Current: "Wallonie", Departments: []string{"LG", "NA"}, Aliases: []string{"Région wallonne"}},
		},
		Departments: map[string]string{"LG": "Liège", "NA": "Namur"},
	}
	data, err := json.Marshal(cat)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	m, err := NewMatcher(loaded)
	if err != nil {
		t.Fatalf("matcher: %v", err)
	}
	result := m.CalculateMatch("Liège", []string{"Wallonie"})
	if !result.Matches || result.MatchType != MatchParent {
		t.Fatalf("expected parent match in alternate catalog, got %+v", result)
	}
}
