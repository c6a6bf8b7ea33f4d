package match

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidCatalog is returned when region or department tables violate their invariants.
var ErrInvalidCatalog = errors.New("invalid region catalog")

// RegionDefinition describes one administrative region with its historical names.
type RegionDefinition struct {
	Key         string   `json:"key"`
	Current     string   `json:"current"`
	Former      []string `json:"former,omitempty"`
	Departments []string `json:"departments"`
	Aliases     []string `json:"aliases,omitempty"`
}

// Catalog bundles the region definitions with the department code table.
type Catalog struct {
	Regions     []RegionDefinition `json:"regions"`
	Departments map[string]string  `json:"departments"`
}

// LoadCatalog reads an alternate catalog from a JSON file and validates it.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Catalog{}, fmt.Errorf("read region catalog: %w", err)
	}
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return Catalog{}, fmt.Errorf("unmarshal region catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

// Validate checks key uniqueness, department ownership and department existence.
func (c Catalog) Validate() error {
	if len(c.Regions) == 0 {
		return fmt.Errorf("%w: no regions", ErrInvalidCatalog)
	}
	keys := make(map[string]struct{}, len(c.Regions))
	owners := make(map[string]string)
	for _, region := range c.Regions {
		key := strings.TrimSpace(region.Key)
		if key == "" {
			return fmt.Errorf("%w: region %q has no key", ErrInvalidCatalog, region.Current)
		}
		if strings.TrimSpace(region.Current) == "" {
			return fmt.Errorf("%w: region %s has no current name", ErrInvalidCatalog, key)
		}
		if _, dup := keys[key]; dup {
			return fmt.Errorf("%w: duplicate region key %s", ErrInvalidCatalog, key)
		}
		keys[key] = struct{}{}
		for _, code := range region.Departments {
			if owner, taken := owners[code]; taken {
				return fmt.Errorf("%w: department %s belongs to both %s and %s", ErrInvalidCatalog, code, owner, key)
			}
			owners[code] = key
			if _, ok := c.Departments[code]; !ok {
				return fmt.Errorf("%w: region %s references unknown department %s", ErrInvalidCatalog, key, code)
			}
		}
	}
	return nil
}

// Region returns the definition registered under key.
func (c Catalog) Region(key string) (RegionDefinition, bool) {
	for _, region := range c.Regions {
		if region.Key == key {
			return region, true
		}
	}
	return RegionDefinition{}, false
}

func (r RegionDefinition) officialNames() []string {
	names := make([]string, 0, 1+len(r.Former))
	names = append(names, r.Current)
	return append(names, r.Former...)
}

func (r RegionDefinition) allNames() []string {
	return append(r.officialNames(), r.Aliases...)
}
