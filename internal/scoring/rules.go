package scoring

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"subsidy-match/backend/internal/match"
)

// Rules holds the keyword lists scanned in subsidy titles and descriptions.
type Rules struct {
	Agriculture []string `yaml:"agriculture" json:"agriculture"`
	Business    []string `yaml:"business" json:"business"`
	SmallFarm   []string `yaml:"small_farm" json:"small_farm"`
	LargeFarm   []string `yaml:"large_farm" json:"large_farm"`
	Organic     []string `yaml:"organic" json:"organic"`
	Environment []string `yaml:"environment" json:"environment"`
	Simple      []string `yaml:"simple" json:"simple"`
	Complex     []string `yaml:"complex" json:"complex"`
}

// DefaultRules returns the built-in French keyword lists.
func DefaultRules() Rules {
	return Rules{
		Agriculture: []string{"agricol", "bio", "élevage", "elevage", "culture", "exploitation", "ferme", "agriculteur", "éleveur", "maraîcher", "viticult", "arboricult"},
		Business:    []string{"entreprise", "innovation", "développement", "investissement", "modernisation", "équipement"},
		SmallFarm:   []string{"petite", "micro"},
		LargeFarm:   []string{"grande", "importante"},
		Organic:     []string{"bio"},
		Environment: []string{"environnement", "environment"},
		Simple:      []string{"simple", "facile", "automatique", "sans condition", "déclaratif", "en ligne", "rapide"},
		Complex:     []string{"dossier complet", "étude", "audit", "expertise", "certification requise", "appel à projet"},
	}
}

// LoadRules reads keyword overrides from YAML. Lists left empty keep their defaults.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Rules{}, fmt.Errorf("read scoring rules: %w", err)
	}
	var override Rules
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Rules{}, fmt.Errorf("unmarshal scoring rules: %w", err)
	}
	rules := DefaultRules()
	merge := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	merge(&rules.Agriculture, override.Agriculture)
	merge(&rules.Business, override.Business)
	merge(&rules.SmallFarm, override.SmallFarm)
	merge(&rules.LargeFarm, override.LargeFarm)
	merge(&rules.Organic, override.Organic)
	merge(&rules.Environment, override.Environment)
	merge(&rules.Simple, override.Simple)
	merge(&rules.Complex, override.Complex)
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Validate ensures every list carries at least one usable keyword.
func (r Rules) Validate() error {
	lists := map[string][]string{
		"agriculture": r.Agriculture,
		"business":    r.Business,
		"small_farm":  r.SmallFarm,
		"large_farm":  r.LargeFarm,
		"organic":     r.Organic,
		"environment": r.Environment,
		"simple":      r.Simple,
		"complex":     r.Complex,
	}
	for name, list := range lists {
		if len(normalizeTerms(list)) == 0 {
			return errors.New("scoring rules: " + name + " keywords missing")
		}
	}
	return nil
}

// compiledRules holds the normalized keyword lists used during scans.
type compiledRules struct {
	agriculture []string
	business    []string
	smallFarm   []string
	largeFarm   []string
	organic     []string
	environment []string
	simple      []string
	complex     []string
}

func (r Rules) compile() compiledRules {
	return compiledRules{
		agriculture: normalizeTerms(r.Agriculture),
		business:    normalizeTerms(r.Business),
		smallFarm:   normalizeTerms(r.SmallFarm),
		largeFarm:   normalizeTerms(r.LargeFarm),
		organic:     normalizeTerms(r.Organic),
		environment: normalizeTerms(r.Environment),
		simple:      normalizeTerms(r.Simple),
		complex:     normalizeTerms(r.Complex),
	}
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		normalized := match.Normalize(term)
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
