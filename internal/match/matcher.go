package match

import (
	"fmt"
	"sort"
	"strings"
)

// MatchType identifies which rule produced a geographic match.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchContains MatchType = "contains"
	MatchSynonym  MatchType = "synonym"
	MatchParent   MatchType = "parent"
	MatchChild    MatchType = "child"
	MatchNational MatchType = "national"
	MatchEuropean MatchType = "european"
)

// GeographicMatch is the outcome of comparing a farm location against a subsidy's eligible regions.
type GeographicMatch struct {
	Score      float64   `json:"score"`
	Matches    bool      `json:"matches"`
	Reason     string    `json:"reason"`
	Confidence float64   `json:"confidence"`
	MatchType  MatchType `json:"match_type,omitempty"`
	Blocker    string    `json:"blocker,omitempty"`
}

var (
	nationalIndicators = []string{
		"france", "national", "metropolitaine", "francais",
		"territoire francais", "ensemble du territoire", "toute la france",
	}
	europeanIndicators = []string{
		"europeen", "europe", "union europeenne", "ue", "feder", "feader",
		"programme europeen", "fonds europeen",
	}
)

// Matcher resolves farm locations against subsidy regions using an immutable catalog.
// It holds no mutable state and is safe for concurrent use.
type Matcher struct {
	catalog      Catalog
	regionByName map[string]int // current, former and aliases
	officialName map[string]int // current and former only
	deptByName   map[string]string
	deptByCode   map[string]string
	deptRegion   map[string]int
	knownNames   []string
}

// NewMatcher validates the catalog and builds its lookup indexes.
func NewMatcher(cat Catalog) (*Matcher, error) {
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	m := &Matcher{
		catalog:      cat,
		regionByName: make(map[string]int),
		officialName: make(map[string]int),
		deptByName:   make(map[string]string, len(cat.Departments)),
		deptByCode:   make(map[string]string, len(cat.Departments)),
		deptRegion:   make(map[string]int, len(cat.Departments)),
	}
	known := make(map[string]struct{})
	for idx, region := range cat.Regions {
		for _, name := range region.officialNames() {
			if key := Normalize(name); key != "" {
				if _, taken := m.officialName[key]; !taken {
					m.officialName[key] = idx
				}
				known[key] = struct{}{}
			}
		}
		for _, name := range region.allNames() {
			if key := Normalize(name); key != "" {
				if _, taken := m.regionByName[key]; !taken {
					m.regionByName[key] = idx
				}
				known[key] = struct{}{}
			}
		}
		for _, code := range region.Departments {
			m.deptRegion[code] = idx
		}
	}
	for code, name := range cat.Departments {
		if key := Normalize(name); key != "" {
			m.deptByName[key] = code
			known[key] = struct{}{}
		}
		m.deptByCode[strings.ToLower(code)] = code
	}
	m.knownNames = make([]string, 0, len(known))
	for name := range known {
		m.knownNames = append(m.knownNames, name)
	}
	sort.Slice(m.knownNames, func(i, j int) bool {
		if len(m.knownNames[i]) != len(m.knownNames[j]) {
			return len(m.knownNames[i]) > len(m.knownNames[j])
		}
		return m.knownNames[i] < m.knownNames[j]
	})
	return m, nil
}

// MustNewMatcher is NewMatcher for static catalogs; it panics on an invalid catalog.
func MustNewMatcher(cat Catalog) *Matcher {
	m, err := NewMatcher(cat)
	if err != nil {
		panic(err)
	}
	return m
}

// Catalog returns the catalog backing the matcher.
func (m *Matcher) Catalog() Catalog {
	return m.catalog
}

// CalculateMatch compares one farm location against the subsidy's eligible regions.
func (m *Matcher) CalculateMatch(farmLocation string, subsidyRegions []string) GeographicMatch {
	farm := Normalize(farmLocation)
	type candidate struct {
		original   string
		normalized string
	}
	candidates := make([]candidate, 0, len(subsidyRegions))
	for _, region := range subsidyRegions {
		if normalized := Normalize(region); normalized != "" {
			candidates = append(candidates, candidate{original: strings.TrimSpace(region), normalized: normalized})
		}
	}
	if farm == "" || len(candidates) == 0 {
		return GeographicMatch{
			Matches:    false,
			Score:      0,
			Confidence: 0,
			Reason:     "insufficient geographic information",
			Blocker:    "location data is missing for the farm or the subsidy",
		}
	}

	farmDisplay := m.displayName(farm, farmLocation)
	for _, c := range candidates {
		if result, ok := m.matchRegion(farm, farmDisplay, c.normalized, c.original); ok {
			return result
		}
	}

	for _, c := range candidates {
		if hasIndicator(m.withoutKnownNames(c.normalized), nationalIndicators) {
			return GeographicMatch{
				Score:      20,
				Matches:    true,
				Confidence: 0.95,
				MatchType:  MatchNational,
				Reason:     fmt.Sprintf("national program available throughout France (%s)", c.original),
			}
		}
	}
	for _, c := range candidates {
		if hasIndicator(m.withoutKnownNames(c.normalized), europeanIndicators) {
			return GeographicMatch{
				Score:      18,
				Matches:    true,
				Confidence: 0.9,
				MatchType:  MatchEuropean,
				Reason:     fmt.Sprintf("European program open across member-state territories (%s)", c.original),
			}
		}
	}

	eligible := make([]string, 0, len(subsidyRegions))
	for _, region := range subsidyRegions {
		if trimmed := strings.TrimSpace(region); trimmed != "" {
			eligible = append(eligible, trimmed)
		}
	}
	return GeographicMatch{
		Score:      0,
		Matches:    false,
		Confidence: 0.9,
		Reason:     fmt.Sprintf("%s is not located in the listed eligible zones", farmDisplay),
		Blocker:    "eligible regions: " + strings.Join(eligible, ", "),
	}
}

func (m *Matcher) matchRegion(farm, farmDisplay, region, regionOriginal string) (GeographicMatch, bool) {
	if farm == region {
		return GeographicMatch{
			Score: 30, Matches: true, Confidence: 1.0, MatchType: MatchExact,
			Reason: fmt.Sprintf("exact location match: %s", farmDisplay),
		}, true
	}
	if strings.Contains(farm, region) || strings.Contains(region, farm) {
		return GeographicMatch{
			Score: 25, Matches: true, Confidence: 0.9, MatchType: MatchContains,
			Reason: fmt.Sprintf("%s overlaps eligible zone %s", farmDisplay, regionOriginal),
		}, true
	}

	farmRegion, farmIsRegion := m.lookupRegion(farm, m.regionByName)
	if farmIsRegion {
		if subsidyRegion, ok := m.lookupRegion(region, m.regionByName); ok && subsidyRegion == farmRegion {
			current := m.catalog.Regions[farmRegion].Current
			return GeographicMatch{
				Score: 28, Matches: true, Confidence: 0.95, MatchType: MatchSynonym,
				Reason: fmt.Sprintf("%s and %s both designate region %s", farmDisplay, regionOriginal, current),
			}, true
		}
	}

	if code, ok := m.lookupDepartment(farm); ok {
		if owner, owned := m.deptRegion[code]; owned {
			if subsidyRegion, ok := m.lookupRegion(region, m.officialName); ok && subsidyRegion == owner {
				return GeographicMatch{
					Score: 26, Matches: true, Confidence: 0.9, MatchType: MatchParent,
					Reason: fmt.Sprintf("department %s belongs to region %s", m.catalog.Departments[code], m.catalog.Regions[owner].Current),
				}, true
			}
		}
	}

	if farmIsRegion {
		if code, ok := m.lookupDepartment(region); ok {
			if owner, owned := m.deptRegion[code]; owned && owner == farmRegion {
				return GeographicMatch{
					Score: 24, Matches: true, Confidence: 0.85, MatchType: MatchChild,
					Reason: fmt.Sprintf("region %s includes eligible department %s", m.catalog.Regions[farmRegion].Current, m.catalog.Departments[code]),
				}, true
			}
		}
	}
	return GeographicMatch{}, false
}

func (m *Matcher) lookupRegion(normalized string, index map[string]int) (int, bool) {
	if idx, ok := index[normalized]; ok {
		return idx, true
	}
	if stripped := stripQualifier(normalized); stripped != normalized {
		idx, ok := index[stripped]
		return idx, ok
	}
	return 0, false
}

func (m *Matcher) lookupDepartment(normalized string) (string, bool) {
	if code, ok := m.deptByName[normalized]; ok {
		return code, true
	}
	if code, ok := m.deptByCode[normalized]; ok {
		return code, true
	}
	if stripped := stripQualifier(normalized); stripped != normalized {
		if code, ok := m.deptByName[stripped]; ok {
			return code, true
		}
		code, ok := m.deptByCode[stripped]
		return code, ok
	}
	return "", false
}

// displayName prefers the catalog spelling of a location over the caller's input.
func (m *Matcher) displayName(normalized, original string) string {
	if code, ok := m.lookupDepartment(normalized); ok {
		return m.catalog.Departments[code]
	}
	if idx, ok := m.lookupRegion(normalized, m.regionByName); ok {
		return m.catalog.Regions[idx].Current
	}
	return strings.TrimSpace(original)
}

// withoutKnownNames removes region and department names so that "Hauts-de-France"
// is not mistaken for a national program.
func (m *Matcher) withoutKnownNames(normalized string) string {
	out := normalized
	for _, name := range m.knownNames {
		out = removeWords(out, name)
		if out == "" {
			break
		}
	}
	return out
}

func hasIndicator(text string, indicators []string) bool {
	for _, indicator := range indicators {
		if ContainsWord(text, indicator) {
			return true
		}
	}
	return false
}
