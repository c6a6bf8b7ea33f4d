package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"subsidy-match/backend/internal/match"
)

const (
	maxScore          = 100
	urgentWindowDays  = 30
	newnessWindow     = 30 * 24 * time.Hour
	highValueMax      = 50000
	highValueMin      = 20000
	smallFarmHectares = 20
	largeFarmHectares = 100
)

// Scorer computes recommendation scores for (farm, subsidy) pairs.
type Scorer struct {
	matcher *match.Matcher
	rules   compiledRules
	now     func() time.Time
}

// Option customises a Scorer.
type Option func(*Scorer)

// WithClock overrides the time source used for newness and deadline checks.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRules replaces the default keyword lists.
func WithRules(rules Rules) Option {
	return func(s *Scorer) {
		s.rules = rules.compile()
	}
}

// NewScorer builds a scorer. A nil matcher falls back to the default French catalog.
func NewScorer(matcher *match.Matcher, opts ...Option) *Scorer {
	if matcher == nil {
		matcher = match.MustNewMatcher(match.DefaultCatalog())
	}
	s := &Scorer{
		matcher: matcher,
		rules:   DefaultRules().compile(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Matcher exposes the geographic matcher used by the scorer.
func (s *Scorer) Matcher() *match.Matcher {
	return s.matcher
}

type tally struct {
	score      int
	reasons    []string
	blockers   []string
	confidence float64
	categories map[Category]bool
}

func (t *tally) add(points int, confidence float64, reason string) {
	t.score += points
	if reason != "" {
		t.reasons = append(t.reasons, reason)
	}
	if confidence > t.confidence {
		t.confidence = confidence
	}
}

func (t *tally) block(blocker string) {
	if blocker != "" {
		t.blockers = append(t.blockers, blocker)
	}
}

// CalculateRecommendationScore sums the geography, sector, size, certification, deadline,
// value, quick-win and newness sub-scores for one subsidy and caps the total at 100.
func (s *Scorer) CalculateRecommendationScore(farm FarmProfile, subsidy SubsidyRecord) RecommendationScore {
	t := &tally{categories: make(map[Category]bool)}
	text := match.Normalize(subsidy.Title + " " + subsidy.Description)

	s.scoreGeography(t, farm, subsidy)
	s.scoreSector(t, farm, subsidy, text)
	s.scoreSize(t, farm, text)
	s.scoreCertification(t, farm, text)
	s.scoreDeadline(t, subsidy)
	s.scoreValue(t, subsidy)
	s.scoreQuickWin(t, text)
	s.scoreNewness(t, subsidy)

	final := t.score
	if final > maxScore {
		final = maxScore
	}
	if final < 0 {
		final = 0
	}

	result := RecommendationScore{
		SubsidyID:  subsidy.ID,
		Score:      final,
		Reasons:    t.reasons,
		Category:   ResolveCategory(t.categories),
		Confidence: t.confidence,
		Blockers:   t.blockers,
	}
	if result.Reasons == nil {
		result.Reasons = []string{}
	}
	if value := EstimateValue(subsidy.Amount.Max, farm.TotalHectares); value > 1000 {
		result.EstimatedValue = FormatEuro(value)
	}
	if final > 50 {
		result.NextSteps = nextSteps(subsidy)
	}
	return result
}

func (s *Scorer) scoreGeography(t *tally, farm FarmProfile, subsidy SubsidyRecord) {
	geo := s.matcher.CalculateMatch(farm.Location(), subsidy.Regions)
	t.add(int(math.Round(geo.Score)), geo.Confidence, geo.Reason)
	t.block(geo.Blocker)
}

func (s *Scorer) scoreSector(t *tally, farm FarmProfile, subsidy SubsidyRecord, text string) {
	if matched := matchingActivities(farm, subsidy.Sectors); len(matched) > 0 {
		t.add(25, 0.9, "matching activities: "+strings.Join(matched, ", "))
		return
	}
	switch {
	case containsAny(text, s.rules.agriculture):
		t.add(15, 0.7, "agricultural subsidy")
	case containsAny(text, s.rules.business):
		t.add(10, 0.5, "general business support open to farms")
	default:
		t.block("sector does not match")
	}
}

// matchingActivities returns the farm activities that also appear in the subsidy sectors.
// Livestock farms count "élevage" as an activity even when it is not tagged.
func matchingActivities(farm FarmProfile, sectors []string) []string {
	wanted := make(map[string]struct{}, len(sectors))
	for _, sector := range sectors {
		if key := match.Normalize(sector); key != "" {
			wanted[key] = struct{}{}
		}
	}
	if len(wanted) == 0 {
		return nil
	}
	activities := append([]string(nil), farm.LandUseTypes...)
	if farm.HasLivestock {
		activities = append(activities, "élevage")
	}
	var matched []string
	seen := make(map[string]struct{})
	for _, activity := range activities {
		key := match.Normalize(activity)
		if _, ok := wanted[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		matched = append(matched, strings.TrimSpace(activity))
	}
	return matched
}

func (s *Scorer) scoreSize(t *tally, farm FarmProfile, text string) {
	switch {
	case containsAny(text, s.rules.smallFarm):
		if farm.TotalHectares < smallFarmHectares {
			t.add(15, 0.8, "suited to small farms")
		} else {
			t.block("reserved for small farms")
		}
	case containsAny(text, s.rules.largeFarm):
		if farm.TotalHectares > largeFarmHectares {
			t.add(15, 0.8, "suited to large farms")
		} else {
			t.block("reserved for large farms")
		}
	default:
		t.add(5, 0.5, "no size restriction mentioned")
	}
}

func (s *Scorer) scoreCertification(t *tally, farm FarmProfile, text string) {
	switch {
	case hasCertification(farm, "bio") && containsAny(text, s.rules.organic):
		t.add(20, 0.85, "organic certification bonus")
	case hasCertification(farm, "hve") && containsAny(text, s.rules.environment):
		t.add(15, 0.85, "HVE certification valued for environmental schemes")
	}
}

// certificationAliases lists the normalized spellings accepted for each certification code.
var certificationAliases = map[string][]string{
	"bio": {"bio", "ab", "label ab", "agriculture biologique", "biologique", "certification bio", "certifie bio"},
	"hve": {"hve", "hve 3", "hve niveau 3", "haute valeur environnementale", "certification hve"},
}

func hasCertification(farm FarmProfile, code string) bool {
	aliases := certificationAliases[code]
	for _, cert := range farm.Certifications {
		normalized := match.Normalize(cert)
		for _, alias := range aliases {
			if normalized == alias {
				return true
			}
		}
	}
	return false
}

// scoreDeadline rewards any deadline within the urgency window, including one that has
// already passed; a passed deadline also raises a blocker.
func (s *Scorer) scoreDeadline(t *tally, subsidy SubsidyRecord) {
	days := subsidy.Deadline.DaysRemaining
	if days == nil || *days > urgentWindowDays {
		return
	}
	if *days < 0 {
		t.add(15, 0.95, fmt.Sprintf("deadline passed %d days ago", -*days))
		t.block("application deadline has passed")
	} else {
		t.add(15, 0.95, fmt.Sprintf("deadline in %d days", *days))
	}
	t.categories[CategoryExpiringSoon] = true
}

func (s *Scorer) scoreValue(t *tally, subsidy SubsidyRecord) {
	amount := subsidy.Amount
	if amount.Max <= highValueMax && amount.Min <= highValueMin {
		return
	}
	display := strings.TrimSpace(amount.Display)
	if display == "" {
		display = FormatEuro(math.Max(amount.Max, amount.Min))
	}
	confidence := amount.Confidence
	if confidence <= 0 {
		confidence = 0.8
	}
	t.add(20, confidence, "high funding amount: "+display)
	t.categories[CategoryHighValue] = true
}

func (s *Scorer) scoreQuickWin(t *tally, text string) {
	if containsAny(text, s.rules.simple) && !containsAny(text, s.rules.complex) {
		t.add(25, 0.6, "simple application with few prerequisites")
		t.categories[CategoryQuickWin] = true
	}
}

func (s *Scorer) scoreNewness(t *tally, subsidy SubsidyRecord) {
	if subsidy.LastUpdated.IsZero() {
		return
	}
	if s.now().Sub(subsidy.LastUpdated) <= newnessWindow {
		t.add(10, 0.7, "new funding opportunity")
		t.categories[CategoryNewOpportunity] = true
	}
}

func nextSteps(subsidy SubsidyRecord) []string {
	steps := []string{"review detailed eligibility criteria", "prepare required documents"}
	days := subsidy.Deadline.DaysRemaining
	switch {
	case days == nil || *days >= urgentWindowDays:
	case *days < 0:
		steps = append(steps, "urgent: deadline has passed, confirm whether a new call is open")
	default:
		steps = append(steps, fmt.Sprintf("urgent: submit the application within %d days", *days))
	}
	return steps
}
