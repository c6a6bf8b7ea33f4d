package scoring

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidRecord marks a subsidy record that cannot be scored.
var ErrInvalidRecord = errors.New("invalid subsidy record")

// FarmProfile is the caller-owned description of a farm. Scoring never mutates it.
type FarmProfile struct {
	ID             string   `json:"id"`
	Region         string   `json:"region"`
	Department     string   `json:"department"`
	Country        string   `json:"country"`
	LandUseTypes   []string `json:"land_use_types"`
	TotalHectares  float64  `json:"total_hectares"`
	HasLivestock   bool     `json:"has_livestock"`
	Certifications []string `json:"certifications"`
	LegalStatus    string   `json:"legal_status"`
	RevenueBracket string   `json:"revenue_bracket"`
	StaffCount     int      `json:"staff_count"`
}

// Location returns the most specific non-empty location: department, region, then country.
func (f FarmProfile) Location() string {
	for _, candidate := range []string{f.Department, f.Region, f.Country} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// Amount is the funding range already extracted by the upstream parser.
type Amount struct {
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Display    string  `json:"display"`
	Confidence float64 `json:"confidence"`
}

// Deadline carries the closing date and the days left at the time the record was loaded.
type Deadline struct {
	Date          *time.Time `json:"date,omitempty"`
	DaysRemaining *int       `json:"days_remaining,omitempty"`
}

// SubsidyRecord is a subsidy in the unified shape shared by every upstream source.
type SubsidyRecord struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Regions     []string  `json:"regions"`
	Sectors     []string  `json:"sectors"`
	Amount      Amount    `json:"amount"`
	Deadline    Deadline  `json:"deadline"`
	LastUpdated time.Time `json:"last_updated"`
	Agency      string    `json:"agency"`
	FundingType string    `json:"funding_type"`
}

// Validate rejects records that would produce meaningless scores.
func (r SubsidyRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}
	for _, v := range []float64{r.Amount.Min, r.Amount.Max, r.Amount.Confidence} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s has an invalid amount", ErrInvalidRecord, r.ID)
		}
	}
	if r.Amount.Max > 0 && r.Amount.Min > r.Amount.Max {
		return fmt.Errorf("%w: %s amount min %.0f exceeds max %.0f", ErrInvalidRecord, r.ID, r.Amount.Min, r.Amount.Max)
	}
	return nil
}

// Category buckets a recommendation for display.
type Category string

const (
	CategoryQuickWin       Category = "quickWin"
	CategoryHighValue      Category = "highValue"
	CategoryExpiringSoon   Category = "expiringSoon"
	CategoryNewOpportunity Category = "newOpportunity"
	CategoryPopular        Category = "popular"
)

// RecommendationScore is the scored view of one subsidy for one farm.
type RecommendationScore struct {
	SubsidyID      string   `json:"subsidy_id"`
	Score          int      `json:"score"`
	Reasons        []string `json:"reasons"`
	Category       Category `json:"category"`
	Confidence     float64  `json:"confidence"`
	EstimatedValue string   `json:"estimated_value,omitempty"`
	Blockers       []string `json:"blockers,omitempty"`
	NextSteps      []string `json:"next_steps,omitempty"`
}
