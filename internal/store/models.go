package store

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm"

	"subsidy-match/backend/internal/match"
	"subsidy-match/backend/internal/scoring"
)

// Subsidy is a funding program in the unified shape, persisted for scoring.
type Subsidy struct {
	ID               string `gorm:"primaryKey;size:64"`
	Title            string `gorm:"size:512;index"`
	Description      string `gorm:"type:text"`
	RegionsJSON      string `gorm:"type:text"`
	SectorsJSON      string `gorm:"type:text"`
	AmountMin        float64
	AmountMax        float64
	AmountText       string `gorm:"size:255"`
	AmountConfidence float64
	Deadline         *time.Time `gorm:"index"`
	LastUpdated      time.Time  `gorm:"index"`
	Agency           string     `gorm:"size:255;index"`
	FundingType      string     `gorm:"size:64"`
	// SearchText and SectorKeys hold accent-folded copies used by ListSubsidies.
	SearchText string `gorm:"type:text"`
	SectorKeys string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BeforeSave refreshes the normalized search columns.
func (s *Subsidy) BeforeSave(tx *gorm.DB) error {
	s.SearchText = match.Normalize(s.Title + " " + s.Description)
	keys := make([]string, 0)
	for _, sector := range s.Sectors() {
		if key := match.Normalize(sector); key != "" {
			keys = append(keys, key)
		}
	}
	s.SectorKeys = ""
	if len(keys) > 0 {
		s.SectorKeys = sectorKeySeparator + strings.Join(keys, sectorKeySeparator) + sectorKeySeparator
	}
	return nil
}

const sectorKeySeparator = "|"

// SetRegions stores the eligible region names as JSON.
func (s *Subsidy) SetRegions(regions []string) {
	s.RegionsJSON = encodeList(regions)
}

// Regions returns the eligible region names.
func (s *Subsidy) Regions() []string {
	return decodeList(s.RegionsJSON)
}

// SetSectors stores the sector tags as JSON.
func (s *Subsidy) SetSectors(sectors []string) {
	s.SectorsJSON = encodeList(sectors)
}

// Sectors returns the sector tags.
func (s *Subsidy) Sectors() []string {
	return decodeList(s.SectorsJSON)
}

// Record converts the row into the scoring shape, computing days left as of now.
func (s *Subsidy) Record(now time.Time) scoring.SubsidyRecord {
	record := scoring.SubsidyRecord{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Regions:     s.Regions(),
		Sectors:     s.Sectors(),
		Amount: scoring.Amount{
			Min:        s.AmountMin,
			Max:        s.AmountMax,
			Display:    s.AmountText,
			Confidence: s.AmountConfidence,
		},
		LastUpdated: s.LastUpdated,
		Agency:      s.Agency,
		FundingType: s.FundingType,
	}
	if s.Deadline != nil {
		deadline := *s.Deadline
		remaining := daysUntil(deadline, now)
		record.Deadline = scoring.Deadline{Date: &deadline, DaysRemaining: &remaining}
	}
	return record
}

// SubsidyFromRecord builds a row from a unified record.
func SubsidyFromRecord(r scoring.SubsidyRecord) Subsidy {
	row := Subsidy{
		ID:               strings.TrimSpace(r.ID),
		Title:            strings.TrimSpace(r.Title),
		Description:      strings.TrimSpace(r.Description),
		AmountMin:        r.Amount.Min,
		AmountMax:        r.Amount.Max,
		AmountText:       strings.TrimSpace(r.Amount.Display),
		AmountConfidence: r.Amount.Confidence,
		LastUpdated:      r.LastUpdated,
		Agency:           strings.TrimSpace(r.Agency),
		FundingType:      strings.TrimSpace(r.FundingType),
	}
	if r.Deadline.Date != nil {
		deadline := r.Deadline.Date.UTC()
		row.Deadline = &deadline
	}
	row.SetRegions(r.Regions)
	row.SetSectors(r.Sectors)
	return row
}

func daysUntil(deadline, now time.Time) int {
	d := deadline.UTC()
	n := now.UTC()
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	return int(day.Sub(today).Hours() / 24)
}

// Farm is a persisted farm profile.
type Farm struct {
	ID                 string `gorm:"primaryKey;size:64"`
	Name               string `gorm:"size:255;index"`
	Region             string `gorm:"size:128"`
	Department         string `gorm:"size:128"`
	Country            string `gorm:"size:64"`
	LandUseJSON        string `gorm:"type:text"`
	TotalHectares      float64
	HasLivestock       bool
	CertificationsJSON string `gorm:"type:text"`
	LegalStatus        string `gorm:"size:64"`
	RevenueBracket     string `gorm:"size:64"`
	StaffCount         int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Profile returns the scoring view of the farm.
func (f *Farm) Profile() scoring.FarmProfile {
	return scoring.FarmProfile{
		ID:             f.ID,
		Region:         f.Region,
		Department:     f.Department,
		Country:        f.Country,
		LandUseTypes:   decodeList(f.LandUseJSON),
		TotalHectares:  f.TotalHectares,
		HasLivestock:   f.HasLivestock,
		Certifications: decodeList(f.CertificationsJSON),
		LegalStatus:    f.LegalStatus,
		RevenueBracket: f.RevenueBracket,
		StaffCount:     f.StaffCount,
	}
}

// FarmFromProfile builds a row from a farm profile.
func FarmFromProfile(name string, p scoring.FarmProfile) Farm {
	return Farm{
		ID:                 strings.TrimSpace(p.ID),
		Name:               strings.TrimSpace(name),
		Region:             strings.TrimSpace(p.Region),
		Department:         strings.TrimSpace(p.Department),
		Country:            strings.TrimSpace(p.Country),
		LandUseJSON:        encodeList(p.LandUseTypes),
		TotalHectares:      p.TotalHectares,
		HasLivestock:       p.HasLivestock,
		CertificationsJSON: encodeList(p.Certifications),
		LegalStatus:        strings.TrimSpace(p.LegalStatus),
		RevenueBracket:     strings.TrimSpace(p.RevenueBracket),
		StaffCount:         p.StaffCount,
	}
}

// RecommendationRun records the outcome of one batch recommendation call.
type RecommendationRun struct {
	ID               string `gorm:"primaryKey;size:64"`
	FarmID           string `gorm:"size:64;index"`
	QuickWins        int
	HighValue        int
	ExpiringSoon     int
	NewOpportunities int
	Popular          int
	Scored           int
	Skipped          int
	SourceFailed     bool
	ProcessingTimeMs int64
	CreatedAt        time.Time `gorm:"autoCreateTime"`
}

func encodeList(items []string) string {
	if items == nil {
		return "[]"
	}
	payload, _ := json.Marshal(items)
	return string(payload)
}

func decodeList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
