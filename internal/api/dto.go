package api

import (
	"strings"
	"time"

	"subsidy-match/backend/internal/match"
	"subsidy-match/backend/internal/recommend"
	"subsidy-match/backend/internal/scoring"
	"subsidy-match/backend/internal/store"
)

// FarmRequest is the body accepted when creating or updating a farm.
type FarmRequest struct {
	Name string `json:"name"`
	scoring.FarmProfile
}

// FarmDTO is the API representation of a stored farm.
type FarmDTO struct {
	Name string `json:"name"`
	scoring.FarmProfile
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FarmsResponse is the paginated farm listing.
type FarmsResponse struct {
	Items []FarmDTO `json:"items"`
	Total int64     `json:"total"`
}

// SubsidyDTO is the API representation of a stored subsidy.
type SubsidyDTO struct {
	scoring.SubsidyRecord
	EstimatedMax string `json:"estimated_max,omitempty"`
}

// SubsidiesResponse is the paginated subsidy listing.
type SubsidiesResponse struct {
	Items []SubsidyDTO `json:"items"`
	Total int64        `json:"total"`
}

// GeoMatchRequest asks for a single geographic eligibility check.
type GeoMatchRequest struct {
	FarmLocation   string   `json:"farm_location"`
	SubsidyRegions []string `json:"subsidy_regions"`
}

// RegionDTO lists one region of the catalog with its departments.
type RegionDTO struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Former      []string `json:"former,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
	Departments []string `json:"departments"`
}

// RegionsResponse lists the catalog.
type RegionsResponse struct {
	Regions     []RegionDTO       `json:"regions"`
	Departments map[string]string `json:"departments"`
}

// ImportResponse reports the outcome of a subsidy upload.
type ImportResponse struct {
	Imported int   `json:"imported"`
	Skipped  int   `json:"skipped"`
	Total    int64 `json:"total"`
}

// RecommendationsResponse wraps the bucketed recommendations with run metadata.
type RecommendationsResponse struct {
	RunID string `json:"run_id,omitempty"`
	recommend.Recommendations
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// RecommendationRunDTO is the API representation of a stored run.
type RecommendationRunDTO struct {
	ID               string    `json:"id"`
	FarmID           string    `json:"farm_id"`
	QuickWins        int       `json:"quick_wins"`
	HighValue        int       `json:"high_value"`
	ExpiringSoon     int       `json:"expiring_soon"`
	NewOpportunities int       `json:"new_opportunities"`
	Popular          int       `json:"popular"`
	Scored           int       `json:"scored"`
	Skipped          int       `json:"skipped"`
	SourceFailed     bool      `json:"source_failed"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// RunsResponse lists runs for a farm.
type RunsResponse struct {
	Items []RecommendationRunDTO `json:"items"`
}

// FarmFromModel converts a store.Farm into its DTO.
func FarmFromModel(f store.Farm) FarmDTO {
	return FarmDTO{
		Name:        f.Name,
		FarmProfile: f.Profile(),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// SubsidyFromModel converts a store.Subsidy into its DTO, counting days left from now.
func SubsidyFromModel(s store.Subsidy, now time.Time) SubsidyDTO {
	dto := SubsidyDTO{SubsidyRecord: s.Record(now)}
	if dto.Amount.Max > 0 {
		dto.EstimatedMax = scoring.FormatEuro(dto.Amount.Max)
	}
	if dto.Regions == nil {
		dto.Regions = []string{}
	}
	if dto.Sectors == nil {
		dto.Sectors = []string{}
	}
	return dto
}

// RunFromModel converts a store.RecommendationRun into its DTO.
func RunFromModel(r store.RecommendationRun) RecommendationRunDTO {
	return RecommendationRunDTO{
		ID:               r.ID,
		FarmID:           r.FarmID,
		QuickWins:        r.QuickWins,
		HighValue:        r.HighValue,
		ExpiringSoon:     r.ExpiringSoon,
		NewOpportunities: r.NewOpportunities,
		Popular:          r.Popular,
		Scored:           r.Scored,
		Skipped:          r.Skipped,
		SourceFailed:     r.SourceFailed,
		ProcessingTimeMs: r.ProcessingTimeMs,
		CreatedAt:        r.CreatedAt,
	}
}

// RegionsFromCatalog lists the catalog in its declared order.
func RegionsFromCatalog(cat match.Catalog) RegionsResponse {
	regions := make([]RegionDTO, 0, len(cat.Regions))
	for _, region := range cat.Regions {
		regions = append(regions, RegionFromDefinition(cat, region))
	}
	return RegionsResponse{Regions: regions, Departments: cat.Departments}
}

// RegionFromDefinition resolves a region's department codes to names.
func RegionFromDefinition(cat match.Catalog, region match.RegionDefinition) RegionDTO {
	departments := make([]string, 0, len(region.Departments))
	for _, code := range region.Departments {
		if name, ok := cat.Departments[code]; ok {
			departments = append(departments, strings.TrimSpace(name))
		}
	}
	return RegionDTO{
		Key:         region.Key,
		Name:        region.Current,
		Former:      region.Former,
		Aliases:     region.Aliases,
		Departments: departments,
	}
}
