package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"subsidy-match/backend/internal/match"
)

// ErrNotFound is returned when a lookup by ID matches no row.
var ErrNotFound = errors.New("record not found")

const insertBatchSize = 250

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Subsidy{}, &Farm{}, &RecommendationRun{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var subsidyColumns = []string{
	"title", "description", "regions_json", "sectors_json",
	"amount_min", "amount_max", "amount_text", "amount_confidence",
	"deadline", "last_updated", "agency", "funding_type", "search_text", "sector_keys", "updated_at",
}

// UpsertSubsidies inserts new subsidies and refreshes existing ones by ID.
func (d *Database) UpsertSubsidies(rows []Subsidy) error {
	if len(rows) == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		return upsertSubsidies(tx, rows)
	})
}

// ReplaceSubsidies swaps the whole subsidy catalog for the provided slice.
func (d *Database) ReplaceSubsidies(rows []Subsidy) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Subsidy{}).Error; err != nil {
			return err
		}
		return upsertSubsidies(tx, rows)
	})
}

func upsertSubsidies(tx *gorm.DB, rows []Subsidy) error {
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(subsidyColumns),
		}).CreateInBatches(batch, insertBatchSize).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// CountSubsidies returns the number of stored subsidies.
func (d *Database) CountSubsidies() (int64, error) {
	var count int64
	if err := d.gorm.Model(&Subsidy{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SubsidyQuery encapsulates filters and pagination for listing subsidies.
type SubsidyQuery struct {
	Query  string
	Sector string
	Agency string
	Offset int
	Limit  int
}

// ListSubsidies returns paginated subsidies applying optional filters.
func (d *Database) ListSubsidies(opts SubsidyQuery) ([]Subsidy, int64, error) {
	base := d.gorm.Model(&Subsidy{})
	if q := match.Normalize(opts.Query); q != "" {
		base = base.Where(`search_text LIKE ? ESCAPE '\'`, "%"+escapeLike(q)+"%")
	}
	if sector := match.Normalize(opts.Sector); sector != "" {
		pattern := "%" + sectorKeySeparator + escapeLike(sector) + sectorKeySeparator + "%"
		base = base.Where(`sector_keys LIKE ? ESCAPE '\'`, pattern)
	}
	if agency := strings.TrimSpace(opts.Agency); agency != "" {
		base = base.Where("LOWER(agency) = ?", strings.ToLower(agency))
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := base.Order("last_updated DESC, id ASC").Offset(opts.Offset)
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	var rows []Subsidy
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// GetSubsidy retrieves a subsidy by ID.
func (d *Database) GetSubsidy(id string) (*Subsidy, error) {
	var row Subsidy
	if err := d.gorm.First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "subsidy", id)
	}
	return &row, nil
}

// SaveFarm inserts or updates a farm profile.
func (d *Database) SaveFarm(farm *Farm) error {
	if farm == nil {
		return errors.New("farm is nil")
	}
	if strings.TrimSpace(farm.ID) == "" {
		return errors.New("farm id is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "region", "department", "country", "land_use_json", "total_hectares",
			"has_livestock", "certifications_json", "legal_status", "revenue_bracket", "staff_count", "updated_at",
		}),
	}).Create(farm).Error
}

// GetFarm retrieves a farm by ID.
func (d *Database) GetFarm(id string) (*Farm, error) {
	var farm Farm
	if err := d.gorm.First(&farm, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "farm", id)
	}
	return &farm, nil
}

// ListFarms returns a paged set of farms ordered by name.
func (d *Database) ListFarms(offset, limit int) ([]Farm, int64, error) {
	var total int64
	if err := d.gorm.Model(&Farm{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query := d.gorm.Model(&Farm{}).Order("name ASC, id ASC")
	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}
	var farms []Farm
	if err := query.Find(&farms).Error; err != nil {
		return nil, 0, err
	}
	return farms, total, nil
}

// SaveRecommendationRun records a recommendation batch outcome.
func (d *Database) SaveRecommendationRun(run *RecommendationRun) error {
	if run == nil {
		return errors.New("recommendation run is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(run).Error
}

// ListRecommendationRuns returns the latest runs for a farm, newest first.
func (d *Database) ListRecommendationRuns(farmID string, limit int) ([]RecommendationRun, error) {
	query := d.gorm.Model(&RecommendationRun{}).Where("farm_id = ?", farmID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var runs []RecommendationRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return err
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_subsidies_last_updated_id ON subsidies(last_updated, id)",
		"CREATE INDEX IF NOT EXISTS idx_recommendation_runs_farm_created ON recommendation_runs(farm_id, created_at)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
