package store

import (
	"context"
	"fmt"
	"time"

	"subsidy-match/backend/internal/scoring"
)

// SubsidySource serves stored subsidies in the unified scoring shape.
type SubsidySource struct {
	db  *Database
	now func() time.Time
}

// NewSubsidySource returns a source reading from db. A nil clock defaults to time.Now.
func NewSubsidySource(db *Database, now func() time.Time) *SubsidySource {
	if now == nil {
		now = time.Now
	}
	return &SubsidySource{db: db, now: now}
}

// Subsidies loads every stored subsidy, with deadlines counted from the current time.
func (s *SubsidySource) Subsidies(ctx context.Context) ([]scoring.SubsidyRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("subsidy source: database is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []Subsidy
	if err := s.db.gorm.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load subsidies: %w", err)
	}
	now := s.now()
	records := make([]scoring.SubsidyRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].Record(now))
	}
	return records, nil
}
