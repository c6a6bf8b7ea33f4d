package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"subsidy-match/backend/internal/scoring"
	"subsidy-match/backend/internal/store"
)

// Format identifies the layout of an import file.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ErrUnsupportedFormat is returned for files that are neither JSON nor CSV.
var ErrUnsupportedFormat = errors.New("unsupported import format")

const listSeparator = "|"

// Result summarizes one import.
type Result struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Importer loads unified subsidy records into the store.
type Importer struct {
	db    *store.Database
	newID func() string
}

func NewImporter(db *store.Database) *Importer {
	return &Importer{
		db:    db,
		newID: func() string { return uuid.NewString() },
	}
}

// FormatFromName guesses the format from a file extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(name))) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// LoadFile imports the file at path. With replace set, the stored catalog is swapped for the file contents.
func (i *Importer) LoadFile(ctx context.Context, path string, replace bool) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, fmt.Errorf("import path is empty")
	}
	format, err := FormatFromName(path)
	if err != nil {
		return Result{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open import file: %w", err)
	}
	defer file.Close()

	result, err := i.Load(ctx, bufio.NewReader(file), format, replace)
	if err != nil {
		return result, fmt.Errorf("import %s: %w", filepath.Base(path), err)
	}
	return result, nil
}

// Load imports records read from r in the given format.
func (i *Importer) Load(ctx context.Context, r io.Reader, format Format, replace bool) (Result, error) {
	if i == nil || i.db == nil {
		return Result{}, fmt.Errorf("importer has no database")
	}
	var (
		records []scoring.SubsidyRecord
		skipped int
		err     error
	)
	switch format {
	case FormatJSON:
		records, err = decodeJSON(r)
	case FormatCSV:
		records, skipped, err = decodeCSV(r)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	rows := make([]store.Subsidy, 0, len(records))
	for _, record := range records {
		if strings.TrimSpace(record.Title) == "" {
			skipped++
			continue
		}
		if strings.TrimSpace(record.ID) == "" {
			record.ID = i.newID()
		}
		if err := record.Validate(); err != nil {
			logrus.WithError(err).Warn("skipping subsidy record")
			skipped++
			continue
		}
		if record.LastUpdated.IsZero() {
			record.LastUpdated = time.Now().UTC()
		}
		rows = append(rows, store.SubsidyFromRecord(record))
	}

	if replace {
		err = i.db.ReplaceSubsidies(rows)
	} else {
		err = i.db.UpsertSubsidies(rows)
	}
	if err != nil {
		return Result{}, fmt.Errorf("store subsidies: %w", err)
	}
	return Result{Imported: len(rows), Skipped: skipped}, nil
}

func decodeJSON(r io.Reader) ([]scoring.SubsidyRecord, error) {
	var records []scoring.SubsidyRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode subsidy json: %w", err)
	}
	return records, nil
}

func decodeCSV(r io.Reader) ([]scoring.SubsidyRecord, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for idx, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = idx
	}
	if _, ok := columns["title"]; !ok {
		return nil, 0, fmt.Errorf("csv header has no title column")
	}

	var (
		records []scoring.SubsidyRecord
		skipped int
	)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read csv row %d: %w", line, err)
		}
		record, err := parseRow(row, columns)
		if err != nil {
			logrus.WithFields(logrus.Fields{"line": line}).WithError(err).Warn("skipping csv row")
			skipped++
			continue
		}
		records = append(records, record)
	}
	return records, skipped, nil
}

func parseRow(row []string, columns map[string]int) (scoring.SubsidyRecord, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	record := scoring.SubsidyRecord{
		ID:          field("id"),
		Title:       field("title"),
		Description: field("description"),
		Regions:     splitList(field("regions")),
		Sectors:     splitList(field("sectors")),
		Agency:      field("agency"),
		FundingType: field("funding_type"),
	}
	record.Amount.Display = field("amount_text")

	var err error
	if record.Amount.Min, err = parseFloat(field("amount_min")); err != nil {
		return record, fmt.Errorf("amount_min: %w", err)
	}
	if record.Amount.Max, err = parseFloat(field("amount_max")); err != nil {
		return record, fmt.Errorf("amount_max: %w", err)
	}
	if record.Amount.Confidence, err = parseFloat(field("amount_confidence")); err != nil {
		return record, fmt.Errorf("amount_confidence: %w", err)
	}
	if raw := field("deadline"); raw != "" {
		deadline, err := parseDate(raw)
		if err != nil {
			return record, fmt.Errorf("deadline: %w", err)
		}
		record.Deadline.Date = &deadline
	}
	if raw := field("last_updated"); raw != "" {
		updated, err := parseDate(raw)
		if err != nil {
			return record, fmt.Errorf("last_updated: %w", err)
		}
		record.LastUpdated = updated
	}
	return record, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, listSeparator) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseFloat(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(raw, " ", ""), 64)
}

var dateLayouts = []string{time.RFC3339, "2006-01-02", "02/01/2006"}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
