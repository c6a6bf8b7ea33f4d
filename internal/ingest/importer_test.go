package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subsidy-match/backend/internal/store"
)

func newTestImporter(t *testing.T) (*Importer, *store.Database) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "ingest.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewImporter(db), db
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleCSV = `id,title,description,regions,sectors,amount_min,amount_max,amount_text,deadline,last_updated,agency
vin-1,Aide viticulture,Plantation de vignes,Occitanie|Nouvelle-Aquitaine,viticulture,5000,30000,jusqu'à 30 000 €,2026-12-31,2026-10-01,FranceAgriMer
,Aide bio,Conversion biologique,France,bio|maraîchage,,10000,,,,Agence Bio
bad-1,Montant invalide,,,,abc,,,,,
no-title,,Sans titre,,,,,,,,
`

func TestLoadCSV(t *testing.T) {
	importer, db := newTestImporter(t)
	importer.newID = func() string { return "generated" }

	result, err := importer.LoadFile(context.Background(), writeFile(t, "subsidies.csv", sampleCSV), false)
	require.NoError(t, err)
	assert.Equal(t, Result{Imported: 2, Skipped: 2}, result)

	stored, err := db.GetSubsidy("vin-1")
	require.NoError(t, err)
	record := stored.Record(time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"Occitanie", "Nouvelle-Aquitaine"}, record.Regions)
	assert.Equal(t, 30000.0, record.Amount.Max)
	assert.Equal(t, "jusqu'à 30 000 €", record.Amount.Display)
	require.NotNil(t, record.Deadline.DaysRemaining)
	assert.Equal(t, 76, *record.Deadline.DaysRemaining)

	generated, err := db.GetSubsidy("generated")
	require.NoError(t, err)
	assert.Equal(t, "Aide bio", generated.Title)
	assert.False(t, generated.LastUpdated.IsZero())
}

func TestLoadJSONReplace(t *testing.T) {
	importer, db := newTestImporter(t)
	_, err := importer.LoadFile(context.Background(), writeFile(t, "first.csv", sampleCSV), false)
	require.NoError(t, err)

	payload := `[
		{"id": "pac-1", "title": "Paiement vert", "regions": ["France"], "amount": {"max": 12000}},
		{"id": "neg", "title": "Montant négatif", "amount": {"min": -5}},
		{"id": "empty"}
	]`
	result, err := importer.LoadFile(context.Background(), writeFile(t, "second.json", payload), true)
	require.NoError(t, err)
	assert.Equal(t, Result{Imported: 1, Skipped: 2}, result)

	count, err := db.CountSubsidies()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	_, err = db.GetSubsidy("vin-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLoadRejectsBadInput(t *testing.T) {
	importer, _ := newTestImporter(t)
	ctx := context.Background()

	_, err := importer.LoadFile(ctx, writeFile(t, "subsidies.xml", "<x/>"), false)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = importer.LoadFile(ctx, "", false)
	assert.Error(t, err)

	_, err = importer.LoadFile(ctx, filepath.Join(t.TempDir(), "missing.json"), false)
	assert.Error(t, err)

	_, err = importer.Load(ctx, strings.NewReader("{not json"), FormatJSON, false)
	assert.Error(t, err)

	_, err = importer.Load(ctx, strings.NewReader("id,name\n1,x\n"), FormatCSV, false)
	assert.Error(t, err)
}

func TestLoadHonorsCancelledContext(t *testing.T) {
	importer, db := newTestImporter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := importer.Load(ctx, strings.NewReader(sampleCSV), FormatCSV, false)
	assert.ErrorIs(t, err, context.Canceled)
	count, err := db.CountSubsidies()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSplitListAndDates(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a | | b "))
	assert.Nil(t, splitList(""))

	parsed, err := parseDate("31/12/2026")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), parsed)
	_, err = parseDate("soon")
	assert.Error(t, err)
}
