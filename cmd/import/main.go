package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"subsidy-match/backend/internal/ingest"
	"subsidy-match/backend/internal/store"
	"subsidy-match/backend/internal/util"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("load .env file")
	}

	var (
		dbPath    = flag.String("db", filepath.FromSlash("data/subsidies.db"), "Path to SQLite database")
		files     multiFlag
		dirs      multiFlag
		replace   = flag.Bool("replace", false, "Replace the stored catalog with the imported records")
		exportURL = flag.String("url", "", "Remote JSON or CSV subsidy export (env SUBSIDY_EXPORT_URL)")
		apiKey    = flag.String("api-key", "", "API key sent with -url (env SUBSIDY_EXPORT_KEY)")
	)
	flag.Var(&files, "file", "Subsidy JSON or CSV file (repeatable)")
	flag.Var(&dirs, "dir", "Directory containing subsidy JSON or CSV files (repeatable)")
	flag.Parse()

	if override := strings.TrimSpace(os.Getenv("SUBSIDY_DB_PATH")); override != "" && !isFlagSet("db") {
		*dbPath = override
	}
	if strings.TrimSpace(*exportURL) == "" {
		*exportURL = strings.TrimSpace(os.Getenv("SUBSIDY_EXPORT_URL"))
	}
	if strings.TrimSpace(*apiKey) == "" {
		*apiKey = strings.TrimSpace(os.Getenv("SUBSIDY_EXPORT_KEY"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		logrus.Fatalf("create data directory: %v", err)
	}
	db, err := store.Open(*dbPath, true)
	if err != nil {
		logrus.Fatalf("open database: %v", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close database")
		}
	}()

	importList := make([]string, 0, len(files))
	seen := make(map[string]struct{})
	addFile := func(path string) {
		cleaned := filepath.Clean(path)
		if _, ok := seen[cleaned]; ok {
			return
		}
		seen[cleaned] = struct{}{}
		importList = append(importList, cleaned)
	}

	for _, p := range files {
		addFile(p)
	}
	for _, dir := range dirs {
		filepath.WalkDir(filepath.Clean(dir), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logrus.WithError(err).WithField("path", path).Warn("walking import dir")
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if _, err := ingest.FormatFromName(d.Name()); err == nil {
				addFile(path)
			}
			return nil
		})
	}

	if url := strings.TrimSpace(*exportURL); url != "" {
		dest, err := downloadExport(ctx, url, *apiKey)
		if err != nil {
			if len(importList) == 0 {
				logrus.Fatalf("download export: %v", err)
			}
			logrus.WithError(err).Warn("skipping remote export; continuing with provided files")
		} else {
			defer os.Remove(dest)
			addFile(dest)
		}
	}

	if len(importList) == 0 {
		logrus.Fatal("nothing to import: pass -file, -dir or -url")
	}

	importer := ingest.NewImporter(db)
	total := ingest.Result{}
	timer := util.StartTimer()
	for i, path := range importList {
		// Only the first file may replace the catalog, later files add to it.
		result, err := importer.LoadFile(ctx, path, *replace && i == 0)
		if err != nil {
			logrus.Fatalf("import %s: %v", path, err)
		}
		total.Imported += result.Imported
		total.Skipped += result.Skipped
		logrus.WithFields(logrus.Fields{
			"file":     path,
			"imported": result.Imported,
			"skipped":  result.Skipped,
		}).Info("import complete")
	}

	count, err := db.CountSubsidies()
	if err != nil {
		logrus.Fatalf("count subsidies: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"files":    len(importList),
		"imported": total.Imported,
		"skipped":  total.Skipped,
		"stored":   count,
		"duration": timer.Elapsed().Round(time.Millisecond),
	}).Info("subsidy import finished")
}

func downloadExport(ctx context.Context, url, apiKey string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json, text/csv")
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	client := &http.Client{Timeout: 2 * time.Minute}

	logrus.WithField("url", url).Info("downloading subsidy export")
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("download failed: %s", strings.TrimSpace(string(body)))
	}

	ext := ".json"
	if strings.Contains(resp.Header.Get("Content-Type"), "csv") || strings.HasSuffix(strings.ToLower(url), ".csv") {
		ext = ".csv"
	}
	tmp, err := os.CreateTemp("", "subsidies-*"+ext)
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

type multiFlag []string

func (m *multiFlag) String() string {
	return strings.Join(*m, ",")
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}
