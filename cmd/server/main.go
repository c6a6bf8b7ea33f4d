package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"subsidy-match/backend/internal/api"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("load .env file")
	}
	configureLogging()

	baseDir, err := os.Getwd()
	if err != nil {
		logrus.Fatalf("determine working directory: %v", err)
	}

	dataDir := filepath.Join(baseDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logrus.Fatalf("create data directory: %v", err)
	}

	cfg := api.Config{
		DBPath:            filepath.Join(dataDir, "subsidies.db"),
		RegionCatalogPath: strings.TrimSpace(os.Getenv("REGION_CATALOG_PATH")),
		ScoringRulesPath:  strings.TrimSpace(os.Getenv("SCORING_RULES_PATH")),
		ImportPaths:       splitList(os.Getenv("SUBSIDY_IMPORT_PATH")),
		AllowedOrigins: []string{
			"http://localhost:1000",
			"http://127.0.0.1:1000",
		},
		SilentDB: !strings.EqualFold(strings.TrimSpace(os.Getenv("SILENT_DB")), "false"),
	}

	if override := strings.TrimSpace(os.Getenv("SUBSIDY_DB_PATH")); override != "" {
		cfg.DBPath = override
	}
	if origins := splitList(os.Getenv("ALLOWED_ORIGINS")); len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer server.Close()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "2000"
	}

	logrus.Infof("starting subsidy-match backend on :%s", port)
	if err := router.Run(":" + port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}

func configureLogging() {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		return
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithError(err).Warn("invalid LOG_LEVEL, keeping info")
		return
	}
	logrus.SetLevel(parsed)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
