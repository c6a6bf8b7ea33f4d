package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"subsidy-match/backend/internal/ingest"
	"subsidy-match/backend/internal/match"
	"subsidy-match/backend/internal/recommend"
	"subsidy-match/backend/internal/scoring"
	"subsidy-match/backend/internal/store"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
	defaultRunLimit = 20
	maxUploadBytes  = 32 << 20
)

// Config defines server dependencies.
type Config struct {
	DBPath            string
	RegionCatalogPath string
	ScoringRulesPath  string
	ImportPaths       []string
	AllowedOrigins    []string
	SilentDB          bool
	// Now overrides the wall clock for deadlines and newness.
	Now func() time.Time
}

// Server wires HTTP handlers with persistence and scoring.
type Server struct {
	db             *store.Database
	scorer         *scoring.Scorer
	recommender    *recommend.Service
	importer       *ingest.Importer
	notifier       *RecommendationNotifier
	allowedOrigins []string
	catalogPath    string
	rulesPath      string
	now            func() time.Time
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	catalog := match.DefaultCatalog()
	if path := strings.TrimSpace(cfg.RegionCatalogPath); path != "" {
		loaded, err := match.LoadCatalog(path)
		if err != nil {
			return nil, fmt.Errorf("region catalog: %w", err)
		}
		catalog = loaded
		logrus.WithFields(logrus.Fields{
			"path":    path,
			"regions": len(catalog.Regions),
		}).Info("region catalog loaded")
	}
	matcher, err := match.NewMatcher(catalog)
	if err != nil {
		return nil, fmt.Errorf("geographic matcher: %w", err)
	}

	opts := []scoring.Option{scoring.WithClock(now)}
	if path := strings.TrimSpace(cfg.ScoringRulesPath); path != "" {
		rules, err := scoring.LoadRules(path)
		if err != nil {
			return nil, fmt.Errorf("scoring rules: %w", err)
		}
		opts = append(opts, scoring.WithRules(rules))
		logrus.WithField("path", path).Info("scoring rules loaded")
	}
	scorer := scoring.NewScorer(matcher, opts...)

	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	server := &Server{
		db:             db,
		scorer:         scorer,
		recommender:    recommend.NewService(store.NewSubsidySource(db, now), scorer),
		importer:       ingest.NewImporter(db),
		notifier:       NewRecommendationNotifier(),
		allowedOrigins: cfg.AllowedOrigins,
		catalogPath:    cfg.RegionCatalogPath,
		rulesPath:      cfg.ScoringRulesPath,
		now:            now,
	}

	for _, path := range cfg.ImportPaths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		result, err := server.importer.LoadFile(context.Background(), path, false)
		if err != nil {
			logrus.WithError(err).WithField("path", path).Warn("startup subsidy import")
			continue
		}
		logrus.WithFields(logrus.Fields{
			"path":     path,
			"imported": result.Imported,
			"skipped":  result.Skipped,
		}).Info("subsidies imported")
	}

	return server, nil
}

// Close releases the database handle.
func (s *Server) Close() error {
	return s.db.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	api := r.Group("/api")
	{
		api.GET("/regions", s.handleRegions)
		api.GET("/regions/:key", s.handleGetRegion)
		api.POST("/geo/match", s.handleGeoMatch)

		api.POST("/farms", s.handleSaveFarm)
		api.GET("/farms", s.handleListFarms)
		api.GET("/farms/:id", s.handleGetFarm)
		api.GET("/farms/:id/recommendations", s.handleFarmRecommendations)
		api.GET("/farms/:id/runs", s.handleListRuns)
		api.GET("/farms/:id/subsidies/:subsidyID/score", s.handleScoreSubsidy)

		api.GET("/subsidies", s.handleListSubsidies)
		api.GET("/subsidies/:id", s.handleGetSubsidy)
		api.POST("/subsidies/import", s.handleImport)

		api.POST("/recommendations", s.handleRecommend)
		api.GET("/recommendations/stream", s.handleStream)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	count, err := s.db.CountSubsidies()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	catalog := s.scorer.Matcher().Catalog()
	c.JSON(http.StatusOK, gin.H{
		"region_catalog_path": s.catalogPath,
		"scoring_rules_path":  s.rulesPath,
		"regions":             len(catalog.Regions),
		"departments":         len(catalog.Departments),
		"subsidies":           count,
		"categories":          scoring.Categories(),
	})
}

func (s *Server) handleRegions(c *gin.Context) {
	c.JSON(http.StatusOK, RegionsFromCatalog(s.scorer.Matcher().Catalog()))
}

func (s *Server) handleGetRegion(c *gin.Context) {
	catalog := s.scorer.Matcher().Catalog()
	key := strings.TrimSpace(c.Param("key"))
	region, ok := catalog.Region(key)
	if !ok {
		s.renderError(c, http.StatusNotFound, fmt.Errorf("region %s: %w", key, store.ErrNotFound))
		return
	}
	c.JSON(http.StatusOK, RegionFromDefinition(catalog, region))
}

func (s *Server) handleGeoMatch(c *gin.Context) {
	var req GeoMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, s.scorer.Matcher().CalculateMatch(req.FarmLocation, req.SubsidyRegions))
}

func (s *Server) handleSaveFarm(c *gin.Context) {
	var req FarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		req.ID = uuid.NewString()
	}
	if req.TotalHectares < 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("total_hectares must not be negative"))
		return
	}
	farm := store.FarmFromProfile(req.Name, req.FarmProfile)
	if err := s.db.SaveFarm(&farm); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	stored, err := s.db.GetFarm(farm.ID)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, FarmFromModel(*stored))
}

func (s *Server) handleListFarms(c *gin.Context) {
	offset, limit := pagination(c)
	rows, total, err := s.db.ListFarms(offset, limit)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]FarmDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, FarmFromModel(row))
	}
	c.JSON(http.StatusOK, FarmsResponse{Items: dtos, Total: total})
}

func (s *Server) handleGetFarm(c *gin.Context) {
	farm, ok := s.lookupFarm(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, FarmFromModel(*farm))
}

func (s *Server) handleListSubsidies(c *gin.Context) {
	offset, limit := pagination(c)
	rows, total, err := s.db.ListSubsidies(store.SubsidyQuery{
		Query:  c.Query("q"),
		Sector: c.Query("sector"),
		Agency: c.Query("agency"),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	now := s.now()
	dtos := make([]SubsidyDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, SubsidyFromModel(row, now))
	}
	c.JSON(http.StatusOK, SubsidiesResponse{Items: dtos, Total: total})
}

func (s *Server) handleGetSubsidy(c *gin.Context) {
	subsidy, ok := s.lookupSubsidy(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, SubsidyFromModel(*subsidy, s.now()))
}

func (s *Server) handleImport(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			s.renderError(c, http.StatusBadRequest, errors.New("subsidy file is required"))
		} else {
			s.renderError(c, http.StatusBadRequest, err)
		}
		return
	}
	format, err := ingest.FormatFromName(fileHeader.Filename)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	replace, _ := strconv.ParseBool(c.PostForm("replace"))

	src, err := fileHeader.Open()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	defer src.Close()

	result, err := s.importer.Load(c.Request.Context(), src, format, replace)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	total, err := s.db.CountSubsidies()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"file":     fileHeader.Filename,
		"imported": result.Imported,
		"skipped":  result.Skipped,
		"replace":  replace,
	}).Info("subsidies imported")
	s.notifier.Broadcast(RecommendationEvent{
		Type:     EventSubsidiesImported,
		Imported: result.Imported,
		Skipped:  result.Skipped,
		Message:  fmt.Sprintf("%d subsidies imported from %s", result.Imported, fileHeader.Filename),
	})

	c.JSON(http.StatusOK, ImportResponse{Imported: result.Imported, Skipped: result.Skipped, Total: total})
}

func (s *Server) handleStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("recommendation websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("recommendation websocket closed")
			} else {
				logrus.WithError(err).Warn("recommendation websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) lookupFarm(c *gin.Context) (*store.Farm, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("farm id required"))
		return nil, false
	}
	farm, err := s.db.GetFarm(id)
	if err != nil {
		s.renderLookupError(c, err)
		return nil, false
	}
	return farm, true
}

func (s *Server) lookupSubsidy(c *gin.Context, id string) (*store.Subsidy, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("subsidy id required"))
		return nil, false
	}
	subsidy, err := s.db.GetSubsidy(id)
	if err != nil {
		s.renderLookupError(c, err)
		return nil, false
	}
	return subsidy, true
}

func (s *Server) renderLookupError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.renderError(c, http.StatusNotFound, err)
		return
	}
	s.renderError(c, http.StatusInternalServerError, err)
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func pagination(c *gin.Context) (offset, limit int) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page * pageSize, pageSize
}
