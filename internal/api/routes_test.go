package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subsidy-match/backend/internal/match"
	"subsidy-match/backend/internal/scoring"
)

var fixedNow = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

const subsidiesCSV = `id,title,description,regions,sectors,amount_min,amount_max,amount_text,deadline,last_updated,agency
occ-1,Aide aux céréales,Soutien aux exploitations agricoles,Occitanie,céréales,1000,60000,jusqu'à 60 000 €,2026-10-26,2026-06-01,Région Occitanie
bzh-1,Aide bretonne,Modernisation des élevages,Bretagne,élevage,,20000,,,2026-06-01,Région Bretagne
`

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	server, err := NewServer(Config{
		DBPath:   filepath.Join(t.TempDir(), "api.db"),
		SilentDB: true,
		Now:      func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	router, err := server.Router()
	require.NoError(t, err)
	return server, router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func uploadSubsidies(t *testing.T, router http.Handler, filename, content string, replace bool) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	if replace {
		require.NoError(t, writer.WriteField("replace", "true"))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/subsidies/import", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createFarm(t *testing.T, router http.Handler) FarmDTO {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/farms", FarmRequest{
		Name: "EARL des Coteaux",
		FarmProfile: scoring.FarmProfile{
			ID:            "farm-gers",
			Department:    "Gers",
			LandUseTypes:  []string{"céréales"},
			TotalHectares: 120,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var farm FarmDTO
	decode(t, rec, &farm)
	return farm
}

func TestHealthAndConfig(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg map[string]interface{}
	decode(t, rec, &cfg)
	assert.EqualValues(t, 18, cfg["regions"])
	assert.EqualValues(t, 101, cfg["departments"])
	assert.EqualValues(t, 0, cfg["subsidies"])
}

func TestRegionsListing(t *testing.T) {
	_, router := newTestServer(t)
	rec := doJSON(t, router, http.MethodGet, "/api/regions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RegionsResponse
	decode(t, rec, &resp)
	require.Len(t, resp.Regions, len(match.DefaultCatalog().Regions))
	for _, region := range resp.Regions {
		assert.NotEmpty(t, region.Name)
		assert.NotEmpty(t, region.Departments, region.Key)
	}
}

func TestRegionByKey(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/regions/occitanie", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var region RegionDTO
	decode(t, rec, &region)
	assert.Equal(t, "Occitanie", region.Name)
	assert.Contains(t, region.Departments, "Gers")

	rec = doJSON(t, router, http.MethodGet, "/api/regions/atlantide", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGeoMatchEndpoint(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/geo/match", GeoMatchRequest{
		FarmLocation:   "Gers",
		SubsidyRegions: []string{"Occitanie"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var geo match.GeographicMatch
	decode(t, rec, &geo)
	assert.True(t, geo.Matches)
	assert.Equal(t, match.MatchParent, geo.MatchType)

	rec = doJSON(t, router, http.MethodPost, "/api/geo/match", GeoMatchRequest{FarmLocation: "Bretagne"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &geo)
	assert.False(t, geo.Matches)
	assert.NotEmpty(t, geo.Blocker)

	req := httptest.NewRequest(http.MethodPost, "/api/geo/match", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	bad := httptest.NewRecorder()
	router.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestFarmEndpoints(t *testing.T) {
	_, router := newTestServer(t)
	farm := createFarm(t, router)
	assert.Equal(t, "farm-gers", farm.ID)
	assert.Equal(t, "EARL des Coteaux", farm.Name)

	rec := doJSON(t, router, http.MethodGet, "/api/farms/farm-gers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got FarmDTO
	decode(t, rec, &got)
	assert.Equal(t, "Gers", got.Department)
	assert.Equal(t, []string{"céréales"}, got.LandUseTypes)

	rec = doJSON(t, router, http.MethodGet, "/api/farms", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list FarmsResponse
	decode(t, rec, &list)
	assert.Equal(t, int64(1), list.Total)

	rec = doJSON(t, router, http.MethodGet, "/api/farms/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/farms", FarmRequest{Name: "Sans id"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &got)
	assert.NotEmpty(t, got.ID)

	rec = doJSON(t, router, http.MethodPost, "/api/farms", FarmRequest{
		FarmProfile: scoring.FarmProfile{TotalHectares: -1},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportAndListSubsidies(t *testing.T) {
	server, router := newTestServer(t)

	rec := uploadSubsidies(t, router, "subsidies.csv", subsidiesCSV, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var imported ImportResponse
	decode(t, rec, &imported)
	assert.Equal(t, ImportResponse{Imported: 2, Skipped: 0, Total: 2}, imported)

	status := server.notifier.LastStatus()
	require.NotNil(t, status)
	assert.Equal(t, EventSubsidiesImported, status.Type)

	rec = doJSON(t, router, http.MethodGet, "/api/subsidies?sector=c%C3%A9r%C3%A9ales", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list SubsidiesResponse
	decode(t, rec, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "occ-1", list.Items[0].ID)
	require.NotNil(t, list.Items[0].Deadline.DaysRemaining)
	assert.Equal(t, 10, *list.Items[0].Deadline.DaysRemaining)

	rec = doJSON(t, router, http.MethodGet, "/api/subsidies/bzh-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var subsidy SubsidyDTO
	decode(t, rec, &subsidy)
	assert.Equal(t, []string{"Bretagne"}, subsidy.Regions)
	assert.NotEmpty(t, subsidy.EstimatedMax)

	rec = doJSON(t, router, http.MethodGet, "/api/subsidies/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = uploadSubsidies(t, router, "subsidies.txt", subsidiesCSV, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = uploadSubsidies(t, router, "replace.json", `[{"id":"nat-1","title":"Plan national","regions":["France"]}]`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &imported)
	assert.Equal(t, int64(1), imported.Total)
}

func TestScoreSubsidyForFarm(t *testing.T) {
	_, router := newTestServer(t)
	createFarm(t, router)
	require.Equal(t, http.StatusOK, uploadSubsidies(t, router, "subsidies.csv", subsidiesCSV, false).Code)

	rec := doJSON(t, router, http.MethodGet, "/api/farms/farm-gers/subsidies/occ-1/score", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var score scoring.RecommendationScore
	decode(t, rec, &score)
	assert.Equal(t, "occ-1", score.SubsidyID)
	assert.Contains(t, score.Reasons, "department Gers belongs to region Occitanie")
	assert.Contains(t, score.Reasons, "matching activities: céréales")
	assert.Equal(t, scoring.CategoryExpiringSoon, score.Category)

	rec = doJSON(t, router, http.MethodGet, "/api/farms/farm-gers/subsidies/bzh-1/score", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &score)
	assert.NotEmpty(t, score.Blockers)

	rec = doJSON(t, router, http.MethodGet, "/api/farms/farm-gers/subsidies/missing/score", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFarmRecommendationsPersistRun(t *testing.T) {
	server, router := newTestServer(t)
	createFarm(t, router)
	require.Equal(t, http.StatusOK, uploadSubsidies(t, router, "subsidies.csv", subsidiesCSV, false).Code)

	rec := doJSON(t, router, http.MethodGet, "/api/farms/farm-gers/recommendations", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp RecommendationsResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, 2, resp.Scored)
	assert.Equal(t, 2, resp.Total())
	require.Len(t, resp.ExpiringSoon, 1)
	assert.Equal(t, "occ-1", resp.ExpiringSoon[0].SubsidyID)
	assert.NotNil(t, resp.QuickWins)

	status := server.notifier.LastStatus()
	require.NotNil(t, status)
	assert.Equal(t, EventRecommendationsGenerated, status.Type)
	assert.Equal(t, "farm-gers", status.FarmID)
	require.NotNil(t, status.Run)
	assert.Equal(t, resp.RunID, status.Run.ID)

	rec = doJSON(t, router, http.MethodGet, "/api/farms/farm-gers/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var runs RunsResponse
	decode(t, rec, &runs)
	require.Len(t, runs.Items, 1)
	assert.Equal(t, 2, runs.Items[0].Scored)
	assert.Equal(t, 1, runs.Items[0].ExpiringSoon)
}

func TestInlineRecommendations(t *testing.T) {
	server, router := newTestServer(t)
	require.Equal(t, http.StatusOK, uploadSubsidies(t, router, "subsidies.csv", subsidiesCSV, false).Code)

	rec := doJSON(t, router, http.MethodPost, "/api/recommendations", scoring.FarmProfile{
		ID:            "farm-inline",
		Region:        "Bretagne",
		LandUseTypes:  []string{"élevage"},
		TotalHectares: 40,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp RecommendationsResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, 2, resp.Scored)

	status := server.notifier.LastStatus()
	require.NotNil(t, status)
	assert.Equal(t, EventRecommendationsGenerated, status.Type)
	require.NotNil(t, status.Run)
	assert.Equal(t, resp.RunID, status.Run.ID)

	runs, err := server.db.ListRecommendationRuns("farm-inline", 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Scored)

	rec = doJSON(t, router, http.MethodPost, "/api/recommendations", scoring.FarmProfile{TotalHectares: -5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecommendationStreamReplaysLastEvent(t *testing.T) {
	server, router := newTestServer(t)
	require.Equal(t, http.StatusOK, uploadSubsidies(t, router, "subsidies.csv", subsidiesCSV, false).Code)

	httpServer := httptest.NewServer(router)
	defer httpServer.Close()

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/api/recommendations/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event RecommendationEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, EventSubsidiesImported, event.Type)
	assert.Equal(t, 2, event.Imported)

	require.Eventually(t, func() bool { return server.notifier.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	server.notifier.Broadcast(RecommendationEvent{Type: EventRecommendationsGenerated, FarmID: "farm-x"})
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, EventRecommendationsGenerated, event.Type)
	assert.Equal(t, "farm-x", event.FarmID)
}
