package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optiview/optiview/internal/config"
	"github.com/optiview/optiview/internal/models"
	"github.com/optiview/optiview/internal/service"
	"github.com/optiview/optiview/internal/store"
)

// stubStore backs the API tests with canned scans and plans.
type stubStore struct {
	scans map[string]*models.Scan
	plans map[string]*models.ActionPlan
}

func newStubStore() *stubStore {
	return &stubStore{
		scans: make(map[string]*models.Scan),
		plans: make(map[string]*models.ActionPlan),
	}
}

func (s *stubStore) CreateCrawlRun(_ context.Context, run *models.CrawlRun) (*models.CrawlRun, error) {
	return run, nil
}
func (s *stubStore) CompleteCrawlRun(context.Context, *models.CrawlRun) error { return nil }
func (s *stubStore) CreatePages(context.Context, *models.CrawlRun, []models.CrawledPage) error {
	return nil
}
func (s *stubStore) GetLatestRun(context.Context, string) (*models.CrawlRun, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) GetPages(context.Context, *models.CrawlRun) ([]models.CrawledPage, error) {
	return nil, nil
}
func (s *stubStore) ReplaceChunks(context.Context, string, []models.Chunk) error { return nil }
func (s *stubStore) GetChunks(context.Context, string) ([]models.Chunk, error)   { return nil, nil }
func (s *stubStore) CreateScan(_ context.Context, sc *models.Scan) (*models.Scan, error) {
	s.scans[sc.ScanID] = sc
	return sc, nil
}
func (s *stubStore) UpdateScanStatus(context.Context, string, models.ScanStatus) error { return nil }
func (s *stubStore) CompleteScan(_ context.Context, sc *models.Scan) error {
	s.scans[sc.ScanID] = sc
	return nil
}
func (s *stubStore) GetScan(_ context.Context, _, scanID string) (*models.Scan, error) {
	sc, ok := s.scans[scanID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return sc, nil
}
func (s *stubStore) ListScans(_ context.Context, project string, _ int) ([]models.Scan, error) {
	var out []models.Scan
	for _, sc := range s.scans {
		if sc.Project == project {
			out = append(out, *sc)
		}
	}
	return out, nil
}
func (s *stubStore) UpsertActionPlan(_ context.Context, p *models.ActionPlan) error {
	s.plans[p.ScanID] = p
	return nil
}
func (s *stubStore) GetActionPlan(_ context.Context, _, scanID string) (*models.ActionPlan, error) {
	p, ok := s.plans[scanID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}
func (s *stubStore) UpdateActionItem(_ context.Context, p *models.ActionPlan) error {
	s.plans[p.ScanID] = p
	return nil
}

type nopEmbedder struct{}

func (nopEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

func testServer(st service.Store) (*Server, *service.Service) {
	cfg := config.Config{
		CrawlMaxPages:   10,
		CrawlMaxDepth:   2,
		ScanMaxResults:  10,
		ScanConcurrency: 2,
	}
	svc := service.New(cfg, st, nopEmbedder{}, nil, nil, nil)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(":0", svc, nil, logger), svc
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
	return e
}

func completedScan(scanID string) *models.Scan {
	now := time.Now()
	return &models.Scan{
		ScanID:  scanID,
		Project: "acme",
		Status:  models.ScanStatusCompleted,
		Config: models.ScanConfig{
			QuerySource:     models.QuerySourceProvided,
			Queries:         []string{"missing topic"},
			UseHybridSearch: true,
		},
		QueryResults: []models.QueryResult{
			{Query: "missing topic", MRR: models.MRR{}, Covered: false},
		},
		Coverage: models.CoverageMetrics{
			TotalQueries:     1,
			EvaluatedQueries: 1,
		},
		StartedAt:   now.Add(-time.Minute),
		CompletedAt: &now,
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := testServer(newStubStore())

	rec := doRequest(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)

	rec = doRequest(t, srv, http.MethodGet, "/api/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartCrawl_Validation(t *testing.T) {
	srv, _ := testServer(newStubStore())

	rec := doRequest(t, srv, http.MethodPost, "/api/projects/acme/crawl", "not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decodeError(t, rec).Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/projects/acme/crawl", `{"max_pages": 5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "seed_url")
}

func TestStartCrawl_AcceptedAndConflict(t *testing.T) {
	srv, svc := testServer(newStubStore())

	rec := doRequest(t, srv, http.MethodPost, "/api/projects/acme/crawl",
		`{"seed_url": "https://acme.invalid/"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var job struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&job))
	assert.NotEmpty(t, job.JobID)

	// A second crawl for the same project collides while the first job is
	// still pending or running.
	if svc.Jobs().Active("acme", service.JobTypeCrawl) {
		rec = doRequest(t, srv, http.MethodPost, "/api/projects/acme/crawl",
			`{"seed_url": "https://acme.invalid/"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "conflict", decodeError(t, rec).Code)
	}
}

func TestExecuteScan_NotReady(t *testing.T) {
	srv, _ := testServer(newStubStore())

	rec := doRequest(t, srv, http.MethodPost, "/api/projects/acme/scans",
		`{"query_source": "provided", "queries": ["anything"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "precondition", decodeError(t, rec).Code)
}

func TestBuildIndexes_NoPages(t *testing.T) {
	srv, _ := testServer(newStubStore())

	rec := doRequest(t, srv, http.MethodPost, "/api/projects/acme/indexes", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "precondition", decodeError(t, rec).Code)
}

func TestGetScan(t *testing.T) {
	st := newStubStore()
	st.scans["scan-1"] = completedScan("scan-1")
	srv, _ := testServer(st)

	rec := doRequest(t, srv, http.MethodGet, "/api/projects/acme/scans/scan-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var scan models.Scan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&scan))
	assert.Equal(t, "scan-1", scan.ScanID)
	assert.Equal(t, models.ScanStatusCompleted, scan.Status)

	rec = doRequest(t, srv, http.MethodGet, "/api/projects/acme/scans/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Code)
}

func TestListScans(t *testing.T) {
	st := newStubStore()
	srv, _ := testServer(st)

	// Empty history is an empty array, not null.
	rec := doRequest(t, srv, http.MethodGet, "/api/projects/acme/scans", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = doRequest(t, srv, http.MethodGet, "/api/projects/acme/scans?limit=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	st.scans["scan-1"] = completedScan("scan-1")
	rec = doRequest(t, srv, http.MethodGet, "/api/projects/acme/scans", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var scans []models.Scan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&scans))
	assert.Len(t, scans, 1)
}

func TestRecommendations(t *testing.T) {
	st := newStubStore()
	st.scans["scan-1"] = completedScan("scan-1")
	running := completedScan("scan-2")
	running.Status = models.ScanStatusRunning
	st.scans["scan-2"] = running
	srv, _ := testServer(st)

	rec := doRequest(t, srv, http.MethodGet, "/api/projects/acme/scans/scan-1/recommendations", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var recs []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "not_found", recs[0]["pattern"])

	// An unfinished scan cannot be analyzed yet.
	rec = doRequest(t, srv, http.MethodGet, "/api/projects/acme/scans/scan-2/recommendations", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "precondition", decodeError(t, rec).Code)
}

func TestPlanLifecycleOverHTTP(t *testing.T) {
	st := newStubStore()
	st.scans["scan-1"] = completedScan("scan-1")
	srv, _ := testServer(st)

	// No plan generated yet.
	rec := doRequest(t, srv, http.MethodGet, "/api/projects/acme/scans/scan-1/plan", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Generate.
	rec = doRequest(t, srv, http.MethodPost, "/api/projects/acme/scans/scan-1/plan", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var p models.ActionPlan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	require.NotEmpty(t, p.Phases)
	actionID := p.Phases[0].Items[0].ID

	// Fetch.
	rec = doRequest(t, srv, http.MethodGet, "/api/projects/acme/scans/scan-1/plan", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Toggle.
	rec = doRequest(t, srv, http.MethodPatch,
		"/api/projects/acme/scans/scan-1/plan/"+actionID, `{"completed": true}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	var toggled models.ActionPlan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&toggled))
	assert.True(t, toggled.Phases[0].Items[0].Completed)

	// Toggle an unknown action.
	rec = doRequest(t, srv, http.MethodPatch,
		"/api/projects/acme/scans/scan-1/plan/act-99", `{"completed": true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Code)
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := testServer(newStubStore())

	rec := doRequest(t, srv, http.MethodGet, "/api/projects/acme/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Project string `json:"project"`
		Indexes struct {
			BM25 string `json:"bm25"`
		} `json:"indexes"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "acme", status.Project)
	assert.Equal(t, "not_built", status.Indexes.BM25)
}
