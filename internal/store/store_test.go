// Package store provides integration tests for SurrealDB operations.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/optiview/optiview/internal/models"
)

var testStore *Store
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testStore, err = New(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testStore.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testStore.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

func testRun(project string) *models.CrawlRun {
	return &models.CrawlRun{
		Project:   project,
		SeedURL:   "https://example.com",
		StartedAt: time.Now().UTC().Truncate(time.Millisecond),
		IsActive:  true,
	}
}

func testPage(project, url string, depth int) models.CrawledPage {
	return models.CrawledPage{
		Project:    project,
		URL:        url,
		Title:      "Title of " + url,
		Status:     models.PageStatusSuccess,
		CrawledAt:  time.Now().UTC().Truncate(time.Millisecond),
		WordCount:  42,
		CrawlDepth: depth,
		Content:    "page body text",
	}
}

func TestCrawlRunLifecycle(t *testing.T) {
	ctx := context.Background()
	project := "run-lifecycle"

	created, err := testStore.CreateCrawlRun(ctx, testRun(project))
	if err != nil {
		t.Fatalf("CreateCrawlRun failed: %v", err)
	}
	if created.ID == nil {
		t.Fatal("created run should carry a record ID")
	}
	if !created.IsActive {
		t.Error("new run should be active")
	}

	pages := []models.CrawledPage{
		testPage(project, "https://example.com", 0),
		testPage(project, "https://example.com/docs", 1),
	}
	if err := testStore.CreatePages(ctx, created, pages); err != nil {
		t.Fatalf("CreatePages failed: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	created.CompletedAt = &now
	created.TotalPages = 2
	created.SuccessfulPages = 2
	if err := testStore.CompleteCrawlRun(ctx, created); err != nil {
		t.Fatalf("CompleteCrawlRun failed: %v", err)
	}

	latest, err := testStore.GetLatestRun(ctx, project)
	if err != nil {
		t.Fatalf("GetLatestRun failed: %v", err)
	}
	if latest.IsActive {
		t.Error("completed run should not be active")
	}
	if latest.TotalPages != 2 || latest.SuccessfulPages != 2 {
		t.Errorf("run counters not persisted: %+v", latest)
	}

	stored, err := testStore.GetPages(ctx, latest)
	if err != nil {
		t.Fatalf("GetPages failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("Expected 2 pages, got %d", len(stored))
	}
	if stored[0].URL != "https://example.com" {
		t.Errorf("pages should be ordered by crawl time, got %q first", stored[0].URL)
	}
}

func TestGetLatestRunPicksNewest(t *testing.T) {
	ctx := context.Background()
	project := "latest-run"

	older := testRun(project)
	older.StartedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	if _, err := testStore.CreateCrawlRun(ctx, older); err != nil {
		t.Fatalf("CreateCrawlRun (older) failed: %v", err)
	}

	newer := testRun(project)
	newer.SeedURL = "https://example.com/newer"
	if _, err := testStore.CreateCrawlRun(ctx, newer); err != nil {
		t.Fatalf("CreateCrawlRun (newer) failed: %v", err)
	}

	latest, err := testStore.GetLatestRun(ctx, project)
	if err != nil {
		t.Fatalf("GetLatestRun failed: %v", err)
	}
	if latest.SeedURL != "https://example.com/newer" {
		t.Errorf("Expected newest run, got seed %q", latest.SeedURL)
	}
}

func TestGetLatestRunNotFound(t *testing.T) {
	_, err := testStore.GetLatestRun(context.Background(), "never-crawled")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestReplaceAndGetChunks(t *testing.T) {
	ctx := context.Background()
	project := "chunk-swap"

	embedding := make([]float32, 8)
	for i := range embedding {
		embedding[i] = float32(i) / 8.0
	}

	firstGen := []models.Chunk{
		{ChunkID: "https://example.com#0", Project: project, PageURL: "https://example.com", Text: "old text", WordCount: 2, Position: 0, Embedding: embedding},
	}
	if err := testStore.ReplaceChunks(ctx, project, firstGen); err != nil {
		t.Fatalf("ReplaceChunks (first) failed: %v", err)
	}

	secondGen := []models.Chunk{
		{ChunkID: "https://example.com#0", Project: project, PageURL: "https://example.com", Text: "new text a", WordCount: 3, Position: 0, Embedding: embedding},
		{ChunkID: "https://example.com#1", Project: project, PageURL: "https://example.com", Text: "new text b", WordCount: 3, Position: 1, Embedding: embedding},
	}
	if err := testStore.ReplaceChunks(ctx, project, secondGen); err != nil {
		t.Fatalf("ReplaceChunks (second) failed: %v", err)
	}

	chunks, err := testStore.GetChunks(ctx, project)
	if err != nil {
		t.Fatalf("GetChunks failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks after replacement, got %d", len(chunks))
	}
	if chunks[0].Text != "new text a" {
		t.Errorf("Old chunk generation should be gone, got %q", chunks[0].Text)
	}
	if chunks[0].Position != 0 || chunks[1].Position != 1 {
		t.Error("Chunks should be ordered by position")
	}
	if len(chunks[0].Embedding) != 8 {
		t.Errorf("Embedding should round-trip, got %d dims", len(chunks[0].Embedding))
	}
}

func TestScanLifecycle(t *testing.T) {
	ctx := context.Background()
	project := "scan-lifecycle"

	scan := &models.Scan{
		ScanID:  "scan-test-1",
		Project: project,
		Status:  models.ScanStatusPending,
		Config: models.ScanConfig{
			QuerySource:     models.QuerySourceProvided,
			Queries:         []string{"what is optiview"},
			UseHybridSearch: true,
			MaxResults:      10,
		},
		StartedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	created, err := testStore.CreateScan(ctx, scan)
	if err != nil {
		t.Fatalf("CreateScan failed: %v", err)
	}
	if created.ScanID != "scan-test-1" {
		t.Errorf("ScanID mismatch: %q", created.ScanID)
	}

	if err := testStore.UpdateScanStatus(ctx, "scan-test-1", models.ScanStatusRunning); err != nil {
		t.Fatalf("UpdateScanStatus failed: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	created.Status = models.ScanStatusCompleted
	created.CompletedAt = &now
	created.Coverage = models.CoverageMetrics{
		HybridCoverage:   1.0,
		BM25Coverage:     1.0,
		VectorCoverage:   0.5,
		TotalQueries:     1,
		EvaluatedQueries: 1,
	}
	created.QueryResults = []models.QueryResult{
		{
			Query:   "what is optiview",
			Source:  models.QuerySourceProvided,
			Intent:  models.IntentInformational,
			MRR:     models.MRR{BM25: 1.0, Vector: 0.5},
			Overlap: 0.5,
			Covered: true,
		},
	}
	if err := testStore.CompleteScan(ctx, created); err != nil {
		t.Fatalf("CompleteScan failed: %v", err)
	}

	fetched, err := testStore.GetScan(ctx, project, "scan-test-1")
	if err != nil {
		t.Fatalf("GetScan failed: %v", err)
	}
	if fetched.Status != models.ScanStatusCompleted {
		t.Errorf("Expected completed status, got %q", fetched.Status)
	}
	if len(fetched.QueryResults) != 1 {
		t.Fatalf("Expected 1 query result, got %d", len(fetched.QueryResults))
	}
	if fetched.QueryResults[0].MRR.BM25 != 1.0 {
		t.Errorf("MRR should round-trip, got %v", fetched.QueryResults[0].MRR)
	}
	if fetched.Coverage.HybridCoverage != 1.0 {
		t.Errorf("Coverage should round-trip, got %v", fetched.Coverage.HybridCoverage)
	}

	scans, err := testStore.ListScans(ctx, project, 10)
	if err != nil {
		t.Fatalf("ListScans failed: %v", err)
	}
	if len(scans) != 1 {
		t.Errorf("Expected 1 scan in listing, got %d", len(scans))
	}
}

func TestGetScanNotFound(t *testing.T) {
	_, err := testStore.GetScan(context.Background(), "nope", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestActionPlanLifecycle(t *testing.T) {
	ctx := context.Background()
	project := "plan-lifecycle"

	p := &models.ActionPlan{
		Project:     project,
		ScanID:      "plan-scan-1",
		GeneratedAt: time.Now().UTC().Truncate(time.Millisecond),
		Phases: []models.ActionPhase{
			{
				Name: "Content gaps",
				Items: []models.ActionItem{
					{ID: "act-1", Description: "Cover the missing topic", Priority: models.PriorityHigh, Effort: models.EffortHigh, Pattern: "not_found", QueryCount: 3},
				},
			},
		},
	}

	if err := testStore.UpsertActionPlan(ctx, p); err != nil {
		t.Fatalf("UpsertActionPlan failed: %v", err)
	}

	fetched, err := testStore.GetActionPlan(ctx, project, "plan-scan-1")
	if err != nil {
		t.Fatalf("GetActionPlan failed: %v", err)
	}
	if len(fetched.Phases) != 1 || len(fetched.Phases[0].Items) != 1 {
		t.Fatalf("Plan structure should round-trip: %+v", fetched)
	}
	if fetched.Phases[0].Items[0].Completed {
		t.Error("New items should not be completed")
	}

	// Regeneration replaces the previous plan.
	p.Phases[0].Items[0].Description = "Reworded"
	if err := testStore.UpsertActionPlan(ctx, p); err != nil {
		t.Fatalf("UpsertActionPlan (second) failed: %v", err)
	}
	again, err := testStore.GetActionPlan(ctx, project, "plan-scan-1")
	if err != nil {
		t.Fatalf("GetActionPlan (second) failed: %v", err)
	}
	if again.Phases[0].Items[0].Description != "Reworded" {
		t.Error("Upsert should replace the previous plan")
	}

	// Toggle persists through UpdateActionItem.
	again.Phases[0].Items[0].Completed = true
	if err := testStore.UpdateActionItem(ctx, again); err != nil {
		t.Fatalf("UpdateActionItem failed: %v", err)
	}
	final, err := testStore.GetActionPlan(ctx, project, "plan-scan-1")
	if err != nil {
		t.Fatalf("GetActionPlan (final) failed: %v", err)
	}
	if !final.Phases[0].Items[0].Completed {
		t.Error("Completion toggle should persist")
	}
}
