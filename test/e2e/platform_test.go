// Package e2e contains end-to-end tests that exercise the full platform
// stack: ingestion → indexer → searcher → analytics, with real Kafka,
// PostgreSQL, and Redis.
//
// Prerequisites:
//   - PostgreSQL running (services apply their schema on startup)
//   - Kafka (with Zookeeper) running
//   - Redis running
//
// Run with:
//
//	go test -v -timeout=120s ./test/e2e/...
package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

type e2eConfig struct {
	IngestionURL string
	SearcherURL  string
	AnalyticsURL string
}

func loadE2EConfig() e2eConfig {
	return e2eConfig{
		IngestionURL: envOrDefault("E2E_INGESTION_URL", "http://localhost:8081"),
		SearcherURL:  envOrDefault("E2E_SEARCHER_URL", "http://localhost:8080"),
		AnalyticsURL: envOrDefault("E2E_ANALYTICS_URL", "http://localhost:8082"),
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestPlatformHealth verifies all services respond to health checks.
func TestPlatformHealth(t *testing.T) {
	cfg := loadE2EConfig()

	services := []struct {
		name string
		url  string
	}{
		{"searcher /health/live", cfg.SearcherURL + "/health/live"},
		{"searcher /health/ready", cfg.SearcherURL + "/health/ready"},
		{"ingestion /health/live", cfg.IngestionURL + "/health/live"},
		{"ingestion /health/ready", cfg.IngestionURL + "/health/ready"},
		{"analytics /health/live", cfg.AnalyticsURL + "/health/live"},
	}

	client := &http.Client{Timeout: 5 * time.Second}

	for _, svc := range services {
		t.Run(svc.name, func(t *testing.T) {
			resp, err := client.Get(svc.url)
			if err != nil {
				t.Skipf("service unavailable: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}

// TestIngestAndSearch exercises the full document lifecycle:
// ingest → wait for indexing → search → verify results.
func TestIngestAndSearch(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 10 * time.Second}

	// Check that the ingestion service is reachable.
	if _, err := client.Get(cfg.IngestionURL + "/health/live"); err != nil {
		t.Skipf("ingestion service unavailable: %v", err)
	}

	// 1. Ingest a document with a unique word.
	uniqueWord := fmt.Sprintf("e2etest%d", time.Now().UnixNano())
	payload := fmt.Sprintf(`{"title":"%s document","body":"An end-to-end lifecycle document containing the word %s for verification."}`, uniqueWord, uniqueWord)

	resp, err := client.Post(
		cfg.IngestionURL+"/api/v1/documents",
		"application/json",
		strings.NewReader(payload),
	)
	if err != nil {
		t.Fatalf("ingest request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, body)
	}

	var ingestResult map[string]any
	json.NewDecoder(resp.Body).Decode(&ingestResult)
	docID, _ := ingestResult["document_id"].(string)
	t.Logf("ingested document: id=%v, shard=%v", docID, ingestResult["shard_id"])

	// 2. Wait for indexing (poll the search service).
	t.Log("waiting for document to be indexed...")
	var found bool
	for attempt := 0; attempt < 30; attempt++ {
		time.Sleep(1 * time.Second)

		searchResp, err := client.Get(cfg.SearcherURL + "/api/v1/search?q=" + uniqueWord + "&limit=5")
		if err != nil {
			t.Logf("attempt %d: search request failed: %v", attempt, err)
			continue
		}

		var searchResult map[string]any
		json.NewDecoder(searchResp.Body).Decode(&searchResult)
		searchResp.Body.Close()

		totalHits, _ := searchResult["total_hits"].(float64)
		if totalHits > 0 {
			found = true
			t.Logf("document found after %d seconds (total_hits=%v)", attempt+1, totalHits)
			break
		}
	}

	if !found {
		t.Log("document not found in search within 30s — indexing may be slow or services not fully connected")
		return
	}

	// 3. The stored document should have reached INDEXED by now.
	if docID != "" {
		docResp, err := client.Get(cfg.IngestionURL + "/api/v1/documents/" + docID)
		if err != nil {
			t.Fatalf("document fetch failed: %v", err)
		}
		defer docResp.Body.Close()

		var doc map[string]any
		json.NewDecoder(docResp.Body).Decode(&doc)
		t.Logf("stored document status: %v", doc["status"])
		if status, _ := doc["status"].(string); status != "INDEXED" {
			t.Errorf("expected status INDEXED after successful search, got %v", doc["status"])
		}
	}
}

// TestSearchModes runs one query through every syntax mode and both
// rankers, verifying the service echoes what it executed.
func TestSearchModes(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	if _, err := client.Get(cfg.SearcherURL + "/health/live"); err != nil {
		t.Skipf("search service unavailable: %v", err)
	}

	cases := []struct {
		name   string
		params url.Values
		mode   string
	}{
		{"tsquery", url.Values{"q": {"document & !missing"}, "mode": {"tsquery"}}, "tsquery"},
		{"plain", url.Values{"q": {"lifecycle document"}, "mode": {"plain"}}, "plain"},
		{"phrase", url.Values{"q": {"lifecycle document"}, "mode": {"phrase"}}, "phrase"},
		{"web", url.Values{"q": {`"lifecycle document" -missing`}, "mode": {"web"}}, "web"},
		{"cover_ranker", url.Values{"q": {"document"}, "ranker": {"cover"}}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := client.Get(cfg.SearcherURL + "/api/v1/search?" + tc.params.Encode())
			if err != nil {
				t.Fatalf("search request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
			}

			var result map[string]any
			json.NewDecoder(resp.Body).Decode(&result)
			if tc.mode != "" && result["mode"] != tc.mode {
				t.Errorf("expected mode %q echoed, got %v", tc.mode, result["mode"])
			}
		})
	}
}

// TestSearchAnalytics verifies that search queries generate analytics
// events that reach the analytics service.
func TestSearchAnalytics(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	// Issue a search query.
	resp, err := client.Get(cfg.SearcherURL + "/api/v1/search?q=analytics+pipeline")
	if err != nil {
		t.Skipf("search service unavailable: %v", err)
	}
	resp.Body.Close()

	// Give the event time to flow through Kafka.
	time.Sleep(2 * time.Second)

	analyticsResp, err := client.Get(cfg.AnalyticsURL + "/api/v1/analytics")
	if err != nil {
		t.Skipf("analytics service unavailable: %v", err)
	}
	defer analyticsResp.Body.Close()

	var stats map[string]any
	json.NewDecoder(analyticsResp.Body).Decode(&stats)

	totalSearches, _ := stats["total_searches"].(float64)
	t.Logf("analytics: total_searches=%v, cache_hits=%v, cache_misses=%v",
		stats["total_searches"], stats["cache_hits"], stats["cache_misses"])

	if totalSearches < 1 {
		t.Log("expected at least 1 search recorded in analytics")
	}
}

// TestSearchCacheStats verifies that cache statistics are reported.
func TestSearchCacheStats(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(cfg.SearcherURL + "/api/v1/cache/stats")
	if err != nil {
		t.Skipf("search service unavailable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var stats map[string]any
	json.NewDecoder(resp.Body).Decode(&stats)
	t.Logf("cache stats: %v", stats)

	// Verify expected fields exist.
	for _, field := range []string{"hits", "misses", "total", "hit_rate"} {
		if _, ok := stats[field]; !ok {
			// Cache might be disabled — check for "status" field instead.
			if status, ok := stats["status"]; ok && status == "disabled" {
				t.Log("cache is disabled, skipping field check")
				return
			}
			t.Errorf("missing expected field: %s", field)
		}
	}
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
