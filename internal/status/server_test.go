package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/landplan/internal/core/domain"
	"github.com/vietddude/landplan/internal/infra/ratelimit"
	"github.com/vietddude/landplan/internal/infra/storage/memory"
)

type staticLimits map[domain.ResourceName]ratelimit.Status

func (s staticLimits) Snapshot() map[domain.ResourceName]ratelimit.Status { return s }

type brokenRepo struct{}

func (brokenRepo) Add(ctx context.Context, fc *domain.FailedCall) error { return nil }

func (brokenRepo) Recent(ctx context.Context, limit int) ([]*domain.FailedCall, error) {
	return nil, errors.New("connection refused")
}

func newTestServer(t *testing.T) (*httptest.Server, *memory.FailedCallRepo) {
	t.Helper()
	limits := staticLimits{
		domain.ResourceTextGeneration:  {Available: 8, Capacity: 10},
		domain.ResourceImageGeneration: {Available: 0, Capacity: 5, WaitTime: 12 * time.Second},
	}
	repo := memory.NewFailedCallRepo(10)
	ts := httptest.NewServer(NewServer(limits, repo, 0).Handler())
	t.Cleanup(ts.Close)
	return ts, repo
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/ratelimit")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]struct {
		Available  int   `json:"available"`
		Capacity   int   `json:"capacity"`
		WaitTimeMs int64 `json:"wait_time_ms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	text := body["text-generation"]
	if text.Available != 8 || text.Capacity != 10 {
		t.Errorf("text-generation = %+v", text)
	}
	if img := body["image-generation"]; img.WaitTimeMs != 12000 {
		t.Errorf("image wait = %dms, want 12000", img.WaitTimeMs)
	}
}

func TestFailures(t *testing.T) {
	ts, repo := newTestServer(t)
	for _, id := range []string{"a", "b", "c"} {
		_ = repo.Add(context.Background(), &domain.FailedCall{ID: id, Code: "503"})
	}

	resp, err := http.Get(ts.URL + "/failures?limit=2")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var calls []domain.FailedCall
	if err := json.NewDecoder(resp.Body).Decode(&calls); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(calls) != 2 || calls[0].ID != "c" {
		t.Errorf("expected newest two starting with c, got %+v", calls)
	}
}

func TestFailures_BadLimit(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/failures?limit=abc")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestFailures_RepoError(t *testing.T) {
	ts := httptest.NewServer(NewServer(staticLimits{}, brokenRepo{}, 0).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/failures")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestMetrics(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
