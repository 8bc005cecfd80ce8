package stores

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/provisio/provisio/pkg/resolver"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return store
}

func sampleResolution(id string) *Resolution {
	now := time.Now()
	return &Resolution{
		ID:         id,
		Root:       "file:/repo/features.xml",
		Requested:  `["core","http"]`,
		Status:     ResolutionStatusPending,
		Directives: "[]",
		Warnings:   "[]",
		StartedAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Fatal("expected an error for a missing database path")
	}
}

func TestResolutionCRUD(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	res := sampleResolution("run-1")

	if err := store.CreateResolution(ctx, res); err != nil {
		t.Fatalf("failed to create resolution: %v", err)
	}

	got, err := store.GetResolution(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to get resolution: %v", err)
	}
	if got.Root != res.Root || got.Requested != res.Requested || got.Status != ResolutionStatusPending {
		t.Errorf("unexpected resolution: %+v", got)
	}

	if err := store.DeleteResolution(ctx, "run-1"); err != nil {
		t.Fatalf("failed to delete resolution: %v", err)
	}

	if _, err := store.GetResolution(ctx, "run-1"); err == nil {
		t.Error("expected an error for a deleted resolution")
	}
}

func TestUpdateResolutionStatus(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateResolution(ctx, sampleResolution("run-1")); err != nil {
		t.Fatalf("failed to create resolution: %v", err)
	}

	if err := store.UpdateResolutionStatus(ctx, "run-1", ResolutionStatusRunning, nil); err != nil {
		t.Fatalf("failed to update status: %v", err)
	}
	got, err := store.GetResolution(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != ResolutionStatusRunning {
		t.Errorf("expected running, got %s", got.Status)
	}
	if got.CompletedAt != nil {
		t.Error("running resolution must not have a completion timestamp")
	}

	errMsg := "root repository unreachable"
	if err := store.UpdateResolutionStatus(ctx, "run-1", ResolutionStatusFailed, &errMsg); err != nil {
		t.Fatalf("failed to update status: %v", err)
	}
	got, err = store.GetResolution(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != ResolutionStatusFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
	if got.Error == nil || *got.Error != errMsg {
		t.Errorf("expected error message %q, got %v", errMsg, got.Error)
	}
	if got.CompletedAt == nil {
		t.Error("failed resolution must have a completion timestamp")
	}
}

func TestUpdateResolutionStatusNotFound(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	err := store.UpdateResolutionStatus(context.Background(), "missing", ResolutionStatusCompleted, nil)
	if err == nil {
		t.Fatal("expected an error for an unknown resolution")
	}
}

func TestListResolutions(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Now()
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		res := sampleResolution(id)
		res.StartedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.CreateResolution(ctx, res); err != nil {
			t.Fatalf("failed to create resolution %s: %v", id, err)
		}
	}

	listed, err := store.ListResolutions(ctx, 10, 0)
	if err != nil {
		t.Fatalf("failed to list resolutions: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 resolutions, got %d", len(listed))
	}
	// Newest first.
	if listed[0].ID != "run-c" || listed[2].ID != "run-a" {
		t.Errorf("unexpected order: %s, %s, %s", listed[0].ID, listed[1].ID, listed[2].ID)
	}

	page, err := store.ListResolutions(ctx, 1, 1)
	if err != nil {
		t.Fatalf("failed to list page: %v", err)
	}
	if len(page) != 1 || page[0].ID != "run-b" {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestRecordResult(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	result := &resolver.Result{
		RunID:     "run-1",
		Root:      "file:/repo/features.xml",
		Requested: []string{"core"},
		Directives: []resolver.Directive{
			{
				Kind:   resolver.DirectiveInstallBundle,
				Bundle: &resolver.BundleDirective{URI: "uri:a", StartLevel: 60, Start: true},
			},
		},
		Warnings: []resolver.Warning{
			{Code: resolver.WarnNoWorkDir, Message: "skipped"},
		},
		FeaturesResolved: 1,
		StartedAt:        time.Now().Add(-time.Second),
		Duration:         time.Second,
	}

	if err := RecordResult(ctx, store, result); err != nil {
		t.Fatalf("failed to record result: %v", err)
	}

	got, err := store.GetResolution(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to get recorded resolution: %v", err)
	}
	if got.Status != ResolutionStatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("recorded resolution must have a completion timestamp")
	}
	if got.FeaturesResolved != 1 {
		t.Errorf("expected 1 resolved feature, got %d", got.FeaturesResolved)
	}

	var directives []resolver.Directive
	if err := json.Unmarshal([]byte(got.Directives), &directives); err != nil {
		t.Fatalf("stored directives are not valid JSON: %v", err)
	}
	if len(directives) != 1 || directives[0].Bundle.URI != "uri:a" {
		t.Errorf("unexpected stored directives: %+v", directives)
	}

	var requested []string
	if err := json.Unmarshal([]byte(got.Requested), &requested); err != nil {
		t.Fatalf("stored request is not valid JSON: %v", err)
	}
	if len(requested) != 1 || requested[0] != "core" {
		t.Errorf("unexpected stored request: %v", requested)
	}
}
