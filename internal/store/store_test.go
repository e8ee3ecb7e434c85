package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/derickschaefer/challan/internal/model"
	"github.com/derickschaefer/challan/internal/store"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// testDB opens a fresh isolated database in t.TempDir().
// It is closed and deleted automatically when the test ends.
func testDB(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// reportBatch builds a report-count batch with n records.
func reportBatch(scope, key string, n int) store.Batch {
	recs := make([]model.RawRecord, n)
	for i := range recs {
		recs[i] = model.RawRecord{"date": "2025-01-0" + string(rune('1'+i)), "reports": float64(i + 1)}
	}
	return store.Batch{Scope: scope, Key: key, Kind: model.KindBuckets, Granularity: "week", Records: recs}
}

// geoBatch builds a geo batch with one district.
func geoBatch(scope, key string) store.Batch {
	return store.Batch{
		Scope: scope,
		Key:   key,
		Kind:  model.KindGeo,
		GeoStats: []model.RawGeoStat{{
			District: "Central",
			Hotspots: []model.RawRecord{{"lat": 12.9, "lng": 77.6, "violationCount": float64(3)}},
		}},
	}
}

const (
	key7d  = "relative|||7d|true"
	key30d = "relative|||30d|false"
)

// ─── Open / Path ──────────────────────────────────────────────────────────────

func TestOpenCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open with nested path: %v", err)
	}
	defer s.Close()
	if s.Path() != path {
		t.Errorf("Path: expected %q, got %q", path, s.Path())
	}
}

// ─── BatchKey ─────────────────────────────────────────────────────────────────

func TestBatchKey(t *testing.T) {
	if got := store.BatchKey("weekly", key7d); got != "scope:weekly|relative|||7d|true" {
		t.Errorf("got %q", got)
	}
}

// ─── Batches ──────────────────────────────────────────────────────────────────

func TestPutGetBatch(t *testing.T) {
	s := testDB(t)
	stored, err := s.PutBatch(reportBatch("weekly", key7d, 3))
	if err != nil {
		t.Fatalf("PutBatch: %v", err)
	}
	if stored.ID == "" || stored.FetchedAt.IsZero() {
		t.Errorf("PutBatch should stamp ID and FetchedAt: %+v", stored)
	}

	got, found, err := s.GetBatch(model.KindBuckets, "weekly", key7d)
	if err != nil || !found {
		t.Fatalf("GetBatch: found=%v err=%v", found, err)
	}
	if got.ID != stored.ID || len(got.Records) != 3 || got.Size() != 3 {
		t.Errorf("round trip: %+v", got)
	}
	if got.Records[2]["reports"] != float64(3) {
		t.Errorf("record payload: %v", got.Records[2])
	}
}

func TestGetBatchNotFound(t *testing.T) {
	s := testDB(t)
	_, found, err := s.GetBatch(model.KindGeo, "nope", key7d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected not found")
	}
}

func TestPutBatchReplacesSameRange(t *testing.T) {
	s := testDB(t)
	first, _ := s.PutBatch(reportBatch("weekly", key7d, 1))
	second, _ := s.PutBatch(reportBatch("weekly", key7d, 4))
	if first.ID == second.ID {
		t.Error("each put should get a fresh batch id")
	}
	batches, _ := s.ListBatches("weekly")
	if len(batches) != 1 || batches[0].ID != second.ID || len(batches[0].Records) != 4 {
		t.Errorf("expected single replaced batch, got %+v", batches)
	}
}

func TestPutBatchValidates(t *testing.T) {
	s := testDB(t)
	if _, err := s.PutBatch(store.Batch{Scope: "x", Kind: model.KindGeo}); err == nil {
		t.Error("missing key should fail")
	}
	if _, err := s.PutBatch(store.Batch{Scope: "x", Key: key7d, Kind: "pie"}); err == nil {
		t.Error("unknown kind should fail")
	}
}

func TestGeoBatchRoundTrip(t *testing.T) {
	s := testDB(t)
	if _, err := s.PutBatch(geoBatch("hotspots", key30d)); err != nil {
		t.Fatalf("PutBatch: %v", err)
	}
	got, found, err := s.GetBatch(model.KindGeo, "hotspots", key30d)
	if err != nil || !found {
		t.Fatalf("GetBatch: found=%v err=%v", found, err)
	}
	if len(got.GeoStats) != 1 || got.GeoStats[0].District != "Central" || len(got.GeoStats[0].Hotspots) != 1 {
		t.Errorf("geo payload: %+v", got.GeoStats)
	}
	// Same scope+key under the other kind is a different bucket.
	if _, found, _ := s.GetBatch(model.KindBuckets, "hotspots", key30d); found {
		t.Error("kinds should not share a bucket")
	}
}

// ─── ListBatches ──────────────────────────────────────────────────────────────

func TestListBatchesScopePrefixBoundary(t *testing.T) {
	s := testDB(t)
	_, _ = s.PutBatch(reportBatch("week", key7d, 1))
	_, _ = s.PutBatch(reportBatch("weekly", key7d, 1))
	_, _ = s.PutBatch(geoBatch("week", key30d))

	week, err := s.ListBatches("week")
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(week) != 2 {
		t.Errorf("scope week should not match weekly, got %d batches", len(week))
	}
	all, _ := s.ListBatches("")
	if len(all) != 3 {
		t.Errorf("all: expected 3, got %d", len(all))
	}
	if all[0].Scope != "week" || all[2].Scope != "weekly" {
		t.Errorf("expected scope ordering, got %s,%s,%s", all[0].Scope, all[1].Scope, all[2].Scope)
	}
}

func TestLatest(t *testing.T) {
	s := testDB(t)
	old := reportBatch("weekly", key30d, 1)
	old.FetchedAt = time.Now().Add(-time.Hour)
	_, _ = s.PutBatch(old)
	newer, _ := s.PutBatch(reportBatch("weekly", key7d, 2))

	got, found, err := s.Latest(model.KindBuckets, "weekly")
	if err != nil || !found {
		t.Fatalf("Latest: found=%v err=%v", found, err)
	}
	if got.ID != newer.ID {
		t.Errorf("expected newest batch %s, got %s", newer.ID, got.ID)
	}
	if _, found, _ := s.Latest(model.KindGeo, "weekly"); found {
		t.Error("no geo batch stored for weekly")
	}
}

func TestDeleteBatch(t *testing.T) {
	s := testDB(t)
	_, _ = s.PutBatch(reportBatch("weekly", key7d, 1))
	if err := s.DeleteBatch(model.KindBuckets, "weekly", key7d); err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	if _, found, _ := s.GetBatch(model.KindBuckets, "weekly", key7d); found {
		t.Error("batch should be gone")
	}
}

// ─── Stats ────────────────────────────────────────────────────────────────────

func TestStatsCountsRows(t *testing.T) {
	s := testDB(t)
	_, _ = s.PutBatch(reportBatch("a", key7d, 1))
	_, _ = s.PutBatch(reportBatch("b", key7d, 1))
	_, _ = s.PutBatch(geoBatch("c", key7d))

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	byName := make(map[string]int)
	for _, bs := range stats {
		byName[bs.Name] = bs.Count
	}
	if byName["reports"] != 2 || byName["geo"] != 1 {
		t.Errorf("stats: %v", byName)
	}
}

// ─── ClearBucket / ClearAll ───────────────────────────────────────────────────

func TestClearBucketLeavesOthersIntact(t *testing.T) {
	s := testDB(t)
	_, _ = s.PutBatch(reportBatch("a", key7d, 1))
	_, _ = s.PutBatch(geoBatch("a", key7d))

	if err := s.ClearBucket("reports"); err != nil {
		t.Fatalf("ClearBucket: %v", err)
	}
	batches, _ := s.ListBatches("a")
	if len(batches) != 1 || batches[0].Kind != model.KindGeo {
		t.Errorf("geo batch should survive clearing reports: %+v", batches)
	}
}

func TestClearAll(t *testing.T) {
	s := testDB(t)
	_, _ = s.PutBatch(reportBatch("a", key7d, 1))
	_, _ = s.PutBatch(geoBatch("b", key7d))
	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if all, _ := s.ListBatches(""); len(all) != 0 {
		t.Errorf("expected empty store, got %d batches", len(all))
	}
}

// ─── Isolation ────────────────────────────────────────────────────────────────

func TestEachTestGetsIsolatedDB(t *testing.T) {
	s1 := testDB(t)
	_, _ = s1.PutBatch(reportBatch("a", key7d, 1))

	s2 := testDB(t)
	_, found, err := s2.GetBatch(model.KindBuckets, "a", key7d)
	if err != nil {
		t.Fatalf("GetBatch on s2: %v", err)
	}
	if found {
		t.Error("s2 should not see data written to s1")
	}
}
