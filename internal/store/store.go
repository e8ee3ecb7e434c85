// Package store provides a thin bbolt wrapper for challan's local data store.
//
// The store accumulates fetched batches so bucketing and geo commands can be
// re-run offline. Batches are written explicitly by fetch and keyed by chart
// scope plus the range memo key, so refetching the same effective range
// replaces the previous batch instead of duplicating it. No TTL.
//
// Buckets:
//
//	reports: raw dated report-count batches
//	geo:     raw geo stat batches
//	_meta:   internal: schema version, created_at
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/derickschaefer/challan/internal/model"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// Bucket name constants.
var (
	bucketReports  = []byte("reports")
	bucketGeo      = []byte("geo")
	bucketInternal = []byte("_meta")
)

// AllBuckets lists every top-level bucket for stats and clear operations.
var AllBuckets = []string{"reports", "geo"}

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketReports, bucketGeo, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── Batches ──────────────────────────────────────────────────────────────────

// Batch is one fetch result for a chart scope. Kind is model.KindBuckets
// (Records set) or model.KindGeo (GeoStats set).
type Batch struct {
	ID          string             `json:"id"`
	Scope       string             `json:"scope"`
	Key         string             `json:"key"`
	Kind        string             `json:"kind"`
	Granularity string             `json:"granularity,omitempty"`
	Window      model.Window       `json:"window"`
	FetchedAt   time.Time          `json:"fetched_at"`
	Records     []model.RawRecord  `json:"records,omitempty"`
	GeoStats    []model.RawGeoStat `json:"geo_stats,omitempty"`
}

// Size is the number of raw items the batch carries.
func (b Batch) Size() int {
	if b.Kind == model.KindGeo {
		return len(b.GeoStats)
	}
	return len(b.Records)
}

// BatchKey builds the canonical key scope:<scope>|<memo key>.
func BatchKey(scope, memoKey string) string {
	return "scope:" + scope + "|" + memoKey
}

func bucketFor(kind string) ([]byte, error) {
	switch kind {
	case model.KindBuckets:
		return bucketReports, nil
	case model.KindGeo:
		return bucketGeo, nil
	}
	return nil, fmt.Errorf("unknown batch kind %q", kind)
}

// PutBatch stores b under BatchKey(b.Scope, b.Key), replacing any previous
// batch for the same scope and range. A missing ID is filled with a new
// UUID; FetchedAt is stamped when zero. The stored batch is returned.
func (s *Store) PutBatch(b Batch) (Batch, error) {
	if b.Scope == "" || b.Key == "" {
		return b, fmt.Errorf("batch needs a scope and a key")
	}
	bname, err := bucketFor(b.Kind)
	if err != nil {
		return b, err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.FetchedAt.IsZero() {
		b.FetchedAt = time.Now().UTC()
	}
	data, err := json.Marshal(b)
	if err != nil {
		return b, fmt.Errorf("encoding batch: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bname).Put([]byte(BatchKey(b.Scope, b.Key)), data)
	})
	return b, err
}

// GetBatch retrieves a batch by kind, scope and memo key.
// Returns (batch, true, nil) if found, (zero, false, nil) if not found.
func (s *Store) GetBatch(kind, scope, memoKey string) (Batch, bool, error) {
	bname, err := bucketFor(kind)
	if err != nil {
		return Batch{}, false, err
	}
	var b Batch
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bname).Get([]byte(BatchKey(scope, memoKey)))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &b)
	})
	if err != nil {
		return Batch{}, false, err
	}
	return b, b.ID != "", nil
}

// Latest returns the most recently fetched batch of kind for scope.
func (s *Store) Latest(kind, scope string) (Batch, bool, error) {
	batches, err := s.ListBatches(scope)
	if err != nil {
		return Batch{}, false, err
	}
	var best Batch
	found := false
	for _, b := range batches {
		if b.Kind != kind {
			continue
		}
		if !found || b.FetchedAt.After(best.FetchedAt) {
			best, found = b, true
		}
	}
	return best, found, nil
}

// ListBatches returns stored batches for scope, or all batches when scope
// is empty, sorted by scope then fetch time.
func (s *Store) ListBatches(scope string) ([]Batch, error) {
	prefix := []byte("scope:")
	if scope != "" {
		prefix = []byte("scope:" + scope + "|")
	}
	var out []Batch
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, bname := range [][]byte{bucketReports, bucketGeo} {
			c := tx.Bucket(bname).Cursor()
			for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
				var b Batch
				if err := json.Unmarshal(v, &b); err != nil {
					return fmt.Errorf("decoding batch %s: %w", k, err)
				}
				out = append(out, b)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		return out[i].FetchedAt.Before(out[j].FetchedAt)
	})
	return out, err
}

// DeleteBatch removes one batch.
func (s *Store) DeleteBatch(kind, scope, memoKey string) error {
	bname, err := bucketFor(kind)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bname).Delete([]byte(BatchKey(scope, memoKey)))
	})
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string
	Count int
	Bytes int64
}

// Stats returns row counts and approximate sizes for all buckets, in
// AllBuckets order.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			var count int
			var bytes int64
			b.ForEach(func(k, v []byte) error {
				count++
				bytes += int64(len(k) + len(v))
				return nil
			})
			stats = append(stats, BucketStats{Name: name, Count: count, Bytes: bytes})
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket.
func (s *Store) ClearAll() error {
	for _, name := range AllBuckets {
		if err := s.ClearBucket(name); err != nil {
			return err
		}
	}
	return nil
}
