package geoindex

import (
	"context"
	"math"
	"sort"
	"sync"
)

const earthRadiusKm = 6371.0

type memoryLoc struct {
	lat, lng float64
}

// MemoryClient is an in-process Client with GEO radius semantics.
type MemoryClient struct {
	mu    sync.Mutex
	sets  map[string]map[string]memoryLoc
	blobs map[string][]byte
}

// NewMemoryClient returns an empty MemoryClient.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		sets:  make(map[string]map[string]memoryLoc),
		blobs: make(map[string][]byte),
	}
}

func (m *MemoryClient) Ping(context.Context) error { return nil }

func (m *MemoryClient) AddLocation(_ context.Context, geoKey, member string, lat, lng float64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[geoKey]
	if !ok {
		set = make(map[string]memoryLoc)
		m.sets[geoKey] = set
	}
	set[member] = memoryLoc{lat: lat, lng: lng}
	m.blobs[member] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryClient) WithinRadius(_ context.Context, geoKey string, lat, lng, radiusKm float64) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type hit struct {
		member string
		dist   float64
	}
	var hits []hit
	for member, loc := range m.sets[geoKey] {
		if d := haversineKm(lat, lng, loc.lat, loc.lng); d <= radiusKm {
			hits = append(hits, hit{member, d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].member < hits[j].member
	})
	out := make([][]byte, 0, len(hits))
	for _, h := range hits {
		if data, ok := m.blobs[h.member]; ok {
			out = append(out, data)
		}
	}
	return out, nil
}

func (m *MemoryClient) Members(_ context.Context, geoKey string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sets[geoKey]))
	for member := range m.sets[geoKey] {
		out = append(out, member)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryClient) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.sets, k)
		delete(m.blobs, k)
	}
	return nil
}

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
