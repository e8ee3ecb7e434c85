package geoindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/derickschaefer/challan/internal/geo"
	"github.com/derickschaefer/challan/internal/model"
)

const (
	geoKeyFormat    = "challan_hotspots_v1:%s"
	memberKeyFormat = "challan_hotspot_v1:%s:%.5f,%.5f"
)

// ErrInvalidQuery is returned by Nearby for out-of-range centres and
// non-positive radii.
var ErrInvalidQuery = errors.New("invalid nearby query")

// Index stores hotspots per scope.
type Index struct {
	client Client
}

// New wraps client.
func New(client Client) *Index {
	return &Index{client: client}
}

// Put indexes hotspots under scope. Hotspots at the same rounded coordinate
// overwrite each other, matching geo.Normalize's merge. Hotspots with
// invalid coordinates are skipped. It returns the number stored.
func (ix *Index) Put(ctx context.Context, scope string, hotspots []model.NormalizedHotspot) (int, error) {
	geoKey := fmt.Sprintf(geoKeyFormat, scope)
	n := 0
	for _, h := range hotspots {
		if !geo.Valid(h.Latitude, h.Longitude) {
			continue
		}
		data, err := json.Marshal(h)
		if err != nil {
			return n, fmt.Errorf("encoding hotspot: %w", err)
		}
		member := fmt.Sprintf(memberKeyFormat, scope, h.Latitude, h.Longitude)
		if err := ix.client.AddLocation(ctx, geoKey, member, h.Latitude, h.Longitude, data); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Nearby returns hotspots in scope within radiusKm of lat,lng, nearest
// first. The result is never nil.
func (ix *Index) Nearby(ctx context.Context, scope string, lat, lng, radiusKm float64) ([]model.NormalizedHotspot, error) {
	if !geo.Valid(lat, lng) {
		return nil, fmt.Errorf("%w: invalid centre %v,%v", ErrInvalidQuery, lat, lng)
	}
	if radiusKm <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive, got %v", ErrInvalidQuery, radiusKm)
	}
	blobs, err := ix.client.WithinRadius(ctx, fmt.Sprintf(geoKeyFormat, scope), lat, lng, radiusKm)
	if err != nil {
		return nil, fmt.Errorf("nearby hotspots: %w", err)
	}
	out := make([]model.NormalizedHotspot, 0, len(blobs))
	for _, b := range blobs {
		var h model.NormalizedHotspot
		if err := json.Unmarshal(b, &h); err != nil {
			return nil, fmt.Errorf("decoding hotspot: %w", err)
		}
		out = append(out, h)
	}
	return out, nil
}

// Clear drops every hotspot of scope.
func (ix *Index) Clear(ctx context.Context, scope string) error {
	geoKey := fmt.Sprintf(geoKeyFormat, scope)
	members, err := ix.client.Members(ctx, geoKey)
	if err != nil {
		return fmt.Errorf("listing hotspots: %w", err)
	}
	return ix.client.Del(ctx, append(members, geoKey)...)
}

// Replace clears scope and indexes hotspots in its place, so hotspots from
// an earlier range do not linger.
func (ix *Index) Replace(ctx context.Context, scope string, hotspots []model.NormalizedHotspot) (int, error) {
	if err := ix.Clear(ctx, scope); err != nil {
		return 0, err
	}
	return ix.Put(ctx, scope, hotspots)
}
