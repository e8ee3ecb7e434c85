// Package geoindex keeps normalized hotspots in a Redis GEO set per chart
// scope so the dashboard can ask for hotspots near a point without
// renormalizing a whole batch.
package geoindex

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

// Client is the subset of Redis the index needs. RedisClient talks to a real
// server; MemoryClient backs tests and runs without Redis.
type Client interface {
	AddLocation(ctx context.Context, geoKey, member string, lat, lng float64, data []byte) error
	WithinRadius(ctx context.Context, geoKey string, lat, lng, radiusKm float64) ([][]byte, error)
	Members(ctx context.Context, geoKey string) ([]string, error)
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// RedisClient adapts go-redis to Client.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient connects to addr. The connection is checked lazily; call
// Ping to fail fast.
func NewRedisClient(addr, password string, db int) *RedisClient {
	return &RedisClient{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Close releases the connection pool.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Ping checks the connection.
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// AddLocation stores member in the GEO set and its JSON payload under the
// member key.
func (r *RedisClient) AddLocation(ctx context.Context, geoKey, member string, lat, lng float64, data []byte) error {
	if err := r.client.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      member,
		Latitude:  lat,
		Longitude: lng,
	}).Err(); err != nil {
		return fmt.Errorf("geoadd %s: %w", member, err)
	}
	if err := r.client.Set(ctx, member, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", member, err)
	}
	return nil
}

// WithinRadius returns payloads of members within radiusKm, nearest first.
// Members whose payload is missing are skipped.
func (r *RedisClient) WithinRadius(ctx context.Context, geoKey string, lat, lng, radiusKm float64) ([][]byte, error) {
	locs, err := r.client.GeoRadius(ctx, geoKey, lng, lat, &redis.GeoRadiusQuery{
		Radius: radiusKm,
		Unit:   "km",
		Sort:   "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("georadius %s: %w", geoKey, err)
	}
	out := make([][]byte, 0, len(locs))
	for _, loc := range locs {
		data, err := r.client.Get(ctx, loc.Name).Bytes()
		if err != nil {
			slog.Debug("geoindex: skipping member without payload", "member", loc.Name, "err", err)
			continue
		}
		out = append(out, data)
	}
	return out, nil
}

// Members lists every member of the GEO set.
func (r *RedisClient) Members(ctx context.Context, geoKey string) ([]string, error) {
	return r.client.ZRange(ctx, geoKey, 0, -1).Result()
}

// Del removes keys.
func (r *RedisClient) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
