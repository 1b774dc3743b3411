package cache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/caribe-weather/internal/protocol"
)

const keyPrefix = "latest_reading:"

// scanCount is the SCAN page size hint when listing station keys.
const scanCount = 100

// DefaultTTL drops a station from the cache when it stops reporting
const DefaultTTL = 24 * time.Hour

// LatestReadings keeps the most recent committed reading of every station in Redis
type LatestReadings struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewLatestReadings creates a latest-reading cache
func NewLatestReadings(redisClient *redis.Client, ttl time.Duration) *LatestReadings {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LatestReadings{redis: redisClient, ttl: ttl}
}

// Connect opens a Redis client and checks it answers
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// PublishReadings stores each reading under its station key, replacing older ones
func (c *LatestReadings) PublishReadings(ctx context.Context, readings []*protocol.ReadingMessage) error {
	if len(readings) == 0 {
		return nil
	}

	pipe := c.redis.Pipeline()
	for _, r := range newest(readings) {
		data, err := protocol.EncodeReadingMessage(r)
		if err != nil {
			return fmt.Errorf("failed to marshal reading: %w", err)
		}
		pipe.Set(ctx, stationKey(r.StationID), data, c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set readings in Redis: %w", err)
	}
	return nil
}

// All returns every cached reading ordered by station id
func (c *LatestReadings) All(ctx context.Context) ([]*protocol.ReadingMessage, error) {
	var keys []string
	iter := c.redis.Scan(ctx, 0, keyPrefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list cached readings: %w", err)
	}
	keys = stationKeys(keys)
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cached readings: %w", err)
	}

	return decodeAll(values), nil
}

func stationKey(stationID int) string {
	return keyPrefix + strconv.Itoa(stationID)
}

func stationFromKey(key string) (int, bool) {
	id, err := strconv.Atoi(strings.TrimPrefix(key, keyPrefix))
	if err != nil || !strings.HasPrefix(key, keyPrefix) {
		return 0, false
	}
	return id, true
}

func stationKeys(keys []string) []string {
	out := keys[:0]
	for _, k := range keys {
		if _, ok := stationFromKey(k); ok {
			out = append(out, k)
		}
	}
	return out
}

// newest keeps the latest reading per station, in input order of first appearance
func newest(readings []*protocol.ReadingMessage) []*protocol.ReadingMessage {
	index := make(map[int]int, len(readings))
	var out []*protocol.ReadingMessage
	for _, r := range readings {
		i, ok := index[r.StationID]
		if !ok {
			index[r.StationID] = len(out)
			out = append(out, r)
			continue
		}
		if !r.Timestamp.Before(out[i].Timestamp) {
			out[i] = r
		}
	}
	return out
}

// decodeAll skips expired (nil) and undecodable entries
func decodeAll(values []any) []*protocol.ReadingMessage {
	var out []*protocol.ReadingMessage
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		msg, err := protocol.DecodeReadingMessage([]byte(s))
		if err != nil {
			continue
		}
		out = append(out, msg)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StationID < out[j].StationID
	})
	return out
}
