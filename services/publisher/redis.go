package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"sjsage522/menuscout/logger"

	"github.com/redis/go-redis/v9"
)

// RecordsField is the stream entry field holding the base64 JSON records
const RecordsField = "b64_records"

// RedisPublisher implements Publisher using Redis streams
type RedisPublisher struct {
	client          *redis.Client
	stream          string
	streamMaxLength int
	log             *logger.Logger
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(addr, password string, db int, stream string, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisPublisher{
		client:          client,
		stream:          stream,
		streamMaxLength: streamMaxLength,
		log:             logger.ForPublisher(),
	}
}

// Ping checks the connection
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Publish adds one stream entry for the run. The records are JSON encoded
// and then base64 encoded; the stream is trimmed to its maximum length.
func (p *RedisPublisher) Publish(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"search_term": records[0].SearchTerm,
			"count":       strconv.Itoa(len(records)),
			RecordsField:  base64.StdEncoding.EncodeToString(payload),
		},
	}
	if p.streamMaxLength > 0 {
		args.MaxLen = int64(p.streamMaxLength)
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	p.log.Info().Str("stream", p.stream).Str("id", id).Int("records", len(records)).Msg("Results published")
	return nil
}

// TrimStream trims the stream to the configured maximum length
func (p *RedisPublisher) TrimStream(ctx context.Context) error {
	if p.streamMaxLength <= 0 {
		return nil
	}
	return p.client.XTrimMaxLen(ctx, p.stream, int64(p.streamMaxLength)).Err()
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// DecodeRecords reverses the encoding of a stream entry's records field
func DecodeRecords(field string) ([]Record, error) {
	raw, err := base64.StdEncoding.DecodeString(field)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}
