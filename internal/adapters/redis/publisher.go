// Package redis publishes scan lifecycle events to a Redis stream.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"inclusiv/internal/ports"
)

const (
	// StreamName is where scan.completed envelopes are appended.
	StreamName = "inclusiv:scans"

	EventScanCompleted = "scan.completed"

	connectionTimeout = 5 * time.Second
	// streamMaxLen is an approximate cap on retained events.
	streamMaxLen = 10000
)

type Config struct {
	Address  string
	Password string
	DB       int
}

// ErrEmptyAddress is returned when Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// NewClient connects and pings Redis.
func NewClient(cfg Config) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// envelope is the stream payload.
type envelope struct {
	EventID   uuid.UUID                `json:"event_id"`
	EventType string                   `json:"event_type"`
	Timestamp time.Time                `json:"timestamp"`
	Payload   ports.ScanCompletedEvent `json:"payload"`
}

type Publisher struct {
	client *redis.Client
	log    *zap.Logger
	now    func() time.Time
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher returns nil when client is nil; a nil *Publisher is a no-op.
func NewPublisher(client *redis.Client, log *zap.Logger) *Publisher {
	if client == nil {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{client: client, log: log.Named("events"), now: time.Now}
}

func (p *Publisher) PublishScanCompleted(ctx context.Context, ev ports.ScanCompletedEvent) error {
	if p == nil || p.client == nil {
		return nil
	}
	payload, err := json.Marshal(envelope{
		EventID:   uuid.New(),
		EventType: EventScanCompleted,
		Timestamp: p.now().UTC(),
		Payload:   ev,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"type":  EventScanCompleted,
			"event": string(payload),
		},
	})
	if err := result.Err(); err != nil {
		return fmt.Errorf("publish to stream: %w", err)
	}
	p.log.Debug("published scan event",
		zap.String("scan_id", ev.ScanID),
		zap.String("stream_id", result.Val()),
	)
	return nil
}
