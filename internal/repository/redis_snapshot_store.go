package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	applogger "FinCast/pkg/logger"
)

// ErrSnapshotNotFound is returned by Load when no snapshot exists for a symbol.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// RedisSnapshotStore persists monitoring-session snapshots as JSON blobs
// keyed per symbol.
type RedisSnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
	l      *applogger.Logger
}

// NewRedisSnapshotStore creates a Redis-backed snapshot store. A zero ttl
// means snapshots never expire.
func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration) domrepo.SnapshotStore {
	return &RedisSnapshotStore{client: client, ttl: ttl}
}

// SetLogger injects a structured logger.
func (s *RedisSnapshotStore) SetLogger(l *applogger.Logger) { s.l = l }

func snapshotKey(symbol string) string {
	return "fincast:snapshot:" + symbol
}

func (s *RedisSnapshotStore) Save(ctx context.Context, symbol string, snap *models.Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, snapshotKey(symbol), b, s.ttl).Err(); err != nil {
		if s.l != nil {
			s.l.Error("snapshot save error",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("save snapshot: %w", err)
	}
	if s.l != nil {
		s.l.Debug("snapshot saved",
			applogger.String("symbol", symbol),
			applogger.Int("bytes", len(b)),
		)
	}
	return nil
}

func (s *RedisSnapshotStore) Load(ctx context.Context, symbol string) (*models.Snapshot, error) {
	b, err := s.client.Get(ctx, snapshotKey(symbol)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (s *RedisSnapshotStore) Close() error {
	return s.client.Close()
}
