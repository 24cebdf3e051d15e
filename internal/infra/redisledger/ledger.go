// Package redisledger is a dedup ledger backed by Redis keys.
package redisledger

import (
	"context"
	"fmt"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ledger:"

// Ledger stores one key per sent (recipient, subject, stage). Keys never expire.
type Ledger struct {
	client redis.UniversalClient
	now    func() time.Time
}

func New(client redis.UniversalClient) *Ledger {
	return &Ledger{client: client, now: time.Now}
}

// NewClient connects to addr and verifies the connection.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func key(k notification.DedupKey) string {
	return keyPrefix + k.String()
}

func (l *Ledger) WasSent(ctx context.Context, k notification.DedupKey) (bool, error) {
	n, err := l.client.Exists(ctx, key(k)).Result()
	if err != nil {
		return false, fmt.Errorf("error checking dedup ledger: %w", err)
	}
	return n > 0, nil
}

// MarkSent keeps the first write's timestamp.
func (l *Ledger) MarkSent(ctx context.Context, k notification.DedupKey) error {
	if err := l.client.SetNX(ctx, key(k), l.now().UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("error writing dedup ledger: %w", err)
	}
	return nil
}
