package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"hypeledger/internal/model"
)

const (
	BalanceChannel = "hype:balance-changed"
	balanceTTL     = 24 * time.Hour
)

func BalanceKey(userID string) string {
	return "hype:balance:" + userID
}

// Client is the subset of the redis client the publisher needs.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// BalanceSnapshot is what other instances and subscribers read.
type BalanceSnapshot struct {
	UserID    string    `json:"user_id"`
	Free      int64     `json:"free"`
	Paid      int64     `json:"paid"`
	Total     int64     `json:"total"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BalancePublisher mirrors every balance change into redis: the latest
// snapshot under BalanceKey and a message on BalanceChannel.
type BalancePublisher struct {
	client  Client
	timeout time.Duration
}

func NewBalancePublisher(client Client) *BalancePublisher {
	return &BalancePublisher{client: client, timeout: 2 * time.Second}
}

// OnBalanceChanged has the ledger listener signature.
func (p *BalancePublisher) OnBalanceChanged(userID string, b *model.Balance) {
	snapshot := BalanceSnapshot{
		UserID:    userID,
		Free:      b.Free,
		Paid:      b.Paid,
		Total:     b.Total,
		Version:   b.Version,
		UpdatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		log.WithError(err).Error("[BalancePublisher] marshal snapshot")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.client.Set(ctx, BalanceKey(userID), payload, balanceTTL).Err(); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("[BalancePublisher] cache balance failed")
	}
	if err := p.client.Publish(ctx, BalanceChannel, payload).Err(); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("[BalancePublisher] publish balance failed")
	}
}

// Cached returns the last published snapshot, or nil when none is cached.
func (p *BalancePublisher) Cached(ctx context.Context, userID string) (*BalanceSnapshot, error) {
	raw, err := p.client.Get(ctx, BalanceKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snapshot BalanceSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}
