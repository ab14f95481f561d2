// Package cache keeps the latest journal draft per target in Redis and
// broadcasts history changes to interested canvases.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	draftPrefix   = "journal-draft:"
	historyPrefix = "journal-history:"
	defaultTTL    = 7 * 24 * time.Hour
)

// ErrMiss reports a draft that is not cached.
var ErrMiss = errors.New("draft not cached")

// Draft is the latest saved state of a target's journal.
type Draft struct {
	TargetID  string    `json:"target_id"`
	EntryID   string    `json:"entry_id"`
	Version   int       `json:"version"`
	Snapshot  string    `json:"snapshot"`
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HistoryEvent announces that a target's journal history changed.
type HistoryEvent struct {
	TargetID   string    `json:"target_id"`
	EntryID    string    `json:"entry_id"`
	Version    int       `json:"version"`
	NewVersion bool      `json:"new_version"`
	At         time.Time `json:"at"`
}

// RedisStore implements the draft cache and history channel on Redis
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, ttl: defaultTTL}
}

// WithTTL sets how long drafts stay cached.
func (s *RedisStore) WithTTL(ttl time.Duration) *RedisStore {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

func draftKey(targetID string) string {
	return draftPrefix + targetID
}

func historyChannel(targetID string) string {
	return historyPrefix + targetID
}

func (s *RedisStore) PutDraft(ctx context.Context, draft Draft) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := s.client.Set(ctx, draftKey(draft.TargetID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *RedisStore) GetDraft(ctx context.Context, targetID string) (Draft, error) {
	raw, err := s.client.Get(ctx, draftKey(targetID)).Result()
	if errors.Is(err, redis.Nil) {
		return Draft{}, ErrMiss
	}
	if err != nil {
		return Draft{}, fmt.Errorf("lookup draft: %w", err)
	}
	var draft Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return Draft{}, fmt.Errorf("unmarshal draft: %w", err)
	}
	return draft, nil
}

func (s *RedisStore) DeleteDraft(ctx context.Context, targetID string) error {
	if err := s.client.Del(ctx, draftKey(targetID)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// PublishHistory notifies subscribers of ev.TargetID.
func (s *RedisStore) PublishHistory(ctx context.Context, ev HistoryEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal history event: %w", err)
	}
	if err := s.client.Publish(ctx, historyChannel(ev.TargetID), payload).Err(); err != nil {
		return fmt.Errorf("publish history event: %w", err)
	}
	return nil
}

// Subscription delivers history events for one target until closed.
type Subscription struct {
	C      <-chan HistoryEvent
	pubsub *redis.PubSub
}

func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

// SubscribeHistory listens for history events of targetID. The subscription
// is active when it returns.
func (s *RedisStore) SubscribeHistory(ctx context.Context, targetID string) (*Subscription, error) {
	pubsub := s.client.Subscribe(ctx, historyChannel(targetID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe history: %w", err)
	}

	out := make(chan HistoryEvent, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var ev HistoryEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			out <- ev
		}
	}()
	return &Subscription{C: out, pubsub: pubsub}, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
