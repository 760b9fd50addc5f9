// Package redisstore keeps progress records in Redis, one JSON value per
// user plus a set of known user IDs.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"

	"github.com/lostpaws/pawpoints/internal/domain"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "pawpoints"

// Store implements domain.ProgressStore over a Redis client.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// Options selects the Redis server.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Open creates a client for opts and checks it with PING.
func Open(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	s := New(client, opts.Prefix)
	if err := s.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return s, nil
}

// New wraps an existing client. An empty prefix uses DefaultPrefix.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) progressKey(userID string) string {
	return s.prefix + ":progress:" + userID
}

func (s *Store) usersKey() string {
	return s.prefix + ":users"
}

// Load returns the user's record, or false when the key is absent.
func (s *Store) Load(ctx context.Context, userID string) (domain.UserProgress, bool, error) {
	raw, err := s.client.Get(ctx, s.progressKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.UserProgress{}, false, nil
	}
	if err != nil {
		return domain.UserProgress{}, false, fmt.Errorf("get progress: %w", err)
	}
	p, err := decode(userID, raw)
	if err != nil {
		return domain.UserProgress{}, false, err
	}
	return p, true, nil
}

// LoadMany fetches the stored records among userIDs with one MGET.
func (s *Store) LoadMany(ctx context.Context, userIDs []string) (map[string]domain.UserProgress, error) {
	out := make(map[string]domain.UserProgress, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = s.progressKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget progress: %w", err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		p, err := decode(userIDs[i], []byte(str))
		if err != nil {
			return nil, err
		}
		out[userIDs[i]] = p
	}
	return out, nil
}

// Save writes the record and registers the user in one transaction.
func (s *Store) Save(ctx context.Context, p domain.UserProgress) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode progress %s: %w", p.UserID, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.progressKey(p.UserID), raw, 0)
		pipe.SAdd(ctx, s.usersKey(), p.UserID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// ListUserIDs returns every registered user in ascending order.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.usersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func decode(userID string, raw []byte) (domain.UserProgress, error) {
	var p domain.UserProgress
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.UserProgress{}, fmt.Errorf("decode progress %s: %w", userID, err)
	}
	if p.UnlockedBadges == nil {
		p.UnlockedBadges = make(map[string]domain.UnlockedBadge)
	}
	return p, nil
}
