package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/claimline/internal/policy"
	"github.com/user/claimline/internal/types"
)

// RedisStore keeps sessions as JSON values so they survive restarts and can
// be shared by several bot processes.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration // zero keeps sessions until reset
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "claimline:session:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: opts.TTL}, nil
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) key(user types.UserKey) string {
	return r.prefix + string(user)
}

func (r *RedisStore) Get(ctx context.Context, user types.UserKey) (*Session, error) {
	data, err := r.client.Get(ctx, r.key(user)).Bytes()
	if errors.Is(err, redis.Nil) {
		s := New(StateIdle)
		s.UpdatedAt = time.Now()
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decodeSession(data)
}

func (r *RedisStore) Set(ctx context.Context, user types.UserKey, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(user), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (r *RedisStore) Reset(ctx context.Context, user types.UserKey, state State) (*Session, error) {
	s := New(state)
	s.UpdatedAt = time.Now()
	if err := r.Set(ctx, user, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *RedisStore) List(ctx context.Context) ([]Entry, error) {
	var out []Entry
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, fmt.Errorf("get session %s: %w", key, err)
		}
		s, err := decodeSession(data)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{UserKey: types.UserKey(strings.TrimPrefix(key, r.prefix)), Session: s})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserKey < out[j].UserKey })
	return out, nil
}

func decodeSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if s.UploadedDocs == nil {
		s.UploadedDocs = map[string]string{}
	}
	if s.SearchResults == nil {
		s.SearchResults = []policy.Policy{}
	}
	return &s, nil
}
