package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/model"
	"github.com/Veraticus/ecofinance-notify/internal/service"
)

// RedisConfig configures the Redis key-value backend.
type RedisConfig struct {
	Addr     string
	Password string
	Prefix   string
	DB       int
}

// RedisStorage keeps cooldowns, inbox, preferences and queue in Redis.
// Rules and the ledger stay in SQLite.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

var _ service.StateStore = (*RedisStorage)(nil)

// NewRedisStorage connects to Redis and verifies the connection.
func NewRedisStorage(ctx context.Context, cfg RedisConfig) (*RedisStorage, error) {
	if err := validateString(cfg.Addr, "addr"); err != nil {
		return nil, err
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ecofin"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStorage{client: client, prefix: prefix}, nil
}

// Close closes the Redis client.
func (r *RedisStorage) Close() error {
	return r.client.Close()
}

func (r *RedisStorage) key(kind, id string) string {
	return r.prefix + ":" + kind + ":" + id
}

// GetCooldown returns the firing record for a rule.
func (r *RedisStorage) GetCooldown(ctx context.Context, ruleID string) (model.CooldownState, bool, error) {
	state := model.CooldownState{RuleID: ruleID}
	if err := validateString(ruleID, "ruleID"); err != nil {
		return state, false, err
	}

	fields, err := r.client.HGetAll(ctx, r.key("cooldown", ruleID)).Result()
	if err != nil {
		return state, false, fmt.Errorf("failed to get cooldown: %w", err)
	}
	if len(fields) == 0 {
		return state, false, nil
	}

	state.LastFired, err = time.Parse(time.RFC3339Nano, fields["last_fired"])
	if err != nil {
		return state, false, fmt.Errorf("%w: cooldown timestamp: %w", common.ErrDatabaseCorrupted, err)
	}
	state.Count, _ = strconv.Atoi(fields["count"])
	return state, true, nil
}

// RecordFiring stamps the rule's last firing and bumps its count atomically.
func (r *RedisStorage) RecordFiring(ctx context.Context, ruleID string, at time.Time) (model.CooldownState, error) {
	if err := validateString(ruleID, "ruleID"); err != nil {
		return model.CooldownState{}, err
	}

	key := r.key("cooldown", ruleID)
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "last_fired", at.UTC().Format(time.RFC3339Nano))
		incr = pipe.HIncrBy(ctx, key, "count", 1)
		return nil
	})
	if err != nil {
		return model.CooldownState{}, fmt.Errorf("failed to record firing: %w", err)
	}
	return model.CooldownState{RuleID: ruleID, LastFired: at.UTC(), Count: int(incr.Val())}, nil
}

// ResetCooldown forgets that a rule ever fired.
func (r *RedisStorage) ResetCooldown(ctx context.Context, ruleID string) error {
	if err := r.client.Del(ctx, r.key("cooldown", ruleID)).Err(); err != nil {
		return fmt.Errorf("failed to reset cooldown: %w", err)
	}
	return nil
}

// LoadNotifications returns the stored inbox of a profile.
func (r *RedisStorage) LoadNotifications(ctx context.Context, profileID string) ([]model.Notification, error) {
	var out []model.Notification
	if _, err := r.getJSON(ctx, r.key("notifications", profileID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveNotifications replaces the stored inbox of a profile.
func (r *RedisStorage) SaveNotifications(ctx context.Context, profileID string, notifications []model.Notification) error {
	return r.setJSON(ctx, r.key("notifications", profileID), notifications)
}

// LoadPreferences returns the preferences of a profile.
func (r *RedisStorage) LoadPreferences(ctx context.Context, profileID string) (*model.NotificationPreferences, error) {
	var prefs model.NotificationPreferences
	found, err := r.getJSON(ctx, r.key("preferences", profileID), &prefs)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("preferences for %q: %w", profileID, common.ErrNotFound)
	}
	return &prefs, nil
}

// SavePreferences stores the preferences of their profile.
func (r *RedisStorage) SavePreferences(ctx context.Context, prefs *model.NotificationPreferences) error {
	if prefs == nil {
		return fmt.Errorf("%w: preferences", ErrNilParameter)
	}
	return r.setJSON(ctx, r.key("preferences", prefs.ProfileID), prefs)
}

// LoadQueue returns the offline queue of a profile.
func (r *RedisStorage) LoadQueue(ctx context.Context, profileID string) ([]model.QueuedNotification, error) {
	var out []model.QueuedNotification
	if _, err := r.getJSON(ctx, r.key("queue", profileID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveQueue replaces the offline queue of a profile.
func (r *RedisStorage) SaveQueue(ctx context.Context, profileID string, queue []model.QueuedNotification) error {
	return r.setJSON(ctx, r.key("queue", profileID), queue)
}

// LastSync returns when the profile last synced, or the zero time.
func (r *RedisStorage) LastSync(ctx context.Context, profileID string) (time.Time, error) {
	raw, err := r.client.Get(ctx, r.key("sync", profileID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load sync state: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: sync timestamp: %w", common.ErrDatabaseCorrupted, err)
	}
	return at, nil
}

// SetLastSync records a successful sync.
func (r *RedisStorage) SetLastSync(ctx context.Context, profileID string, at time.Time) error {
	if err := r.client.Set(ctx, r.key("sync", profileID), at.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}

func (r *RedisStorage) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("%w: %s: %w", common.ErrDatabaseCorrupted, key, err)
	}
	return true, nil
}

func (r *RedisStorage) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}
