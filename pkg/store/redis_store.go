// roles/pkg/store/redis_store.go

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"zodiac/roles/pkg/logging"
	"zodiac/roles/pkg/roles"
)

const keyPrefix = "roles"

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the Redis server at addr and verifies the
// connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	logging.Logger.Info().Str("addr", addr).Int("db", db).Msg("Connecting to Redis")

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, storeError("cannot connect to redis", err, map[string]interface{}{"addr": addr})
	}

	logging.Logger.Info().Msg("Successfully connected to Redis")
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func storeError(message string, err error, fields map[string]interface{}) error {
	e := logging.NewError(logging.ErrorTypeStore, message, err, fields)
	logging.LogError(logging.Logger, e)
	return e
}

func modSegment(mod common.Address) string {
	return strings.ToLower(mod.Hex())
}

func modPattern(mod common.Address) string {
	return fmt.Sprintf("%s:%s:*", keyPrefix, modSegment(mod))
}

func RoleKey(mod common.Address, key common.Hash) string {
	return fmt.Sprintf("%s:%s:role:%s", keyPrefix, modSegment(mod), key.Hex())
}

func AllowanceKey(mod common.Address, key common.Hash) string {
	return fmt.Sprintf("%s:%s:allowance:%s", keyPrefix, modSegment(mod), key.Hex())
}

// SaveState replaces the whole snapshot of mod atomically.
func (s *RedisStore) SaveState(ctx context.Context, mod common.Address, state roles.State) error {
	existing, err := s.scan(ctx, modPattern(mod))
	if err != nil {
		return err
	}

	values := make(map[string][]byte, len(state.Roles)+len(state.Allowances))
	for _, r := range state.Roles {
		data, err := json.Marshal(r)
		if err != nil {
			return storeError("cannot encode role", err, map[string]interface{}{"role": r.Key.Hex()})
		}
		values[RoleKey(mod, r.Key)] = data
	}
	for _, a := range state.Allowances {
		data, err := json.Marshal(a)
		if err != nil {
			return storeError("cannot encode allowance", err, map[string]interface{}{"allowance": a.Key.Hex()})
		}
		values[AllowanceKey(mod, a.Key)] = data
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(existing) > 0 {
			pipe.Del(ctx, existing...)
		}
		for key, data := range values {
			pipe.Set(ctx, key, data, 0)
		}
		return nil
	})
	if err != nil {
		return storeError("cannot save state", err, map[string]interface{}{"mod": mod.Hex()})
	}
	logging.Logger.Debug().Str("mod", mod.Hex()).Int("roles", len(state.Roles)).Int("allowances", len(state.Allowances)).Msg("Saved state")
	return nil
}

// LoadState returns the snapshot of mod. An unknown mod has an empty state.
func (s *RedisStore) LoadState(ctx context.Context, mod common.Address) (roles.State, error) {
	keys, err := s.scan(ctx, modPattern(mod))
	if err != nil {
		return roles.State{}, err
	}
	if len(keys) == 0 {
		logging.Logger.Debug().Str("mod", mod.Hex()).Msg("No snapshot in Redis")
		return roles.State{}, nil
	}

	results, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return roles.State{}, storeError("cannot load state", err, map[string]interface{}{"mod": mod.Hex()})
	}

	var state roles.State
	rolePrefix := fmt.Sprintf("%s:%s:role:", keyPrefix, modSegment(mod))
	for i, result := range results {
		data, ok := result.(string)
		if !ok {
			continue
		}
		if strings.HasPrefix(keys[i], rolePrefix) {
			var r roles.Role
			if err := json.Unmarshal([]byte(data), &r); err != nil {
				return roles.State{}, storeError("cannot decode role", err, map[string]interface{}{"key": keys[i]})
			}
			state.Roles = append(state.Roles, r)
			continue
		}
		var a roles.Allowance
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return roles.State{}, storeError("cannot decode allowance", err, map[string]interface{}{"key": keys[i]})
		}
		state.Allowances = append(state.Allowances, a)
	}
	return state.Sorted(), nil
}

func (s *RedisStore) SaveRole(ctx context.Context, mod common.Address, role roles.Role) error {
	data, err := json.Marshal(role)
	if err != nil {
		return storeError("cannot encode role", err, map[string]interface{}{"role": role.Key.Hex()})
	}
	if err := s.client.Set(ctx, RoleKey(mod, role.Key), data, 0).Err(); err != nil {
		return storeError("cannot save role", err, map[string]interface{}{"mod": mod.Hex(), "role": role.Key.Hex()})
	}
	return nil
}

func (s *RedisStore) LoadRole(ctx context.Context, mod common.Address, key common.Hash) (roles.Role, bool, error) {
	data, err := s.client.Get(ctx, RoleKey(mod, key)).Result()
	if err == redis.Nil {
		return roles.Role{}, false, nil
	} else if err != nil {
		return roles.Role{}, false, storeError("cannot load role", err, map[string]interface{}{"mod": mod.Hex(), "role": key.Hex()})
	}

	var r roles.Role
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return roles.Role{}, false, storeError("cannot decode role", err, map[string]interface{}{"mod": mod.Hex(), "role": key.Hex()})
	}
	return r, true, nil
}

// ScanMods lists the modifiers holding a snapshot. pattern is a glob over
// the lower case modifier address; an empty pattern matches every modifier.
func (s *RedisStore) ScanMods(ctx context.Context, pattern string) ([]common.Address, error) {
	if pattern == "" {
		pattern = "*"
	}
	keys, err := s.scan(ctx, fmt.Sprintf("%s:%s:*", keyPrefix, pattern))
	if err != nil {
		return nil, err
	}

	seen := make(map[common.Address]bool)
	var mods []common.Address
	for _, key := range keys {
		parts := strings.Split(key, ":")
		if len(parts) != 4 || !common.IsHexAddress(parts[1]) {
			continue
		}
		mod := common.HexToAddress(parts[1])
		if !seen[mod] {
			seen[mod] = true
			mods = append(mods, mod)
		}
	}
	return mods, nil
}

func (s *RedisStore) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, storeError("cannot scan keys", err, map[string]interface{}{"pattern": pattern})
	}
	return keys, nil
}

// PublishSnapshot announces that the snapshot of mod was replaced.
func (s *RedisStore) PublishSnapshot(ctx context.Context, mod common.Address) error {
	if err := s.client.Publish(ctx, SnapshotChannel, modSegment(mod)).Err(); err != nil {
		return storeError("cannot publish snapshot", err, map[string]interface{}{"mod": mod.Hex()})
	}
	logging.Logger.Info().Str("mod", mod.Hex()).Str("channel", SnapshotChannel).Msg("Published snapshot")
	return nil
}

// Subscribe subscribes to channels and waits for the confirmation.
func (s *RedisStore) Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error) {
	logging.Logger.Info().Strs("channels", channels).Msg("Subscribing to Redis channels")

	pubsub := s.client.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, storeError("cannot subscribe", err, map[string]interface{}{"channels": channels})
	}

	logging.Logger.Info().Strs("channels", channels).Msg("Successfully subscribed to Redis channels")
	return pubsub, nil
}

// ParseSnapshotMessage extracts the modifier address from a snapshot
// notification.
func ParseSnapshotMessage(payload string) (common.Address, error) {
	payload = strings.TrimSpace(payload)
	if !common.IsHexAddress(payload) {
		return common.Address{}, logging.NewError(logging.ErrorTypeStore, "invalid snapshot message", nil, map[string]interface{}{"payload": payload})
	}
	return common.HexToAddress(payload), nil
}

var _ Store = (*RedisStore)(nil)
