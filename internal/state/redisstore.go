package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "chaos:failure_state"

// RedisStore はRedisの単一キーに障害状態を保持する。
// SETはキー単位で原子的なので、ファイルのrenameと同等の保証が得られる。
// CoordinatorとTargetが別ホストで動く構成向け。
type RedisStore struct {
	client *redis.Client
	key    string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore は新しいRedisStoreを作成する。
// keyが空の場合はデフォルトキーを使用する。
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Read は現在の障害状態を読み取る。
// キーが存在しない場合は健全状態を返す。
func (r *RedisStore) Read(ctx context.Context) (FailureState, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return FailureState{Mode: ModeHealthy}, nil
		}
		return FailureState{Mode: ModeHealthy}, fmt.Errorf("failed to read state from redis: %w", err)
	}

	var st FailureState
	if err := json.Unmarshal(data, &st); err != nil {
		return FailureState{Mode: ModeHealthy}, fmt.Errorf("failed to parse state from redis: %w", err)
	}
	if !st.Mode.Valid() {
		return FailureState{Mode: ModeHealthy}, fmt.Errorf("redis state contains unknown mode: %q", st.Mode)
	}

	return st, nil
}

// Write は障害状態を書き込む
func (r *RedisStore) Write(ctx context.Context, st FailureState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write state to redis: %w", err)
	}

	return nil
}
