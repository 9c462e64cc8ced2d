package state

import (
	"context"
	"sync"
)

// MemStore はテスト用のインメモリStore実装。
// RWMutexで保護され、常にレコード全体のコピーを返す。
type MemStore struct {
	mu sync.RWMutex
	st FailureState

	writeCount uint64
}

var _ Store = (*MemStore)(nil)

// NewMemStore は健全状態で初期化されたMemStoreを作成する
func NewMemStore() *MemStore {
	return &MemStore{
		st: FailureState{Mode: ModeHealthy},
	}
}

// Read は現在の障害状態を返す
func (m *MemStore) Read(ctx context.Context) (FailureState, error) {
	if err := ctx.Err(); err != nil {
		return FailureState{Mode: ModeHealthy}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st, nil
}

// Write は障害状態を置き換える
func (m *MemStore) Write(ctx context.Context, st FailureState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = st
	m.writeCount++
	return nil
}

// WriteCount は書き込み回数を返す（テスト用）
func (m *MemStore) WriteCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writeCount
}
