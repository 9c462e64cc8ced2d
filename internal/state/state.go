package state

import (
	"context"
	"fmt"
	"time"
)

// Mode は注入される障害の種類を表す
type Mode string

const (
	ModeHealthy     Mode = "healthy"
	ModeCrash       Mode = "crash"
	ModeSlow        Mode = "slow"
	ModeConfigError Mode = "config_error"
)

// Valid は既知のモードかどうかを返す
func (m Mode) Valid() bool {
	switch m {
	case ModeHealthy, ModeCrash, ModeSlow, ModeConfigError:
		return true
	default:
		return false
	}
}

func (m Mode) String() string {
	return string(m)
}

// ParseMode は文字列をModeに変換する
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown failure mode: %q", s)
	}
	return m, nil
}

// FailureState は現在有効な障害を表す共有レコード。
// Coordinatorが全体を上書きし、Target Processがリクエストごとに読み取る。
// 部分更新は行わない。
type FailureState struct {
	Mode       Mode    `json:"mode"`
	Delay      float64 `json:"delay,omitempty"` // 秒。ModeSlowのときのみ有効
	Timestamp  int64   `json:"timestamp"`
	InjectedBy string  `json:"injected_by,omitempty"`
}

// Healthy は健全状態のレコードを作成する
func Healthy(by string) FailureState {
	return FailureState{
		Mode:       ModeHealthy,
		Timestamp:  time.Now().Unix(),
		InjectedBy: by,
	}
}

// IsHealthy は健全状態かどうかを返す
func (s FailureState) IsHealthy() bool {
	return s.Mode == ModeHealthy
}

// DelayDuration はDelayをtime.Durationとして返す
func (s FailureState) DelayDuration() time.Duration {
	if s.Mode != ModeSlow || s.Delay <= 0 {
		return 0
	}
	return time.Duration(s.Delay * float64(time.Second))
}

// Store は共有障害状態の読み書きを定義するインターフェース。
// Writeはレコード全体の原子的な置き換えでなければならない。
// 読み取り側が途中状態のレコードを観測してはならない。
type Store interface {
	Read(ctx context.Context) (FailureState, error)
	Write(ctx context.Context, s FailureState) error
}
