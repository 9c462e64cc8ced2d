package scenario

import (
	"fmt"
	"math/rand"
	"time"

	"chaos-target/internal/state"
)

// Scenario は注入可能な障害シナリオを表す
type Scenario struct {
	Name   string
	Mode   state.Mode
	Weight float64

	// Slowシナリオ用の遅延範囲（秒）。MinDelay <= delay <= MaxDelay
	MinDelay int
	MaxDelay int
}

// Build はシナリオから障害状態レコードを生成する。
// Slowシナリオの遅延は指定範囲から一様に選ばれる。
func (s Scenario) Build(rng *rand.Rand, injectedBy string) state.FailureState {
	st := state.FailureState{
		Mode:       s.Mode,
		Timestamp:  time.Now().Unix(),
		InjectedBy: injectedBy,
	}

	if s.Mode == state.ModeSlow {
		delay := s.MinDelay
		if s.MaxDelay > s.MinDelay {
			delay += rng.Intn(s.MaxDelay - s.MinDelay + 1)
		}
		st.Delay = float64(delay)
	}

	return st
}

// Table は重み付きシナリオの集合。
// Pickは累積重みを歩く離散サンプラーで、シードされたrand.Randを
// 渡すことで選択を再現できる。
type Table struct {
	scenarios []Scenario
	total     float64
}

// NewTable は新しいシナリオテーブルを作成する。
// 重みの合計が1.0である必要はなく、比率として扱われる。
func NewTable(scenarios []Scenario) (*Table, error) {
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("scenario table must not be empty")
	}

	seen := make(map[string]bool, len(scenarios))
	total := 0.0

	for _, s := range scenarios {
		if s.Name == "" {
			return nil, fmt.Errorf("scenario name must not be empty")
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate scenario name: %s", s.Name)
		}
		seen[s.Name] = true

		if !s.Mode.Valid() || s.Mode == state.ModeHealthy {
			return nil, fmt.Errorf("scenario %s has invalid mode: %q", s.Name, s.Mode)
		}
		if s.Weight <= 0 {
			return nil, fmt.Errorf("scenario %s must have positive weight, got %v", s.Name, s.Weight)
		}
		if s.Mode == state.ModeSlow {
			if s.MinDelay <= 0 || s.MaxDelay < s.MinDelay {
				return nil, fmt.Errorf("scenario %s has invalid delay range [%d, %d]", s.Name, s.MinDelay, s.MaxDelay)
			}
		}

		total += s.Weight
	}

	return &Table{scenarios: scenarios, total: total}, nil
}

// Pick は重みに従ってシナリオを1つ選択する
func (t *Table) Pick(rng *rand.Rand) Scenario {
	draw := rng.Float64() * t.total

	cumulative := 0.0
	for _, s := range t.scenarios {
		cumulative += s.Weight
		if draw < cumulative {
			return s
		}
	}

	// 浮動小数点の丸めでdrawが末尾を越えた場合
	return t.scenarios[len(t.scenarios)-1]
}

// Scenarios は登録されているシナリオを返す
func (t *Table) Scenarios() []Scenario {
	out := make([]Scenario, len(t.scenarios))
	copy(out, t.scenarios)
	return out
}

// Weights は正規化された重みを返す
func (t *Table) Weights() map[string]float64 {
	out := make(map[string]float64, len(t.scenarios))
	for _, s := range t.scenarios {
		out[s.Name] = s.Weight / t.total
	}
	return out
}

// Lookup は名前でシナリオを検索する
func (t *Table) Lookup(name string) (Scenario, bool) {
	for _, s := range t.scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}
