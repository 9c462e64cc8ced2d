package scenario

import (
	"fmt"

	"chaos-target/internal/state"
)

// シナリオ名。設定ファイルや手動注入APIから参照される
const (
	NameCrash       = "crash"
	NameSlowdown    = "slowdown"
	NameConfigError = "config_error"
)

// DefaultTable はデフォルトのシナリオテーブルを返す。
// crash 30% / slowdown 40% (10-30秒遅延) / config_error 30%
func DefaultTable() *Table {
	t, err := NewTable([]Scenario{
		{Name: NameCrash, Mode: state.ModeCrash, Weight: 0.30},
		{Name: NameSlowdown, Mode: state.ModeSlow, Weight: 0.40, MinDelay: 10, MaxDelay: 30},
		{Name: NameConfigError, Mode: state.ModeConfigError, Weight: 0.30},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// AggressiveTable はクラッシュ多めのテーブルを返す。
// 再起動ループの検出デモ向け
func AggressiveTable() *Table {
	t, err := NewTable([]Scenario{
		{Name: NameCrash, Mode: state.ModeCrash, Weight: 0.60},
		{Name: NameSlowdown, Mode: state.ModeSlow, Weight: 0.20, MinDelay: 20, MaxDelay: 30},
		{Name: NameConfigError, Mode: state.ModeConfigError, Weight: 0.20},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// LatencyTable はSlowdownのみのテーブルを返す。
// レイテンシ検出デモ向け
func LatencyTable() *Table {
	t, err := NewTable([]Scenario{
		{Name: NameSlowdown, Mode: state.ModeSlow, Weight: 1.0, MinDelay: 10, MaxDelay: 30},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// GentleTable はプロセスを落とさないテーブルを返す
func GentleTable() *Table {
	t, err := NewTable([]Scenario{
		{Name: NameSlowdown, Mode: state.ModeSlow, Weight: 0.60, MinDelay: 5, MaxDelay: 15},
		{Name: NameConfigError, Mode: state.ModeConfigError, Weight: 0.40},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// GetPreset は名前からプリセットテーブルを取得する
func GetPreset(name string) (*Table, bool) {
	presets := map[string]func() *Table{
		"default":    DefaultTable,
		"aggressive": AggressiveTable,
		"latency":    LatencyTable,
		"gentle":     GentleTable,
	}

	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return nil, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	return []string{"default", "aggressive", "latency", "gentle"}
}

// FromWeights はデフォルトテーブルの重みを上書きしたテーブルを作成する。
// 指定されなかったシナリオはデフォルトの重みを保つ。重み0のシナリオは除外される。
func FromWeights(weights map[string]float64) (*Table, error) {
	var scenarios []Scenario
	for _, s := range DefaultTable().Scenarios() {
		if w, ok := weights[s.Name]; ok {
			if w == 0 {
				continue
			}
			s.Weight = w
		}
		scenarios = append(scenarios, s)
	}

	for name := range weights {
		if _, ok := DefaultTable().Lookup(name); !ok {
			return nil, fmt.Errorf("unknown scenario in weights: %s", name)
		}
	}

	return NewTable(scenarios)
}
