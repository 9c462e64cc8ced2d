package scenario

import (
	"math"
	"math/rand"
	"testing"

	"chaos-target/internal/state"
)

func TestNewTableValidation(t *testing.T) {
	tests := []struct {
		name      string
		scenarios []Scenario
		wantErr   bool
	}{
		{
			name: "valid",
			scenarios: []Scenario{
				{Name: "crash", Mode: state.ModeCrash, Weight: 0.5},
				{Name: "slowdown", Mode: state.ModeSlow, Weight: 0.5, MinDelay: 1, MaxDelay: 2},
			},
			wantErr: false,
		},
		{name: "empty", scenarios: nil, wantErr: true},
		{
			name:      "empty name",
			scenarios: []Scenario{{Name: "", Mode: state.ModeCrash, Weight: 1}},
			wantErr:   true,
		},
		{
			name: "duplicate name",
			scenarios: []Scenario{
				{Name: "crash", Mode: state.ModeCrash, Weight: 0.5},
				{Name: "crash", Mode: state.ModeConfigError, Weight: 0.5},
			},
			wantErr: true,
		},
		{
			name:      "zero weight",
			scenarios: []Scenario{{Name: "crash", Mode: state.ModeCrash, Weight: 0}},
			wantErr:   true,
		},
		{
			name:      "healthy mode not injectable",
			scenarios: []Scenario{{Name: "noop", Mode: state.ModeHealthy, Weight: 1}},
			wantErr:   true,
		},
		{
			name:      "slow without delay range",
			scenarios: []Scenario{{Name: "slowdown", Mode: state.ModeSlow, Weight: 1}},
			wantErr:   true,
		},
		{
			name:      "inverted delay range",
			scenarios: []Scenario{{Name: "slowdown", Mode: state.ModeSlow, Weight: 1, MinDelay: 30, MaxDelay: 10}},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.scenarios)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewTable() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// シードを固定したN回の選択で、各シナリオの出現頻度が設定した重みに
// 収束することを確認する
func TestPickDistribution(t *testing.T) {
	table := DefaultTable()
	rng := rand.New(rand.NewSource(42))

	const n = 10000
	counts := make(map[string]int)
	for i := 0; i < n; i++ {
		counts[table.Pick(rng).Name]++
	}

	const tolerance = 0.03
	for name, weight := range table.Weights() {
		got := float64(counts[name]) / n
		if math.Abs(got-weight) > tolerance {
			t.Errorf("scenario %s frequency = %.3f, want %.2f ±%.2f", name, got, weight, tolerance)
		}
	}
}

func TestPickIsReproducible(t *testing.T) {
	table := DefaultTable()

	var first, second []string
	for _, out := range []*[]string{&first, &second} {
		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 100; i++ {
			*out = append(*out, table.Pick(rng).Name)
		}
	}

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("pick %d differs: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestPickSingleScenario(t *testing.T) {
	table := LatencyTable()
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 100; i++ {
		if got := table.Pick(rng).Name; got != NameSlowdown {
			t.Fatalf("expected %s, got %s", NameSlowdown, got)
		}
	}
}

func TestBuildSlowDelayBounds(t *testing.T) {
	table := DefaultTable()
	s, ok := table.Lookup(NameSlowdown)
	if !ok {
		t.Fatal("slowdown scenario not found")
	}

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		st := s.Build(rng, "test")
		if st.Mode != state.ModeSlow {
			t.Fatalf("expected slow mode, got %v", st.Mode)
		}
		if st.Delay < float64(s.MinDelay) || st.Delay > float64(s.MaxDelay) {
			t.Errorf("delay %v outside [%d, %d]", st.Delay, s.MinDelay, s.MaxDelay)
		}
	}
}

func TestBuildNonSlowHasNoDelay(t *testing.T) {
	table := DefaultTable()
	rng := rand.New(rand.NewSource(5))

	for _, name := range []string{NameCrash, NameConfigError} {
		s, ok := table.Lookup(name)
		if !ok {
			t.Fatalf("scenario %s not found", name)
		}
		st := s.Build(rng, "test")
		if st.Delay != 0 {
			t.Errorf("scenario %s should not set delay, got %v", name, st.Delay)
		}
		if st.InjectedBy != "test" {
			t.Errorf("expected injected_by test, got %q", st.InjectedBy)
		}
	}
}

func TestGetPreset(t *testing.T) {
	for _, name := range ListPresets() {
		if _, ok := GetPreset(name); !ok {
			t.Errorf("preset %s not found", name)
		}
	}

	if _, ok := GetPreset("nope"); ok {
		t.Error("expected unknown preset to be rejected")
	}
}

func TestFromWeights(t *testing.T) {
	table, err := FromWeights(map[string]float64{
		NameCrash:    0.8,
		NameSlowdown: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := table.Lookup(NameSlowdown); ok {
		t.Error("expected zero-weight scenario to be removed")
	}

	weights := table.Weights()
	if weights[NameCrash] < weights[NameConfigError] {
		t.Errorf("expected crash to dominate, got %v", weights)
	}

	if _, err := FromWeights(map[string]float64{"explode": 1}); err == nil {
		t.Error("expected error for unknown scenario name")
	}
}
