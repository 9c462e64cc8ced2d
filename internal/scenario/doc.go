// Package scenario は重み付き障害シナリオの定義と選択を提供する。
//
// Tableは(名前, 重み)の離散分布で、Pickは[0, 合計重み)の一様乱数を
// 累積重みに沿って歩くことでシナリオを選択する。rand.Randを注入する
// 設計なので、シードを固定すれば分布の検証が再現可能になる。
//
// # 使用例
//
//	table := scenario.DefaultTable()
//	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
//	s := table.Pick(rng)
//	st := s.Build(rng, "coordinator")
package scenario
