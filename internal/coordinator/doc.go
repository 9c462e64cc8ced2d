// Package coordinator は障害注入サイクルのスケジューラを提供する。
//
// CoordinatorはTarget Processに対して自律的に障害を注入し、
// 一定時間後に自動回復させることで、外部の検知・修復ロジックを
// 訓練するためのループを回す。
//
// # サイクル
//
// Idle（起動猶予）→ Scheduling（間隔待機）→ Injecting（重み付き選択と
// 書き込み）→ Manifesting（観測猶予）→ Clearing（健全へ復帰）のループ。
// 終了はプロセスのシャットダウンのみで、その際は必ず障害状態を
// 健全に戻してから抜ける。
//
// # 使用例
//
//	cfg := coordinator.DefaultConfig()
//	cfg.Interval = 60 * time.Second
//
//	coord := coordinator.New(store, scenario.DefaultTable(), cfg, logger)
//	coord.Start(ctx)
//	defer coord.Stop()
package coordinator
