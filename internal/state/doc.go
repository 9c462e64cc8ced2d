// Package state は障害状態の共有レコードとその永続化を提供する。
//
// FailureStateはCoordinatorとTarget Processの間で共有される唯一の
// リソースであり、書き込みは常にレコード全体の原子的な置き換えとなる。
//
// # バックエンド
//
// - FileStore: JSONファイル（temp書き込み + rename による原子置換）
// - MemStore: テスト用のインメモリ実装
// - RedisStore: 単一キーへのSET/GET（複数ホスト構成向け）
//
// # 使用例
//
//	store := state.NewFileStore("/tmp/failure_state.json")
//	_ = store.Write(ctx, state.Healthy("coordinator"))
//	st, _ := store.Read(ctx)
package state
