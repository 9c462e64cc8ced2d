// Package target は障害状態に従って振る舞いを変えるTarget Processを提供する。
//
// 全てのリクエストはビジネス処理の前に共有障害状態を読み取り、
// モードに応じて分岐する:
//
//   - Crash: 終了コード1で即座にプロセスを終了する（非グレースフル）
//   - Slow: delay秒待ってから通常処理を続ける
//   - ConfigError: 全リクエストを設定エラーの500で短絡する
//   - Healthy: 通常処理
//
// /debug/state と /metrics は障害解釈の対象外で、障害発生中の
// トリアージに使える。それ以外のルートは/healthを含めて障害の
// 影響を受ける。
package target
