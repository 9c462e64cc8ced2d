// Package config は環境変数と設定ファイルによる設定の読み込みを提供する。
//
// 優先順位はデフォルト < 設定ファイル < 環境変数。時間系の値は
// 秒数（"180"）とGoのduration表記（"3m"）の両方を受け付ける。
//
// Watcherを使うと設定ファイルの変更を検知して、シナリオの重みなどを
// 再起動なしで反映できる。
package config
