// Package api はコーディネーターの管理APIサーバーを提供する。
//
// 障害の手動注入・解除、ステータス確認、WebSocketによる
// イベント配信をHTTPで公開する。
package api
