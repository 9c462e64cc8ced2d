// Package metrics はPrometheusメトリクスの収集を提供する。
//
// CollectorはCoordinator・Target・Supervisorの各メトリクスを
// 1つのレジストリにまとめ、/metricsエンドポイントとして公開する。
package metrics
