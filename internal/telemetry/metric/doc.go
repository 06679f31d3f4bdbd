// Package metric provides Prometheus metrics for the vault server.
//
//   - prometheus.go: the metric registry, operation counters and the
//     /metrics handler. Registry implements service.Observer.
//   - collector.go: a collector that reads device and budget state at
//     scrape time.
package metric
