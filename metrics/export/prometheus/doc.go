// Package prometheus renders engine counters and the validation latency histogram in the
// Prometheus text exposition format. Nothing is registered globally; mount Handler where
// the scraper expects it.
package prometheus
