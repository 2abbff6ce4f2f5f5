// Package internaldefs holds the metric names, help strings and histogram bounds shared by
// the exporters, so Prometheus and OpenTelemetry publish identical series.
package internaldefs
