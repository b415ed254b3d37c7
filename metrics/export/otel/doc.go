// Package otel republishes this module's Prometheus metric families through
// an OpenTelemetry meter, for hosts that ship telemetry over OTLP instead of
// scraping.
//
// The bridge is read-only: it gathers from a prometheus.Gatherer inside an
// OTel callback and never mutates the source registry. Gauges are exported
// as-is; histograms are exported as a _count counter and a _sum counter,
// since no current consumer needs per-bucket export.
package otel
