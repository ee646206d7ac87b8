// Package metrics records queue activity through OpenTelemetry instruments.
//
// Exporting is left to whoever installs the MeterProvider; by default the
// global provider is used, which discards measurements until one is set.
package metrics
