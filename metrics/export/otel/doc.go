// Package otel publishes erpclient metrics as OpenTelemetry observable instruments on a
// caller-supplied meter. Values are read from the client's snapshot at collection time.
package otel
