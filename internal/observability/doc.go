// Package observability provides the structured logger, the JSONL event
// log, event-derived activity metrics, schedule health alerts and the
// Prometheus collector for Jizoni Schedule.
package observability
