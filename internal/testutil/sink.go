package testutil

import "chatvault/internal/sink"

// NewTestSink creates an in-memory bundle sink for testing.
func NewTestSink() *sink.MemorySink {
	return sink.NewMemorySink("test-sink")
}
