package domain

import (
	"context"
	"time"
)

// RawMessage is one raw telemetry line received from the stream. Key holds
// the station code and Value the positional line.
type RawMessage struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Station returns the normalized station code carried by the message key.
func (m RawMessage) Station() string {
	return NormalizeStationCode(string(m.Key))
}

// Source names the originating file, falling back to topic/partition.
func (m RawMessage) Source() string {
	if s := m.Headers["source"]; s != "" {
		return s
	}
	return m.Topic
}
