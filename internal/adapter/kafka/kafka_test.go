package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeFetcher struct {
	msgs      []kafkago.Message
	committed []kafkago.Message
	err       error
}

func (f *fakeFetcher) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if f.err != nil {
		return kafkago.Message{}, f.err
	}
	if len(f.msgs) == 0 {
		<-ctx.Done()
		return kafkago.Message{}, ctx.Err()
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeFetcher) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeFetcher) Close() error { return nil }

type fakeWriter struct {
	written []kafkago.Message
	err     error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestMapMessageToRawMessage(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("Ablato1"),
		Value:     []byte("A,6,1.2,183000,150617,6030.1234N,14610.5678W,120.5,_,3,4,2.1,_,12.6"),
		Topic:     "raw-telemetry",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("ablato1_2017.txt")},
		},
	}

	raw := mapMessageToRawMessage(msg)

	assert.Equal(t, "ablato1", raw.Station())
	assert.Equal(t, "ablato1_2017.txt", raw.Source())
	assert.Equal(t, "raw-telemetry", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Nil(t, raw.Commit)
}

func TestReader_ReadBatch(t *testing.T) {
	f := &fakeFetcher{msgs: []kafkago.Message{
		{Key: []byte("a"), Offset: 1},
		{Key: []byte("a"), Offset: 2},
		{Key: []byte("b"), Offset: 3},
	}}
	r := &Reader{reader: f, flush: 50 * time.Millisecond, logger: discardLogger()}

	batch, err := r.ReadBatch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(2), batch[1].Offset)

	require.NoError(t, batch[0].Commit(context.Background()))
	require.Len(t, f.committed, 1)
	assert.Equal(t, int64(1), f.committed[0].Offset)

	// Partial batch once the flush interval elapses.
	batch, err = r.ReadBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, batch, 1)

	batch, err = r.ReadBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestReader_ReadBatchErrors(t *testing.T) {
	r := &Reader{reader: &fakeFetcher{err: errors.New("broker down")}, flush: time.Second, logger: discardLogger()}
	_, err := r.ReadBatch(context.Background(), 5)
	assert.EqualError(t, err, "broker down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r = &Reader{reader: &fakeFetcher{}, flush: time.Second, logger: discardLogger()}
	_, err = r.ReadBatch(ctx, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSerializeToMessage(t *testing.T) {
	at := time.Date(2017, 6, 15, 18, 30, 0, 0, time.UTC)
	o := domain.Observation{
		Station:    "ablato1",
		Datetime:   at,
		RangeCM:    120.5,
		IngestedAt: at.Add(time.Hour),
	}

	msg, err := serializeToMessage(o)
	require.NoError(t, err)

	assert.Equal(t, []byte("ablato1"), msg.Key)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, 120.5, decoded["range_cm"])
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "site", msg.Headers[0].Key)
	assert.Equal(t, []byte("2017-06-15T18:30:00Z"), msg.Headers[1].Value)
	assert.Equal(t, []byte("2017-06-15T19:30:00Z"), msg.Headers[2].Value)
}

func TestWriter_Publish(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw, logger: discardLogger()}

	require.NoError(t, w.Publish(context.Background(), nil))
	assert.Empty(t, fw.written)

	obs := []domain.Observation{{Station: "a"}, {Station: "b"}}
	require.NoError(t, w.Publish(context.Background(), obs))
	assert.Len(t, fw.written, 2)

	fw.err = errors.New("leader not available")
	err := w.Publish(context.Background(), obs)
	assert.ErrorContains(t, err, "publish 2 observations")
}
