package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/iaqflow/pkg/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	batches [][]kafka.Message
	err     error
	closed  bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, append([]kafka.Message(nil), msgs...))
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func events(n int) []domain.Event {
	at := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	out := make([]domain.Event, n)
	for i := range out {
		out[i] = domain.Event{
			Seq:       i + 1,
			Timestamp: at.Add(time.Duration(i) * time.Minute),
			Channel:   fmt.Sprintf("z%d.co2", i%2),
			Kind:      domain.EventAlertRaised,
			Tier:      domain.TierWarning,
		}
	}
	return out
}

func TestPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, WithBatchSize(2))

	require.NoError(t, p.Publish(context.Background(), "run-1", events(5)))
	require.Len(t, w.batches, 3)
	assert.Len(t, w.batches[2], 1)

	msg := w.batches[0][1]
	assert.Equal(t, "z1.co2", string(msg.Key))
	assert.Equal(t, "alert_raised", string(msg.Headers[0].Value))

	var decoded Message
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, 2, decoded.Event.Seq)
	assert.Equal(t, domain.TierWarning, decoded.Event.Tier)
}

func TestPublisher_Write(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w)
	require.NoError(t, p.Write(context.Background(), &domain.Report{RunID: "r", Events: events(3)}))
	require.Len(t, w.batches, 1)
	assert.Len(t, w.batches[0], 3)

	require.NoError(t, p.Write(context.Background(), &domain.Report{RunID: "empty"}))
	assert.Len(t, w.batches, 1, "no write for an empty report")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisher_Error(t *testing.T) {
	p := newPublisher(&fakeWriter{err: errors.New("leader not available")})
	err := p.Publish(context.Background(), "r", events(1))
	assert.ErrorContains(t, err, "leader not available")
}

func TestNewPublisher_Validation(t *testing.T) {
	_, err := NewPublisher(nil, "iaq.events")
	assert.ErrorIs(t, err, ErrNoBrokers)
	_, err = NewPublisher([]string{"localhost:9092"}, "")
	assert.ErrorIs(t, err, ErrNoTopic)

	p, err := NewPublisher([]string{"localhost:9092"}, "iaq.events")
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}
