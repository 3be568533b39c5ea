package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
)

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error { return nil }

type scriptedReader struct {
	msgs []kafka.Message
	errs []error
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *scriptedReader) Close() error { return nil }

func TestPublishWritesKeyedJSON(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{Writer: w, Logger: logger.Discard()}

	event := models.QueueEvent{Type: models.EventQueueUpdated, QueueID: "q1", WaitingCount: 3}
	require.NoError(t, p.Publish(context.Background(), TopicQueueUpdated, "q1", event))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, TopicQueueUpdated, w.msgs[0].Topic)
	assert.Equal(t, "q1", string(w.msgs[0].Key))

	var got models.QueueEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, 3, got.WaitingCount)
}

func TestPublishReturnsWriterError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := &Producer{Writer: w, Logger: logger.Discard()}
	assert.Error(t, p.Publish(context.Background(), TopicTicketCalled, "q1", models.QueueEvent{}))
}

func TestConsumerSkipsBadMessagesAndStopsOnEOF(t *testing.T) {
	good, _ := json.Marshal(models.QueueEvent{Type: models.EventTicketCalled, TicketNumber: "AB12"})
	reader := &scriptedReader{
		errs: []error{errors.New("transient")},
		msgs: []kafka.Message{
			{Topic: TopicTicketCalled, Value: []byte("{not json")},
			{Topic: TopicTicketCalled, Value: good},
		},
	}
	c := newConsumerWithReader(reader, logger.Discard())

	var got []models.QueueEvent
	c.Start(context.Background(), func(e models.QueueEvent) { got = append(got, e) })

	require.Len(t, got, 1)
	assert.Equal(t, "AB12", got[0].TicketNumber)
}

func TestTopicFor(t *testing.T) {
	topic, ok := TopicFor(models.EventTicketReady)
	assert.True(t, ok)
	assert.Equal(t, TopicTicketReady, topic)

	_, ok = TopicFor(models.QueueEventType("other"))
	assert.False(t, ok)
}
