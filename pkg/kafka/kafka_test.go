package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	require.Error(t, err)
}

func TestPublishBatch_EncodesValues(t *testing.T) {
	w := &fakeWriter{}
	reg := prometheus.NewRegistry()
	p, err := NewProducer(WithWriter(w), WithProducerRegisterer(reg))
	require.NoError(t, err)

	err = p.PublishBatch(context.Background(), "prices", []Message{
		{Key: []byte("a"), Value: []byte("raw")},
		{Key: []byte("b"), Value: "text"},
		{Key: []byte("c"), Value: map[string]int{"n": 1}},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 3)
	assert.Equal(t, "raw", string(w.msgs[0].Value))
	assert.Equal(t, "text", string(w.msgs[1].Value))
	assert.JSONEq(t, `{"n":1}`, string(w.msgs[2].Value))
	assert.Equal(t, "prices", w.msgs[2].Topic)

	assert.Equal(t, float64(3), testutil.ToFloat64(p.metrics.msgs.WithLabelValues("prices", "snappy", "ok")))
}

func TestPublish_CountsErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	reg := prometheus.NewRegistry()
	p, err := NewProducer(WithWriter(w), WithProducerRegisterer(reg))
	require.NoError(t, err)

	require.Error(t, p.Publish(context.Background(), "prices", nil, "x"))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.metrics.errs.WithLabelValues("prices")))
}

func TestPublishBatch_Empty(t *testing.T) {
	w := &fakeWriter{}
	p, err := NewProducer(WithWriter(w))
	require.NoError(t, err)
	require.NoError(t, p.PublishBatch(context.Background(), "prices", nil))
	assert.Empty(t, w.msgs)
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(100*time.Millisecond, time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
	assert.LessOrEqual(t, backoffWithJitter(0, 0, 1), 50*time.Millisecond)
}

type panicky struct{}

func (panicky) Topic() string                        { return "t" }
func (panicky) Handle(context.Context, []byte) error { panic("boom") }

func TestSafeHandle_RecoversPanic(t *testing.T) {
	err := safeHandle(context.Background(), panicky{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

type flaky struct{ fails, calls int }

func (f *flaky) Topic() string { return "t" }
func (f *flaky) Handle(context.Context, []byte) error {
	f.calls++
	if f.calls <= f.fails {
		return errors.New("transient")
	}
	return nil
}

func TestHandleWithRetry(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)

	h := &flaky{fails: 2}
	require.NoError(t, c.handleWithRetry(context.Background(), h, kafka.Message{}))
	assert.Equal(t, 3, h.calls)

	h = &flaky{fails: 5}
	require.Error(t, c.handleWithRetry(context.Background(), h, kafka.Message{}))
	assert.Equal(t, 3, h.calls)
}

func TestConsumer_StartWithoutHandlers(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}))
	require.NoError(t, err)
	require.Error(t, c.Start(context.Background()))
}
