//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/palmer-drought-service/internal/adapter/kafka"
	"github.com/couchcryptid/palmer-drought-service/internal/domain"
	"github.com/couchcryptid/palmer-drought-service/internal/engine/enginetest"
	"github.com/couchcryptid/palmer-drought-service/internal/observability"
	"github.com/couchcryptid/palmer-drought-service/internal/pipeline"
	"github.com/couchcryptid/palmer-drought-service/internal/synthetic"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSourceTopic = "test-pdsi-requests"
	testSinkTopic   = "test-pdsi-responses"
)

// sinkMessage holds a decoded response read from the sink topic.
type sinkMessage struct {
	Response domain.Response
	Key      string
	Headers  map[string]string
}

func readResponse(ctx context.Context, t *testing.T, consumer *kafkago.Reader) sinkMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var resp domain.Response
	require.NoError(t, json.Unmarshal(msg.Value, &resp), "unmarshal sink message")

	return sinkMessage{Response: resp, Key: string(msg.Key), Headers: headers}
}

func sinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

func requestMessage(t *testing.T, key string, req domain.ComputationRequest) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(key), Value: payload}
}

// TestKafkaReaderWriter round-trips one request through the reader, the
// processor with a fake engine and the writer.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(t, broker, "test-reader")

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	req := synthetic.Request(synthetic.MidLatitude, 1959, 2000, 1, domain.ModeBoth)
	msg := requestMessage(t, "station-1", req)
	require.NoError(t, producer.WriteMessages(ctx, msg))

	// The consumer group may need time to rebalance before partitions are assigned.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawMessage
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("station-1"), raw.Key)
	assert.Equal(t, msg.Value, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	processor := pipeline.NewProcessor(newStack(cfg).Computer, discardLogger())
	out, err := processor.Process(ctx, raw)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.OutputMessage{out}))

	sm := readResponse(ctx, t, sinkConsumer(t, broker))
	assert.Equal(t, "station-1", sm.Key)
	assert.Equal(t, domain.StatusOK, sm.Headers["status"])
	_, err = time.Parse(time.RFC3339, sm.Headers["computed_at"])
	assert.NoError(t, err, "computed_at should be valid RFC3339")

	assert.Equal(t, "station-1", sm.Response.RequestID)
	require.NotNil(t, sm.Response.Original)
	require.NotNil(t, sm.Response.SelfCalibrated)
	assert.Len(t, sm.Response.Original.Rows, 41)
	assert.Equal(t, enginetest.OriginalValues, sm.Response.Original.Rows[0].Values)
}

// TestPipelineEndToEnd runs the worker against real Kafka and checks that
// every request gets exactly one response, failures included.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(t, broker, "test-pipeline")

	modes := map[string]domain.Mode{
		"req-pdsi":   domain.ModePDSI,
		"req-scpdsi": domain.ModeSCPDSI,
		"req-both":   domain.ModeBoth,
	}
	msgs := make([]kafkago.Message, 0, len(modes)+1)
	for key, mode := range modes {
		msgs = append(msgs, requestMessage(t, key, synthetic.Request(synthetic.MidLatitude, 1980, 2000, 2, mode)))
	}
	outOfRange := synthetic.Request(synthetic.MidLatitude, 1980, 2000, 2, domain.ModeBoth)
	outOfRange.End = 2010
	msgs = append(msgs, requestMessage(t, "req-range", outOfRange))

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	processor := pipeline.NewProcessor(newStack(cfg).Computer, discardLogger())
	p := pipeline.New(reader, processor, writer, discardLogger(), observability.NewMetricsForTesting(),
		cfg.BatchSize, cfg.WorkerConcurrency)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	received := make(map[string]sinkMessage, len(msgs))
	for len(received) < len(msgs) {
		sm := readResponse(ctx, t, consumer)
		received[sm.Key] = sm
	}

	pipelineCancel()
	require.NoError(t, <-errCh)

	for key, mode := range modes {
		sm, ok := received[key]
		require.True(t, ok, key)
		assert.Equal(t, domain.StatusOK, sm.Response.Status, key)
		assert.Equal(t, mode.WantsOriginal(), sm.Response.Original != nil, key)
		assert.Equal(t, mode.WantsSelfCalibrated(), sm.Response.SelfCalibrated != nil, key)
	}

	failed := received["req-range"]
	assert.Equal(t, domain.StatusFailed, failed.Response.Status)
	assert.Equal(t, "range_error", failed.Response.ErrorKind)
	assert.Equal(t, "range_error", failed.Headers["error_kind"])
	assert.Contains(t, failed.Response.Error, "2010-12")
}

// TestPipelineSkipsUndecodable verifies that a message that is not a request
// is committed without a response and the worker keeps going.
func TestPipelineSkipsUndecodable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(t, broker, "test-poison")

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		requestMessage(t, "good", synthetic.Request(synthetic.MidLatitude, 1990, 2000, 3, domain.ModeSCPDSI)),
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	processor := pipeline.NewProcessor(newStack(cfg).Computer, discardLogger())
	p := pipeline.New(reader, processor, writer, discardLogger(), metrics, cfg.BatchSize, cfg.WorkerConcurrency)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	sm := readResponse(ctx, t, consumer)
	assert.Equal(t, "good", sm.Key)
	assert.Equal(t, domain.StatusOK, sm.Response.Status)

	// The undecodable message produced nothing.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
