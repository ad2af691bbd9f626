package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	applogger "VolMonitor/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer reads registered topics and fans messages out to a worker pool.
// Every partition is pinned to one worker, so its messages are handled and
// committed in offset order.
type Consumer struct {
	cfg      *ConsumerConfig
	l        *applogger.Logger
	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler
	queues   []chan kafka.Message
	dlq      *kafka.Writer
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(l *applogger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "volmon",
		WorkerCount: 1,
		BufferSize:  16,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if l == nil {
		l = applogger.Nop()
	}

	c := &Consumer{
		cfg:      cfg,
		l:        l,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]MessageHandler),
		stopChan: make(chan struct{}),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	consumerMetricsOnce.Do(initConsumerMetrics)
	return c, nil
}

// RegisterHandler registers a handler for its topic. Must be called before Start.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, ok := c.handlers[h.Topic()]; ok {
		c.l.Warn("kafka handler already registered", applogger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

// Start creates readers for registered topics and launches the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
	}
	c.startWorkers()
	var readers sync.WaitGroup
	for topic, r := range c.readers {
		readers.Add(1)
		go func(topic string, r *kafka.Reader) {
			defer readers.Done()
			c.fetch(topic, r)
		}(topic, r)
	}
	// workers drain the channel once every reader has returned
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		readers.Wait()
		c.closeQueues()
	}()
	c.l.Info("kafka consumer started", applogger.Int("workers", c.cfg.WorkerCount), applogger.String("group", c.cfg.GroupID))
	return nil
}

// Stop signals readers and waits for in-flight messages up to ctx.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stopChan)
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		}
		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.l.Warn("close kafka reader", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.l.Warn("close dlq writer", applogger.Error(cerr))
			}
		}
		c.l.Info("kafka consumer stopped")
	})
	return err
}

func (c *Consumer) fetch(topic string, r *kafka.Reader) {
	for {
		select {
		case <-c.stopChan:
			return
		default:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		m, err := r.FetchMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				c.l.Warn("kafka fetch", applogger.String("topic", topic), applogger.Error(err))
			}
			continue
		}
		// blocking send applies backpressure to the reader
		q := c.queueFor(topic, m.Partition)
		select {
		case q <- m:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(q)))
		case <-c.stopChan:
			return
		}
	}
}

// startWorkers launches one goroutine per queue.
func (c *Consumer) startWorkers() {
	n := c.cfg.WorkerCount
	if n < 1 {
		n = 1
	}
	c.queues = make([]chan kafka.Message, n)
	for i := range c.queues {
		q := make(chan kafka.Message, c.cfg.BufferSize)
		c.queues[i] = q
		c.wg.Add(1)
		go c.worker(q)
	}
}

func (c *Consumer) closeQueues() {
	for _, q := range c.queues {
		close(q)
	}
}

// queueFor maps a topic partition to a fixed worker queue.
func (c *Consumer) queueFor(topic string, partition int) chan kafka.Message {
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	idx := (h.Sum32() + uint32(partition)) % uint32(len(c.queues))
	return c.queues[idx]
}

func (c *Consumer) worker(q <-chan kafka.Message) {
	defer c.wg.Done()
	for m := range q {
		c.process(m)
	}
}

func (c *Consumer) process(m kafka.Message) {
	h, ok := c.handlers[m.Topic]
	if !ok {
		return
	}
	start := time.Now()
	attempts, err := handleWithRetry(context.Background(), h, m.Value, c.cfg.RetryMax, c.cfg.BackoffMin, c.cfg.BackoffMax, c.stopChan)
	result := "ok"
	if err != nil {
		c.l.Error("kafka handle failed",
			applogger.String("topic", m.Topic),
			applogger.Int("partition", m.Partition),
			applogger.Int("attempts", attempts),
			applogger.Error(err))
		result = "dropped"
		if c.dlq != nil {
			result = "dlq"
			if derr := c.dlq.WriteMessages(context.Background(), kafka.Message{
				Topic:   c.cfg.DLQTopic,
				Key:     m.Key,
				Value:   m.Value,
				Headers: []kafka.Header{{Key: "source_topic", Value: []byte(m.Topic)}, {Key: "error", Value: []byte(err.Error())}},
			}); derr != nil {
				c.l.Error("kafka dlq write", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(derr))
			}
		}
	}
	consumerHandled.WithLabelValues(m.Topic, result).Inc()
	consumerHandleLatency.WithLabelValues(m.Topic).Observe(time.Since(start).Seconds())

	// Commits are cumulative per partition, so a failed message cannot be held
	// back while later ones commit. Without a DLQ it is logged and skipped.
	if r := c.readers[m.Topic]; r != nil {
		c.commitWithRetry(r, m, 3)
	}
}

// handleWithRetry calls h until it succeeds, retryMax retries are used or stop closes.
func handleWithRetry(ctx context.Context, h MessageHandler, data []byte, retryMax int, min, max time.Duration, stop <-chan struct{}) (int, error) {
	attempts := 0
	for {
		attempts++
		err := safeHandle(ctx, h, data)
		if err == nil || attempts > retryMax {
			return attempts, err
		}
		if errors.Is(err, ErrPermanent) {
			return attempts, err
		}
		select {
		case <-time.After(backoffWithJitter(min, max, attempts)):
		case <-stop:
			return attempts, err
		}
	}
}

// ErrPermanent marks handler errors that retrying cannot fix, such as undecodable payloads.
var ErrPermanent = errors.New("permanent failure")

func safeHandle(ctx context.Context, h MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler for %s: %v", h.Topic(), r)
		}
	}()
	return h.Handle(ctx, data)
}

func (c *Consumer) commitWithRetry(r *kafka.Reader, m kafka.Message, max int) {
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, m)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.l.Error("kafka commit failed", applogger.String("topic", m.Topic), applogger.Int("attempts", max), applogger.Error(err))
}

// backoffWithJitter grows exponentially from min, capped at max, minus up to 50% jitter.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt < 31 {
		if d := min << uint(attempt-1); d > 0 && d < max {
			exp = d
		}
	}
	if half := int64(exp) / 2; half > 0 {
		exp -= time.Duration(rand.Int63n(half))
	}
	return exp
}

var (
	consumerMetricsOnce   sync.Once
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandled       *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
)

func initConsumerMetrics() {
	consumerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "volmon_kafka_consumer_queue_depth",
		Help: "Messages waiting in the consumer queue",
	}, []string{"topic"})
	consumerHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volmon_kafka_consumer_messages_total",
		Help: "Messages handled by result",
	}, []string{"topic", "result"})
	consumerHandleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "volmon_kafka_consumer_handle_seconds",
		Help: "Handling time per message including retries",
	}, []string{"topic"})
}
