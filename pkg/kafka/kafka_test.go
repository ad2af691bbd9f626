package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type flakyHandler struct {
	failures int
	calls    int
	err      error
}

func (h *flakyHandler) Topic() string { return "t" }

func (h *flakyHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.calls <= h.failures {
		return h.err
	}
	return nil
}

type panicHandler struct{}

func (panicHandler) Topic() string                        { return "p" }
func (panicHandler) Handle(context.Context, []byte) error { panic("boom") }

func TestHandleWithRetryRecovers(t *testing.T) {
	h := &flakyHandler{failures: 2, err: errors.New("transient")}
	attempts, err := handleWithRetry(context.Background(), h, nil, 3, time.Millisecond, 2*time.Millisecond, nil)
	if err != nil || attempts != 3 {
		t.Fatalf("attempts=%d err=%v", attempts, err)
	}
}

func TestHandleWithRetryGivesUp(t *testing.T) {
	h := &flakyHandler{failures: 10, err: errors.New("down")}
	attempts, err := handleWithRetry(context.Background(), h, nil, 2, time.Millisecond, time.Millisecond, nil)
	if err == nil || attempts != 3 {
		t.Fatalf("attempts=%d err=%v", attempts, err)
	}
}

func TestHandleWithRetryPermanent(t *testing.T) {
	h := &flakyHandler{failures: 10, err: fmt.Errorf("bad payload: %w", ErrPermanent)}
	attempts, err := handleWithRetry(context.Background(), h, nil, 5, time.Millisecond, time.Millisecond, nil)
	if !errors.Is(err, ErrPermanent) || attempts != 1 {
		t.Fatalf("permanent errors must not be retried: attempts=%d err=%v", attempts, err)
	}
}

func TestHandleWithRetryPanic(t *testing.T) {
	_, err := handleWithRetry(context.Background(), panicHandler{}, nil, 0, time.Millisecond, time.Millisecond, nil)
	if err == nil {
		t.Fatalf("panic must surface as error")
	}
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt < 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, time.Second, attempt)
		if d <= 0 || d > time.Second {
			t.Fatalf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}

func TestEncode(t *testing.T) {
	b, err := Encode(map[string]int{"a": 1})
	if err != nil || string(b) != `{"a":1}` {
		t.Fatalf("Encode json: %s %v", b, err)
	}
	if b, _ := Encode("x"); string(b) != "x" {
		t.Fatalf("Encode string: %s", b)
	}
	if _, err := Encode(func() {}); err == nil {
		t.Fatalf("expected marshal error")
	}
}

func TestParseCompression(t *testing.T) {
	if ParseCompression("zstd") != kafka.Zstd || ParseCompression("nope") != kafka.Gzip {
		t.Fatalf("unexpected codec mapping")
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := NewConsumer(nil); err == nil {
		t.Fatalf("expected error without brokers")
	}
}

type orderRecorder struct {
	mu   sync.Mutex
	seen map[int][]int
}

func (o *orderRecorder) Topic() string { return "updates" }

func (o *orderRecorder) Handle(_ context.Context, b []byte) error {
	var p, off int
	if _, err := fmt.Sscanf(string(b), "%d:%d", &p, &off); err != nil {
		return err
	}
	time.Sleep(time.Duration(rand.Intn(200)) * time.Microsecond)
	o.mu.Lock()
	o.seen[p] = append(o.seen[p], off)
	o.mu.Unlock()
	return nil
}

func TestPartitionsKeepOffsetOrder(t *testing.T) {
	c, err := NewConsumer(nil, WithConsumerBrokers([]string{"localhost:9092"}), WithConsumerWorkers(8), WithConsumerBufferSize(4))
	if err != nil {
		t.Fatal(err)
	}
	rec := &orderRecorder{seen: make(map[int][]int)}
	c.RegisterHandler(rec)
	c.startWorkers()

	const partitions, perPartition = 3, 300
	for off := 0; off < perPartition; off++ {
		for p := 0; p < partitions; p++ {
			m := kafka.Message{Topic: "updates", Partition: p, Offset: int64(off), Value: []byte(fmt.Sprintf("%d:%d", p, off))}
			c.queueFor(m.Topic, m.Partition) <- m
		}
	}
	c.closeQueues()
	c.wg.Wait()

	for p := 0; p < partitions; p++ {
		got := rec.seen[p]
		if len(got) != perPartition {
			t.Fatalf("partition %d: handled %d of %d", p, len(got), perPartition)
		}
		for i := 1; i < len(got); i++ {
			if got[i] < got[i-1] {
				t.Fatalf("partition %d: offset %d handled after %d", p, got[i], got[i-1])
			}
		}
	}
}

func TestQueueForIsStable(t *testing.T) {
	c, err := NewConsumer(nil, WithConsumerBrokers([]string{"localhost:9092"}), WithConsumerWorkers(4))
	if err != nil {
		t.Fatal(err)
	}
	c.startWorkers()
	defer func() {
		c.closeQueues()
		c.wg.Wait()
	}()
	for p := 0; p < 16; p++ {
		if c.queueFor("updates", p) != c.queueFor("updates", p) {
			t.Fatalf("partition %d moved between queues", p)
		}
	}
}
