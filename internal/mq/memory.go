package mq

import (
	"context"
	"errors"
	"maps"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	memoryQueueSize = 256

	// AttributeDeliveryAttempt carries the 1-based delivery count of a
	// message on the memory backend.
	AttributeDeliveryAttempt = "delivery_attempt"

	memoryMaxDeliveries     = 2
	memoryRedeliveryBackoff = time.Second
)

var errMemoryClosed = errors.New("memory broker closed")

// MemoryBroker is an in-process backend. Each channel is a buffered queue
// shared by every subscriber; a message goes to exactly one of them. A
// message that fails is redelivered once after a backoff and dropped if it
// fails again.
type MemoryBroker struct {
	mu      sync.Mutex
	queues  map[string]chan Message
	closed  chan struct{}
	once    sync.Once
	backoff time.Duration
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		queues:  make(map[string]chan Message),
		closed:  make(chan struct{}),
		backoff: memoryRedeliveryBackoff,
	}
}

func (b *MemoryBroker) queue(channel string) chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[channel]
	if !ok {
		q = make(chan Message, memoryQueueSize)
		b.queues[channel] = q
	}
	return q
}

func (b *MemoryBroker) isClosed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}

// Publish enqueues a message. It blocks while the queue is full.
func (b *MemoryBroker) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}
	if b.isClosed() {
		return "", errMemoryClosed
	}

	msg := Message{ID: uuid.NewString(), Data: data, Attributes: withAttempt(attrs, 1)}
	select {
	case <-b.closed:
		return "", errMemoryClosed
	case <-ctx.Done():
		return "", ctx.Err()
	case b.queue(channel) <- msg:
		return msg.ID, nil
	}
}

func (b *MemoryBroker) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}

	q := b.queue(channel)
	for {
		if b.isClosed() {
			return errMemoryClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.closed:
			return errMemoryClosed
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				b.redeliver(q, msg)
			}
		}
	}
}

// redeliver puts a failed message back on q after the backoff, unless it has
// already been delivered memoryMaxDeliveries times.
func (b *MemoryBroker) redeliver(q chan Message, msg Message) {
	attempt := deliveryAttempt(msg)
	if attempt >= memoryMaxDeliveries {
		return
	}
	msg.Attributes = withAttempt(msg.Attributes, attempt+1)

	time.AfterFunc(b.backoff, func() {
		select {
		case <-b.closed:
		case q <- msg:
		default:
		}
	})
}

func (b *MemoryBroker) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func deliveryAttempt(msg Message) int {
	n, err := strconv.Atoi(msg.Attributes[AttributeDeliveryAttempt])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func withAttempt(attrs map[string]string, attempt int) map[string]string {
	out := make(map[string]string, len(attrs)+1)
	maps.Copy(out, attrs)
	out[AttributeDeliveryAttempt] = strconv.Itoa(attempt)
	return out
}
