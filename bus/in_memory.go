package bus

import (
	"context"
	"sync"

	"github.com/hupe1980/convogate/core"
)

// InMemoryBus is a core.MessageBus that records published messages and fans
// them out to registered subscriber channels. Safe for concurrent use.
type InMemoryBus struct {
	mu          sync.RWMutex
	published   []core.BusMessage
	subscribers []chan core.BusMessage
}

// NewInMemoryBus constructs an empty in-memory bus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{}
}

// Publish implements core.MessageBus. Subscribers with full buffers miss the
// message; push updates are best effort by contract.
func (b *InMemoryBus) Publish(ctx context.Context, msg core.BusMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.published = append(b.published, msg)
	subs := make([]chan core.BusMessage, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe returns a buffered channel receiving future publications.
func (b *InMemoryBus) Subscribe() <-chan core.BusMessage {
	ch := make(chan core.BusMessage, 64)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

// Published returns a copy of all messages published so far. Test helper.
func (b *InMemoryBus) Published() []core.BusMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.BusMessage, len(b.published))
	copy(out, b.published)
	return out
}
