package telegraph

import (
	"context"
	"log"
	"sync"
)

// Broadcaster fans one message out to every configured adapter. A failing
// platform is logged and does not stop the others.
type Broadcaster struct {
	mu       sync.Mutex
	adapters []Adapter
	names    []string
}

// NewBroadcaster returns an empty Broadcaster. Publishing with no adapters
// is a no-op.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Add registers a connected adapter under a name used in log lines.
func (b *Broadcaster) Add(name string, a Adapter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.adapters = append(b.adapters, a)
	b.names = append(b.names, name)
}

// Len returns the number of registered adapters.
func (b *Broadcaster) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.adapters)
}

// Publish sends msg to every adapter and returns how many accepted it.
func (b *Broadcaster) Publish(ctx context.Context, msg OutboundMessage) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	adapters := append([]Adapter(nil), b.adapters...)
	names := append([]string(nil), b.names...)
	b.mu.Unlock()

	delivered := 0
	for i, a := range adapters {
		if err := a.Send(ctx, msg); err != nil {
			log.Printf("telegraph: %s: send failed: %v", names[i], err)
			continue
		}
		delivered++
	}
	return delivered
}

// Close closes every adapter, logging failures.
func (b *Broadcaster) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, a := range b.adapters {
		if err := a.Close(); err != nil {
			log.Printf("telegraph: %s: close: %v", b.names[i], err)
		}
	}
	b.adapters = nil
	b.names = nil
}
