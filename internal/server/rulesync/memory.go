package rulesync

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

type subscribers struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan Change
}

func (s *subscribers) add() (uint64, <-chan Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		s.subs = make(map[uint64]chan Change)
	}

	id := s.nextID
	s.nextID++

	ch := make(chan Change, subscriberBuffer)
	s.subs[id] = ch

	return id, ch
}

// remove reports how many subscribers are left, or -1 when id was already gone.
func (s *subscribers) remove(id uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.subs[id]
	if !ok {
		return -1
	}

	delete(s.subs, id)
	close(ch)

	return len(s.subs)
}

func (s *subscribers) broadcast(change Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

type memoryBus struct {
	subscribers
}

// NewMemoryBus returns a bus local to the process.
func NewMemoryBus() Bus {
	return &memoryBus{}
}

func (b *memoryBus) Publish(_ context.Context, change Change) error {
	b.broadcast(change)
	return nil
}

func (b *memoryBus) Subscribe() (<-chan Change, func()) {
	id, ch := b.add()

	var once sync.Once

	return ch, func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *memoryBus) Close() error {
	return nil
}
