package broadcast

import (
	"context"
	"sync"
)

// MemStore is an in-process Store used by tests and single-process setups.
// It has the same observable semantics as the NATS-backed store: watchers
// get the current value first, then updates.
type MemStore struct {
	mu       sync.Mutex
	values   map[string]string
	watchers map[string][]chan Update
}

func NewMemStore() *MemStore {
	return &MemStore{
		values:   make(map[string]string),
		watchers: make(map[string][]chan Update),
	}
}

func (s *MemStore) Put(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.notify(Update{Key: key, Value: value})
	return nil
}

func (s *MemStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	s.notify(Update{Key: key, Deleted: true})
	return nil
}

func (s *MemStore) Watch(ctx context.Context, key string) (<-chan Update, error) {
	ch := make(chan Update, 16)

	s.mu.Lock()
	if v, ok := s.values[key]; ok {
		ch <- Update{Key: key, Value: v}
	}
	s.watchers[key] = append(s.watchers[key], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		chans := s.watchers[key]
		for i, c := range chans {
			if c == ch {
				s.watchers[key] = append(chans[:i], chans[i+1:]...)
				close(ch)
				break
			}
		}
	}()

	return ch, nil
}

// notify is called with s.mu held. Slow watchers drop updates rather than
// block the writer; the channel is best-effort by contract.
func (s *MemStore) notify(upd Update) {
	for _, ch := range s.watchers[upd.Key] {
		select {
		case ch <- upd:
		default:
		}
	}
}
