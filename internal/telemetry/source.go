package telemetry

import "sync"

// ChannelSource is a FocusSource fed by the host through Focus and Blur.
// Events sent while nobody is subscribed are dropped.
type ChannelSource struct {
	mu   sync.Mutex
	subs map[int]chan FocusEvent
	next int
}

// NewChannelSource creates an empty source.
func NewChannelSource() *ChannelSource {
	return &ChannelSource{subs: make(map[int]chan FocusEvent)}
}

func (s *ChannelSource) Subscribe() (<-chan FocusEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	ch := make(chan FocusEvent, 16)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Focus delivers a focus event to every subscriber.
func (s *ChannelSource) Focus() { s.publish(FocusEvent{Focused: true}) }

// Blur delivers a blur event to every subscriber.
func (s *ChannelSource) Blur() { s.publish(FocusEvent{Focused: false}) }

// Subscribers returns the number of live subscriptions.
func (s *ChannelSource) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *ChannelSource) publish(ev FocusEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
