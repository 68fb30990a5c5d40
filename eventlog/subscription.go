package eventlog

import (
	"sync"

	"github.com/forestrie/go-dwn/dwn"
)

// subscriber is one active Subscribe call's delivery channel: track what
// the caller has seen, push only what is new, on every Append.
type subscriber struct {
	tenant string
	ch     chan dwn.Event
	once   sync.Once
}

func (sub *subscriber) close() {
	sub.once.Do(func() { close(sub.ch) })
}

// Subscribe returns a dwn.Subscription delivering every event appended to
// tenant's log from this call forward. This is the in-process half of
// Subscribe; a caller needing a wire transport adapts the returned channel
// to whatever protocol it serves.
func (s *Store) Subscribe(tenant string) *dwn.Subscription {
	sub := &subscriber{tenant: tenant, ch: make(chan dwn.Event, SubscriptionBuffer)}

	s.mu.Lock()
	s.subscribers[tenant] = append(s.subscribers[tenant], sub)
	s.mu.Unlock()

	return &dwn.Subscription{
		Events: sub.ch,
		Close: func() error {
			s.mu.Lock()
			subs := s.subscribers[tenant]
			for i, other := range subs {
				if other == sub {
					s.subscribers[tenant] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			s.mu.Unlock()
			sub.close()
			return nil
		},
	}
}

// notify delivers evt to every active subscriber for tenant. A subscriber
// whose buffer is full is skipped rather than blocking the append path:
// the log itself never drops or reorders accepted entries, but a slow
// subscriber's live feed is best-effort; it can recover missed events with
// EventsGet/MessagesGet using the last watermark it saw.
func (s *Store) notify(tenant string, evt dwn.Event) {
	s.mu.Lock()
	subs := append([]*subscriber(nil), s.subscribers[tenant]...)
	s.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- evt:
		default:
		}
	}
}
