package testutil

import (
	"context"
	"sync"

	"github.com/bankmore/ledger/internal/domain"
)

type PublishedEvent struct {
	Topic string
	Key   string
	Event domain.Event
}

// CapturingPublisher records published events in memory so tests can assert
// on what a command emitted without a broker.
type CapturingPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
	Err    error
}

func (p *CapturingPublisher) Publish(_ context.Context, topic, key string, event domain.Event) error {
	if p.Err != nil {
		return p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{Topic: topic, Key: key, Event: event})
	return nil
}

func (p *CapturingPublisher) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

func (p *CapturingPublisher) EventsOn(topic string) []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []PublishedEvent
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}
