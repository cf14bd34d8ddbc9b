// Package events fans queue changes out to listening clients so they can
// refresh their view after another caller mutates a doctor's queue.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Type names a queue change.
type Type string

const (
	QueueJoined   Type = "joined"
	QueueAdvanced Type = "advanced"
	SessionEnded  Type = "session_ended"
	TriageUpdated Type = "triage_updated"
)

// Event describes one change to a doctor's queue.
type Event struct {
	Type        Type      `json:"type"`
	DoctorID    string    `json:"doctorId"`
	EntryID     string    `json:"entryId,omitempty"`
	TokenNumber int       `json:"tokenNumber,omitempty"`
	At          time.Time `json:"at"`
}

// Bus publishes and subscribes to per-doctor queue events.
type Bus interface {
	Publish(ctx context.Context, e Event) error
	// Subscribe streams the doctor's events until ctx is cancelled, then closes the channel.
	Subscribe(ctx context.Context, doctorID string) (<-chan Event, error)
	Close() error
}

const subscriberBuffer = 32

// LocalBus delivers events within a single process.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	closed bool
}

var _ Bus = (*LocalBus)(nil)

// NewLocalBus creates an in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[chan Event]struct{})}
}

func (b *LocalBus) Publish(_ context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[e.DoctorID] {
		select {
		case ch <- e:
		default:
			log.Warn().Str("doctor_id", e.DoctorID).Str("event", string(e.Type)).Msg("subscriber channel full, dropping event")
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, doctorID string) (<-chan Event, error) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	if b.subs[doctorID] == nil {
		b.subs[doctorID] = make(map[chan Event]struct{})
	}
	b.subs[doctorID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(doctorID, ch)
	}()
	return ch, nil
}

func (b *LocalBus) remove(doctorID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.subs[doctorID]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(b.subs, doctorID)
	}
}

// Close closes every subscriber channel.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for doctorID, subs := range b.subs {
		for ch := range subs {
			close(ch)
		}
		delete(b.subs, doctorID)
	}
	b.closed = true
	return nil
}
