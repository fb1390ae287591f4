package events

import (
	"context"
	"sync"
	"time"
)

// ScanEvent is one progress notification for a running market scan. Events
// are live-only: subscribers joining mid-scan see only what happens after
// they subscribe.
type ScanEvent struct {
	ScanID  string         `json:"scan_id"`
	Seq     int64          `json:"seq"`
	Type    string         `json:"type"`
	Ts      string         `json:"ts"`
	Payload map[string]any `json:"payload"`
}

type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan ScanEvent]struct{}
	seq         map[string]int64
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: map[string]map[chan ScanEvent]struct{}{},
		seq:         map[string]int64{},
	}
}

func (b *Broker) Subscribe(ctx context.Context, scanID string) <-chan ScanEvent {
	ch := make(chan ScanEvent, 16)

	b.mu.Lock()
	if b.subscribers[scanID] == nil {
		b.subscribers[scanID] = map[chan ScanEvent]struct{}{}
	}
	b.subscribers[scanID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if b.subscribers[scanID] != nil {
			delete(b.subscribers[scanID], ch)
			if len(b.subscribers[scanID]) == 0 {
				delete(b.subscribers, scanID)
			}
		}
		// Closed under the lock so Emit can never send on a closed channel.
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Emit stamps and publishes an event for one scan. Slow subscribers are
// skipped rather than blocked on. Sends stay under the lock so a channel
// being unsubscribed is never closed mid-publish; sends never block, so
// holding the lock here is safe.
func (b *Broker) Emit(scanID, eventType string, payload map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq[scanID]++
	event := ScanEvent{
		ScanID:  scanID,
		Seq:     b.seq[scanID],
		Type:    eventType,
		Ts:      time.Now().UTC().Format(time.RFC3339),
		Payload: payload,
	}
	for ch := range b.subscribers[scanID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Finish drops the sequence counter for a completed scan.
func (b *Broker) Finish(scanID string) {
	b.mu.Lock()
	delete(b.seq, scanID)
	b.mu.Unlock()
}
