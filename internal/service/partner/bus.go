// Package partner implements the durable, at-least-once life-event channel
// between a primary user and their linked partner.
package partner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamdamapp/backend/internal/model/event"
)

var (
	ErrNoPartnerLinked  = errors.New("no partner linked")
	ErrUnknownEventType = errors.New("unknown event type")
)

// subscriberBuffer bounds the per-subscriber push queue. Overflowing events
// are dropped from push delivery; the catch-up pull recovers them.
const subscriberBuffer = 64

// Links resolves the currently-linked partner for a user. Read-only input;
// link lifecycle is owned by the pairing flow.
type Links interface {
	PartnerOf(ctx context.Context, userID string) (string, bool, error)
}

// Log is the durable append log backing the bus.
type Log interface {
	AppendEvent(ctx context.Context, ev event.PartnerEvent) error
	ListUnacknowledged(ctx context.Context, receiverID string) ([]event.PartnerEvent, error)
	AcknowledgeEvent(ctx context.Context, id, receiverID string) error
}

// Bus appends life events to the durable log and fans them out to live
// subscribers. Publish order per sender is delivery order; delivery is
// at-least-once, so consumers must tolerate duplicate event ids.
type Bus struct {
	log   Log
	links Links

	mu   sync.RWMutex
	subs map[string]map[string]chan event.PartnerEvent // receiverID → subID → queue
}

// NewBus wires the bus to its durable log and link registry.
func NewBus(log Log, links Links) *Bus {
	return &Bus{
		log:   log,
		links: links,
		subs:  make(map[string]map[string]chan event.PartnerEvent),
	}
}

// Publish appends a new immutable event for the sender's linked partner.
// The append is atomic; a failure leaves nothing half-written and is surfaced
// to the sender for retry. Publishing never blocks on subscriber availability.
func (b *Bus) Publish(ctx context.Context, senderID string, eventType event.Type, payload json.RawMessage) (event.PartnerEvent, error) {
	if !eventType.Valid() {
		return event.PartnerEvent{}, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}

	receiverID, ok, err := b.links.PartnerOf(ctx, senderID)
	if err != nil {
		return event.PartnerEvent{}, fmt.Errorf("resolve partner link: %w", err)
	}
	if !ok || receiverID == senderID {
		return event.PartnerEvent{}, ErrNoPartnerLinked
	}

	ev := event.PartnerEvent{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Type:       eventType,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}
	if err := b.log.AppendEvent(ctx, ev); err != nil {
		return event.PartnerEvent{}, fmt.Errorf("publish event: %w", err)
	}

	b.fanOut(ev)
	return ev, nil
}

// fanOut pushes the event to every live subscriber of the receiver without
// blocking. A full queue drops the push; the event stays in the log.
func (b *Bus) fanOut(ev event.PartnerEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for subID, queue := range b.subs[ev.ReceiverID] {
		select {
		case queue <- ev:
		default:
			log.Printf("[partner] subscriber %s queue full, dropping push for event %s", subID, ev.ID)
		}
	}
}

// Subscription is one live push listener.
type Subscription struct {
	id         string
	receiverID string
	cancel     context.CancelFunc
	done       chan struct{}
}

// Close stops the subscription and releases its queue.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

// Subscribe registers a long-lived listener for every event addressed to the
// receiver. Registration happens before the backlog replay, so an event
// published in between may arrive twice; de-duplication is the consumer's
// job. The listener runs until ctx is cancelled or Close is called.
func (b *Bus) Subscribe(ctx context.Context, receiverID string, onEvent func(event.PartnerEvent)) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		id:         uuid.NewString(),
		receiverID: receiverID,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	queue := make(chan event.PartnerEvent, subscriberBuffer)

	b.mu.Lock()
	if b.subs[receiverID] == nil {
		b.subs[receiverID] = make(map[string]chan event.PartnerEvent)
	}
	b.subs[receiverID][sub.id] = queue
	b.mu.Unlock()

	go func() {
		defer close(sub.done)
		defer b.unsubscribe(sub)

		// Reconcile events published while disconnected.
		backlog, err := b.log.ListUnacknowledged(subCtx, receiverID)
		if err != nil {
			log.Printf("[partner] backlog replay failed for %s: %v", receiverID, err)
		}
		for _, ev := range backlog {
			onEvent(ev)
		}

		for {
			select {
			case <-subCtx.Done():
				return
			case ev := <-queue:
				onEvent(ev)
			}
		}
	}()

	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if queues, ok := b.subs[sub.receiverID]; ok {
		delete(queues, sub.id)
		if len(queues) == 0 {
			delete(b.subs, sub.receiverID)
		}
	}
}

// Backlog returns the receiver's unacknowledged events for a pull-based
// reconciliation.
func (b *Bus) Backlog(ctx context.Context, receiverID string) ([]event.PartnerEvent, error) {
	return b.log.ListUnacknowledged(ctx, receiverID)
}

// Acknowledge marks an event as seen by its receiver. The transition happens
// at most once; repeats are no-ops.
func (b *Bus) Acknowledge(ctx context.Context, receiverID, eventID string) error {
	return b.log.AcknowledgeEvent(ctx, eventID, receiverID)
}
