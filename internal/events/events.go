// Package events is an in-process publish/subscribe bus for domain change
// notifications.
package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TimeEntryStarted Type = "time_entry.started"
	TimeEntryStopped Type = "time_entry.stopped"
	TimeEntryCreated Type = "time_entry.created"
	TimeEntryUpdated Type = "time_entry.updated"
	TimeEntryDeleted Type = "time_entry.deleted"

	ProjectCreated Type = "project.created"
	ProjectUpdated Type = "project.updated"
	ProjectDeleted Type = "project.deleted"

	TaskNameChanged Type = "task_name.changed"
)

// Domain returns the part before the dot, e.g. "time_entry".
func (t Type) Domain() string {
	d, _, _ := strings.Cut(string(t), ".")
	return d
}

// Event carries only identifiers; consumers reload the record they need.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	EntityID  string    `json:"entityId"`
	Timestamp time.Time `json:"timestamp"`
}

func New(t Type, entityID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		EntityID:  entityID,
		Timestamp: time.Now(),
	}
}

type Handler func(ctx context.Context, e Event)

// Publisher is the side of the bus the services depend on.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus delivers every published event synchronously to each subscriber in
// subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h and returns a function that removes it. Calling the
// returned function more than once is a no-op.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(ctx, e)
	}
}

// Len reports the number of active subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) {}
