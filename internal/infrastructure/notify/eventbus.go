// Package notify delivers user-visible notifications over an event bus.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	evbus "github.com/asaskevich/EventBus"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
)

// Topic carries entity.Notification values.
const Topic = "notification"

// Bus publishes notifications to every subscriber. Delivery is synchronous.
// The event bus matches handlers by code pointer, so subscribers are kept in
// a registry behind a single bus handler and can be removed individually.
type Bus struct {
	bus    evbus.Bus
	logger *slog.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(entity.Notification)
}

func NewBus(logger *slog.Logger) *Bus {
	b := &Bus{
		bus:    evbus.New(),
		logger: logger,
		subs:   make(map[uint64]func(entity.Notification)),
	}
	if err := b.bus.Subscribe(Topic, b.dispatch); err != nil {
		// only fails for a non-func handler
		panic(err)
	}
	return b
}

// Notify logs and publishes n.
func (b *Bus) Notify(n entity.Notification) {
	level := slog.LevelInfo
	switch n.Level {
	case entity.NoticeWarning:
		level = slog.LevelWarn
	case entity.NoticeError:
		level = slog.LevelError
	}
	b.logger.Log(context.Background(), level, "notification", "session", n.SessionID, "title", n.Title, "message", n.Message)
	b.bus.Publish(Topic, n)
}

func (b *Bus) dispatch(n entity.Notification) {
	b.mu.RLock()
	handlers := make([]func(entity.Notification), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(n)
	}
}

// Subscribe registers fn for every notification. The returned func removes it.
func (b *Bus) Subscribe(fn func(entity.Notification)) (func(), error) {
	if fn == nil {
		return nil, errors.New("nil notification handler")
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}, nil
}

// Collector records notifications for one session. Used where there is no
// push channel back to the user (HTTP requests, CLI runs).
type Collector struct {
	SessionID int64

	mu    sync.Mutex
	items []entity.Notification
}

func (c *Collector) Handle(n entity.Notification) {
	if n.SessionID != c.SessionID {
		return
	}
	c.mu.Lock()
	c.items = append(c.items, n)
	c.mu.Unlock()
}

// Items returns the collected notifications in arrival order.
func (c *Collector) Items() []entity.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entity.Notification, len(c.items))
	copy(out, c.items)
	return out
}

var _ port.Notifier = (*Bus)(nil)
