// Package bridgetest provides an in-memory NativeBridge for tests.
package bridgetest

import (
	"context"
	"sync"

	"github.com/tinywideclouds/go-push-kit/pkg/push"
)

// Bridge is a scriptable NativeBridge. The zero value behaves like an
// attached Android shell that grants permission and issues Token on
// Register. Set the error fields to force failures.
type Bridge struct {
	mu sync.Mutex

	Detached bool   // Available() returns !Detached
	OS       string // defaults to "android"

	Permission    push.PermissionStatus // defaults to granted
	PermissionErr error

	Token       string // token delivered on Register, defaults to "native-token-1"
	RegisterErr error
	TopicErr    error
	ScheduleErr error

	listeners map[string][]*handle

	SubscribedTopics   []string
	UnsubscribedTopics []string
	Unregistered       bool
	Channels           []push.Channel
	Scheduled          []push.LocalNotification
}

type handle struct {
	bridge *Bridge
	event  string
	fn     func(map[string]any)
	gone   bool
}

func (h *handle) Remove() {
	h.bridge.mu.Lock()
	defer h.bridge.mu.Unlock()
	h.gone = true
}

func (b *Bridge) Available() bool { return !b.Detached }

func (b *Bridge) Platform() string {
	if b.OS == "" {
		return "android"
	}
	return b.OS
}

func (b *Bridge) RequestPermissions(_ context.Context) (push.PermissionStatus, error) {
	if b.PermissionErr != nil {
		return push.PermissionUnknown, b.PermissionErr
	}
	if b.Permission == "" {
		return push.PermissionGranted, nil
	}
	return b.Permission, nil
}

func (b *Bridge) CheckPermissions(ctx context.Context) (push.PermissionStatus, error) {
	return b.RequestPermissions(ctx)
}

// Register synchronously emits an EventRegistration carrying Token,
// mimicking a shell whose round trip has already completed.
func (b *Bridge) Register(_ context.Context) error {
	if b.RegisterErr != nil {
		return b.RegisterErr
	}
	token := b.Token
	if token == "" {
		token = "native-token-1"
	}
	b.Emit(push.EventRegistration, map[string]any{"value": token})
	return nil
}

func (b *Bridge) Unregister(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Unregistered = true
	return nil
}

func (b *Bridge) AddListener(event string, fn func(map[string]any)) (push.BridgeHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[string][]*handle)
	}
	h := &handle{bridge: b, event: event, fn: fn}
	b.listeners[event] = append(b.listeners[event], h)
	return h, nil
}

// Emit delivers a bridge event to every live listener.
func (b *Bridge) Emit(event string, data map[string]any) {
	b.mu.Lock()
	snapshot := make([]*handle, 0, len(b.listeners[event]))
	for _, h := range b.listeners[event] {
		if !h.gone {
			snapshot = append(snapshot, h)
		}
	}
	b.mu.Unlock()

	for _, h := range snapshot {
		h.fn(data)
	}
}

// ListenerCount reports live listeners for an event.
func (b *Bridge) ListenerCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, h := range b.listeners[event] {
		if !h.gone {
			n++
		}
	}
	return n
}

func (b *Bridge) SubscribeToTopic(_ context.Context, topic string) error {
	if b.TopicErr != nil {
		return b.TopicErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.SubscribedTopics = append(b.SubscribedTopics, topic)
	return nil
}

func (b *Bridge) UnsubscribeFromTopic(_ context.Context, topic string) error {
	if b.TopicErr != nil {
		return b.TopicErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.UnsubscribedTopics = append(b.UnsubscribedTopics, topic)
	return nil
}

func (b *Bridge) CreateChannel(_ context.Context, ch push.Channel) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Channels = append(b.Channels, ch)
	return nil
}

func (b *Bridge) DeleteChannel(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.Channels {
		if ch.ID == id {
			b.Channels = append(b.Channels[:i], b.Channels[i+1:]...)
			return nil
		}
	}
	return nil
}

func (b *Bridge) ListChannels(_ context.Context) ([]push.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]push.Channel, len(b.Channels))
	copy(out, b.Channels)
	return out, nil
}

func (b *Bridge) Schedule(_ context.Context, n push.LocalNotification) error {
	if b.ScheduleErr != nil {
		return b.ScheduleErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Scheduled = append(b.Scheduled, n)
	return nil
}

func (b *Bridge) CancelSchedule(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, n := range b.Scheduled {
		if n.ID == id {
			b.Scheduled = append(b.Scheduled[:i], b.Scheduled[i+1:]...)
			return nil
		}
	}
	return nil
}

func (b *Bridge) PendingSchedules(_ context.Context) ([]push.LocalNotification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]push.LocalNotification, len(b.Scheduled))
	copy(out, b.Scheduled)
	return out, nil
}

var _ push.NativeBridge = (*Bridge)(nil)
