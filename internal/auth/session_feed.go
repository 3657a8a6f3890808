package auth

import (
	"context"
	"sync"
	"time"
)

const (
	// SessionEventSignedIn is published when a principal completes sign-in.
	SessionEventSignedIn = "signed-in"
	// SessionEventSignedOut is published when a principal signs out.
	SessionEventSignedOut = "signed-out"

	sessionFeedBufferSize = 8
)

// SessionEvent describes a change to the current principal of a session.
type SessionEvent struct {
	EventType string
	Principal Principal
	Timestamp time.Time
}

// SessionFeed delivers current-principal change events to at most one
// subscriber per principal. Subscribing again for the same principal replaces
// the previous subscriber, mirroring a client re-attaching its listener.
type SessionFeed struct {
	mu          sync.Mutex
	subscribers map[string]*sessionSubscriber
}

type sessionSubscriber struct {
	stream chan SessionEvent
}

// NewSessionFeed constructs an empty feed.
func NewSessionFeed() *SessionFeed {
	return &SessionFeed{
		subscribers: make(map[string]*sessionSubscriber),
	}
}

// Subscribe registers the sole subscriber for the given principal id and
// returns the event stream plus a cancel function. A newer subscriber
// displaces the previous one; displaced streams receive no further events.
// Streams are never closed so publishers can't race a teardown.
func (f *SessionFeed) Subscribe(ctx context.Context, uid string) (<-chan SessionEvent, func()) {
	if uid == "" {
		ch := make(chan SessionEvent)
		close(ch)
		return ch, func() {}
	}

	subscriber := &sessionSubscriber{
		stream: make(chan SessionEvent, sessionFeedBufferSize),
	}

	f.mu.Lock()
	f.subscribers[uid] = subscriber
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if current, ok := f.subscribers[uid]; ok && current == subscriber {
			delete(f.subscribers, uid)
		}
		f.mu.Unlock()
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()

	return subscriber.stream, cancel
}

// Publish delivers the event to the principal's subscriber, dropping it when
// no subscriber is attached or the stream buffer is full.
func (f *SessionFeed) Publish(event SessionEvent) {
	if event.Principal.UID == "" || event.EventType == "" {
		return
	}
	f.mu.Lock()
	subscriber, ok := f.subscribers[event.Principal.UID]
	f.mu.Unlock()
	if !ok {
		return
	}
	select {
	case subscriber.stream <- event:
	default:
	}
}
