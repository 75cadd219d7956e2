// Package notify delivers transient, user-facing status messages.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Severity categorizes a notification for display.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Kind tells the client what produced a notification.
type Kind string

const (
	KindSubmitted    Kind = "submitted"
	KindValidation   Kind = "validation"
	KindStore        Kind = "store"
	KindSubscription Kind = "subscription"
)

// Notification is a single toast-style message.
type Notification struct {
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	Kind     Kind      `json:"kind"`
	At       time.Time `json:"at"`
}

// Notifier accepts notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }

type multi []Notifier

func (m multi) Notify(n Notification) {
	for _, x := range m {
		x.Notify(n)
	}
}

// Multi fans a notification out to every notifier.
func Multi(notifiers ...Notifier) Notifier {
	return multi(notifiers)
}

// LogNotifier mirrors notifications into the structured log.
type LogNotifier struct {
	log *zap.SugaredLogger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(n Notification) {
	kv := []any{"title", n.Title, "kind", n.Kind, "severity", n.Severity}
	if n.Severity == SeverityError {
		l.log.Warnw(n.Message, kv...)
		return
	}
	l.log.Infow(n.Message, kv...)
}

// Feed buffers notifications for a single consumer. When the buffer is full
// the oldest notification is dropped.
type Feed struct {
	mu     sync.Mutex
	ch     chan Notification
	closed bool
}

// NewFeed creates a Feed holding up to size notifications.
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 1
	}
	return &Feed{ch: make(chan Notification, size)}
}

// Notify implements Notifier.
func (f *Feed) Notify(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for {
		select {
		case f.ch <- n:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

// C returns the channel notifications arrive on. It is closed by Close.
func (f *Feed) C() <-chan Notification {
	return f.ch
}

// Close stops the feed. Later notifications are discarded.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
}
