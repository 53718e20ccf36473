package notify

import (
	"log"
	"sync"
)

type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeInfo    Type = "info"
)

// Notification is a fire-and-forget user-facing toast. The core never consumes
// a return value from the sink.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    Type   `json:"type"`
}

type Sink interface {
	Notify(n Notification)
}

// LogSink writes notifications to the process log.
type LogSink struct{}

func (LogSink) Notify(n Notification) {
	log.Printf("[notify] type=%s title=%q message=%q", n.Type, n.Title, n.Message)
}

// Memory records notifications for inspection in tests and per-request handlers.
type Memory struct {
	mu   sync.Mutex
	sent []Notification
}

func (m *Memory) Notify(n Notification) {
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
}

// All returns a copy of every notification seen so far.
func (m *Memory) All() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, len(m.sent))
	copy(out, m.sent)
	return out
}

// Tee fans a notification out to multiple sinks.
type Tee []Sink

func (t Tee) Notify(n Notification) {
	for _, s := range t {
		s.Notify(n)
	}
}
