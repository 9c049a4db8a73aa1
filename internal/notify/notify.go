// Package notify carries transient user-facing messages (toasts) from the
// subsystems to whatever view renders them next.
package notify

import (
	"sync"
	"time"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Notify(level Level, message string)
}

// Queue buffers notifications until the next Drain. When full, the oldest
// entry is dropped.
type Queue struct {
	mutex sync.Mutex
	items []Notification
	limit int
	now   func() time.Time
}

func NewQueue(limit int) *Queue {
	if limit <= 0 {
		limit = 32
	}
	return &Queue{limit: limit, now: time.Now}
}

func (q *Queue) Notify(level Level, message string) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if len(q.items) == q.limit {
		q.items = q.items[1:]
	}
	q.items = append(q.items, Notification{Level: level, Message: message, At: q.now()})
}

// Drain returns the buffered notifications in arrival order and empties the queue.
func (q *Queue) Drain() []Notification {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	items := q.items
	q.items = nil
	if items == nil {
		return []Notification{}
	}
	return items
}

func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.items)
}

type discard struct{}

func (discard) Notify(Level, string) {}

// Discard drops every notification.
var Discard Notifier = discard{}
