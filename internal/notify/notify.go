package notify

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a transient, user-visible message.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

type Notifier interface {
	Notify(n Notification)
}

type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(Notification) {})

// Recorder keeps notifications in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

type logNotifier struct {
	log  *logrus.Logger
	next Notifier
}

// WithLog logs every notification before handing it to next.
func WithLog(log *logrus.Logger, next Notifier) Notifier {
	if next == nil {
		next = Discard
	}
	if log == nil {
		return next
	}
	return &logNotifier{log: log, next: next}
}

func (l *logNotifier) Notify(n Notification) {
	l.log.WithFields(logrus.Fields{
		"level_ui": n.Level,
	}).Debug("notification: " + n.Message)
	l.next.Notify(n)
}
