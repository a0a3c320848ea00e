package listing

import "sync"

// Toast types understood by the rendering layer.
const (
	ToastSuccess = "success"
	ToastError   = "error"
)

// DefaultInboxSize bounds an Inbox when unset.
const DefaultInboxSize = 32

// Notification is one user-visible message.
type Notification struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Notifier is the notification sink of a view.
type Notifier interface {
	Notify(n Notification)
}

// Inbox collects the notifications of one dashboard session until the next
// response drains them. When full, the oldest notification is dropped.
type Inbox struct {
	mu    sync.Mutex
	items []Notification
	max   int
}

// NewInbox creates an Inbox holding at most size notifications.
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{max: size}
}

// Notify implements Notifier.
func (i *Inbox) Notify(n Notification) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.items) == i.max {
		i.items = i.items[1:]
	}
	i.items = append(i.items, n)
}

// Drain returns and removes all pending notifications, oldest first.
func (i *Inbox) Drain() []Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.items
	i.items = nil
	if out == nil {
		return []Notification{}
	}
	return out
}

// Len returns the number of pending notifications.
func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.items)
}
