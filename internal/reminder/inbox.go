package reminder

import "sync"

// Inbox is a Listener that keeps delivered reminders until the user handles
// them. The notify hook, when set, runs after each delivery on the scanner
// goroutine and must return quickly.
type Inbox struct {
	mu      sync.Mutex
	pending []Event
	notify  func(Event)
}

func NewInbox(notify func(Event)) *Inbox {
	return &Inbox{notify: notify}
}

func (in *Inbox) SetNotify(notify func(Event)) {
	in.mu.Lock()
	in.notify = notify
	in.mu.Unlock()
}

func (in *Inbox) OnReminder(e Event) {
	in.mu.Lock()
	replaced := false
	for i := range in.pending {
		if in.pending[i].Key == e.Key {
			in.pending[i] = e
			replaced = true
			break
		}
	}
	if !replaced {
		in.pending = append(in.pending, e)
	}
	notify := in.notify
	in.mu.Unlock()

	if notify != nil {
		notify(e)
	}
}

// Pending returns a copy of the unhandled reminders, oldest first.
func (in *Inbox) Pending() []Event {
	in.mu.Lock()
	defer in.mu.Unlock()

	out := make([]Event, len(in.pending))
	copy(out, in.pending)
	return out
}

func (in *Inbox) Get(k Key) (Event, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	for _, e := range in.pending {
		if e.Key == k {
			return e, true
		}
	}
	return Event{}, false
}

// Remove drops k from the inbox and reports whether it was present.
func (in *Inbox) Remove(k Key) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	for i, e := range in.pending {
		if e.Key == k {
			in.pending = append(in.pending[:i], in.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.pending)
}
