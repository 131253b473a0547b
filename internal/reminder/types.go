package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which time field of an item a reminder is about.
type Kind int

const (
	DeadlineDue Kind = iota
	EventStart
)

const (
	keySeparator  = "#"
	displayLayout = "Jan 2 2006 15:04"
)

func (k Kind) String() string {
	switch k {
	case DeadlineDue:
		return "DEADLINE_DUE"
	case EventStart:
		return "EVENT_START"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Label returns a short human phrase for the kind.
func (k Kind) Label() string {
	switch k {
	case DeadlineDue:
		return "Deadline due"
	case EventStart:
		return "Event starting"
	default:
		return "Reminder"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "DEADLINE_DUE":
		return DeadlineDue, nil
	case "EVENT_START":
		return EventStart, nil
	default:
		return 0, fmt.Errorf("unknown reminder kind %q", s)
	}
}

// Key is the dedup identifier of one (kind, position, trigger instant) tuple.
type Key string

// DeriveKey builds the key for a trigger. Editing the trigger instant yields a
// new key, so an edited item becomes eligible again.
func DeriveKey(kind Kind, index int, trigger time.Time) Key {
	return Key(kind.String() + keySeparator + strconv.Itoa(index) + keySeparator +
		strconv.FormatInt(trigger.UnixMilli(), 10))
}

// ParseKey splits a key back into its components.
func ParseKey(s string) (Kind, int, time.Time, error) {
	parts := strings.Split(s, keySeparator)
	if len(parts) != 3 {
		return 0, 0, time.Time{}, fmt.Errorf("malformed reminder key %q", s)
	}

	kind, err := ParseKind(parts[0])
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("malformed reminder key %q: %w", s, err)
	}

	index, err := strconv.Atoi(parts[1])
	if err != nil || index < 0 {
		return 0, 0, time.Time{}, fmt.Errorf("malformed reminder key %q: bad index", s)
	}

	millis, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("malformed reminder key %q: bad timestamp", s)
	}

	return kind, index, time.UnixMilli(millis), nil
}

// Event describes one fired reminder. It is passed by value and never
// mutated after the scanner builds it.
type Event struct {
	Index       int       `json:"index"`
	Label       string    `json:"label"`
	TriggerTime time.Time `json:"trigger_time"`
	Kind        Kind      `json:"kind"`
	Key         Key       `json:"key"`
}

func (e Event) String() string {
	return e.Kind.String() + ": " + e.Label + " @ " + e.TriggerTime.Format(displayLayout)
}

// Trigger is one instant at which an item wants to be reminded about.
type Trigger struct {
	Kind Kind
	At   time.Time
}

// Item is anything held in a task collection. Its String form is the label
// shown in reminders.
type Item interface {
	String() string
}

// Triggerable is implemented by items that have a primary trigger instant.
// Items without it are never reminded about.
type Triggerable interface {
	Triggers() []Trigger
}

// Collection is read-only positional access to a task list owned elsewhere.
// Item reports false when the position is no longer valid.
type Collection interface {
	Len() int
	Item(i int) (Item, bool)
}

// Listener receives fired reminders on the scanner goroutine.
type Listener interface {
	OnReminder(Event)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) OnReminder(e Event) { f(e) }
