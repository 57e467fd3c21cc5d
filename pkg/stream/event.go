package stream

import "strings"

// Wire tags that prefix inbound text messages.
const (
	TagPartial = "PARTIAL:"
	TagFinal   = "FINAL:"
)

// EventKind tags a transcript event.
type EventKind int

const (
	// EventPartial is a provisional result that replaces the previous partial.
	EventPartial EventKind = iota

	// EventFinal is a committed result that will not be revised.
	EventFinal
)

// String returns the human-readable name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventPartial:
		return "partial"
	case EventFinal:
		return "final"
	default:
		return "unknown"
	}
}

// Event is one inbound transcript update.
type Event struct {
	Kind EventKind
	Text string
}

// Partial returns a partial event carrying text.
func Partial(text string) Event { return Event{Kind: EventPartial, Text: text} }

// Final returns a final event carrying text.
func Final(text string) Event { return Event{Kind: EventFinal, Text: text} }

// ParseEvent decodes one inbound text payload. Only the tag and the spaces
// directly after it are stripped; the rest of the text is kept as sent. ok
// is false for payloads carrying neither tag; callers ignore those.
func ParseEvent(payload string) (ev Event, ok bool) {
	switch {
	case strings.HasPrefix(payload, TagPartial):
		return Partial(strings.TrimLeft(payload[len(TagPartial):], " ")), true
	case strings.HasPrefix(payload, TagFinal):
		return Final(strings.TrimLeft(payload[len(TagFinal):], " ")), true
	default:
		return Event{}, false
	}
}

// Encode renders ev in wire form, e.g. "FINAL: hello world". Used by test
// backends.
func (ev Event) Encode() string {
	tag := TagPartial
	if ev.Kind == EventFinal {
		tag = TagFinal
	}
	return tag + " " + ev.Text
}
