package stream_test

import (
	"testing"

	"github.com/MrWong99/livescribe/pkg/stream"
)

func TestParseEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    stream.Event
		wantOK  bool
	}{
		{name: "partial", payload: "PARTIAL: hel", want: stream.Partial("hel"), wantOK: true},
		{name: "final", payload: "FINAL: hello world", want: stream.Final("hello world"), wantOK: true},
		{name: "no space after tag", payload: "FINAL:done", want: stream.Final("done"), wantOK: true},
		{name: "empty partial", payload: "PARTIAL: ", want: stream.Partial(""), wantOK: true},
		{name: "trailing newline kept", payload: "PARTIAL: abc\n", want: stream.Partial("abc\n"), wantOK: true},
		{name: "trailing spaces kept", payload: "FINAL:  done. ", want: stream.Final("done. "), wantOK: true},
		{name: "leading tab kept", payload: "FINAL: \tindented", want: stream.Final("\tindented"), wantOK: true},
		{name: "inner spacing kept", payload: "FINAL: a  b", want: stream.Final("a  b"), wantOK: true},
		{name: "lower-case tag", payload: "final: nope", wantOK: false},
		{name: "unknown", payload: "HEARTBEAT", wantOK: false},
		{name: "json", payload: `{"type":"Results"}`, wantOK: false},
		{name: "empty", payload: "", wantOK: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := stream.ParseEvent(tc.payload)
			if ok != tc.wantOK {
				t.Fatalf("ParseEvent(%q) ok = %v, want %v", tc.payload, ok, tc.wantOK)
			}
			if ok && got != tc.want {
				t.Errorf("ParseEvent(%q) = %+v, want %+v", tc.payload, got, tc.want)
			}
		})
	}
}

func TestEventEncode_ParsesBack(t *testing.T) {
	t.Parallel()

	for _, ev := range []stream.Event{stream.Partial("hel"), stream.Final("hello world")} {
		got, ok := stream.ParseEvent(ev.Encode())
		if !ok || got != ev {
			t.Errorf("ParseEvent(%q) = %+v, %v; want %+v", ev.Encode(), got, ok, ev)
		}
	}
}

func TestStrings(t *testing.T) {
	t.Parallel()

	if got := stream.StateOpen.String(); got != "open" {
		t.Errorf("StateOpen.String() = %q", got)
	}
	if got := stream.ConnectionState(99).String(); got != "unknown" {
		t.Errorf("ConnectionState(99).String() = %q", got)
	}
	if got := stream.EventFinal.String(); got != "final" {
		t.Errorf("EventFinal.String() = %q", got)
	}
}
