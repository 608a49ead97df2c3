package storage

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidationError_FlattensSortedFields(t *testing.T) {
	err := &ValidationError{Fields: map[string][]string{
		"name":    {"required"},
		"devices": {"must not be empty", " "},
	}}
	if got := err.Error(); got != "must not be empty, required" {
		t.Fatalf("Error = %q, want %q", got, "must not be empty, required")
	}
	if got := (&ValidationError{}).Error(); got != "Validation error" {
		t.Fatalf("empty Error = %q, want Validation error", got)
	}
	if got := (&ValidationError{Message: "The given data was invalid."}).Error(); got != "The given data was invalid." {
		t.Fatalf("message-only Error = %q", got)
	}
}

func TestFallbackError_CarriesEveryAttempt(t *testing.T) {
	err := &FallbackError{Op: "load presets", Attempts: []*AttemptError{
		{Credentials: "include", Err: &TransportError{Err: errors.New("connection refused")}},
		{Credentials: "omit", Err: &TransportError{Err: errors.New("no route to host")}},
	}}
	msg := err.Error()
	for _, want := range []string{"load presets", "connection refused", "no route to host", "include", "omit"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("Error = %q, want it to contain %q", msg, want)
		}
	}
	if Classify(err) != KindTransport {
		t.Fatalf("Classify = %v, want transport", Classify(err))
	}
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("errors.As should reach the attempt errors")
	}
}

func TestClassify_LastAttemptDecides(t *testing.T) {
	err := &FallbackError{Op: "save preset", Attempts: []*AttemptError{
		{Credentials: "include", Err: &StatusError{Status: 401, Body: "unauthenticated"}},
		{Credentials: "omit", Err: &ValidationError{Fields: map[string][]string{"name": {"required"}}}},
	}}
	if got := Classify(err); got != KindValidation {
		t.Fatalf("Classify = %v, want validation", got)
	}
	if got := Message(err); got != "required" {
		t.Fatalf("Message = %q, want required", got)
	}

	status := &FallbackError{Op: "save preset", Attempts: []*AttemptError{
		{Credentials: "include", Err: &ValidationError{Fields: map[string][]string{"name": {"required"}}}},
		{Credentials: "omit", Err: &StatusError{Status: 500, Body: "boom"}},
	}}
	if got := Message(status); got != "save preset failed: 500 boom" {
		t.Fatalf("Message = %q, want status message", got)
	}
}

func TestClassify_NotPersistedWins(t *testing.T) {
	err := fmt.Errorf("save: %w", &NotPersistedError{Op: "save preset", ServerID: 12})
	if got := Classify(err); got != KindNotPersisted {
		t.Fatalf("Classify = %v, want not-persisted", got)
	}
	if !strings.Contains(Message(err), "did not persist preset 12") {
		t.Fatalf("Message = %q", Message(err))
	}
	noID := &NotPersistedError{Op: "save preset", Err: errors.New("timeout")}
	if !strings.Contains(noID.Error(), "no id") || !strings.Contains(noID.Error(), "timeout") {
		t.Fatalf("Error = %q", noID.Error())
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{"": ModeLocal, "LOCAL": ModeLocal, " remote ": ModeRemote}
	for in, want := range cases {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("cloud"); err == nil {
		t.Fatalf("ParseMode(cloud) returned nil error")
	}
}
