package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrPresetNotFound is returned when an update names an unknown preset.
	ErrPresetNotFound = errors.New("preset not found")
	// ErrNotLinked is returned when a remote update targets a preset that
	// never received a server id.
	ErrNotLinked = errors.New("preset has no server id")
)

// Kind groups failures by how they are reported to the user.
type Kind int

const (
	KindOther Kind = iota
	KindTransport
	KindValidation
	KindStatus
	KindNotPersisted
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindStatus:
		return "status"
	case KindNotPersisted:
		return "not-persisted"
	default:
		return "other"
	}
}

// TransportError is a request that never produced an HTTP response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError is a 422 response carrying per-field messages.
type ValidationError struct {
	Message string
	Fields  map[string][]string
}

// Error flattens every field message into one comma separated line.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var msgs []string
	for _, k := range keys {
		for _, m := range e.Fields[k] {
			if m = strings.TrimSpace(m); m != "" {
				msgs = append(msgs, m)
			}
		}
	}
	if len(msgs) > 0 {
		return strings.Join(msgs, ", ")
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return msg
	}
	return "Validation error"
}

// StatusError is any other non-2xx response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return strings.TrimSpace(fmt.Sprintf("%d %s", e.Status, e.Body))
}

// AttemptError records one failed credential strategy.
type AttemptError struct {
	Credentials string
	Err         error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s credentials: %v", e.Credentials, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// FallbackError aggregates every failed attempt of one operation.
type FallbackError struct {
	Op       string
	Attempts []*AttemptError
}

func (e *FallbackError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Error())
	}
	return fmt.Sprintf("%s: %s", e.Op, strings.Join(parts, "; "))
}

func (e *FallbackError) Unwrap() []error {
	out := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		out = append(out, a)
	}
	return out
}

// Last returns the error of the final attempt.
func (e *FallbackError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// NotPersistedError reports a write the server acknowledged but that could
// not be found when the list was reloaded.
type NotPersistedError struct {
	Op       string
	ServerID int64
	Err      error
}

func (e *NotPersistedError) Error() string {
	var msg string
	if e.ServerID > 0 {
		msg = fmt.Sprintf("%s: server did not persist preset %d", e.Op, e.ServerID)
	} else {
		msg = fmt.Sprintf("%s: server did not persist preset (response carried no id)", e.Op)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": reload failed: %v", e.Err)
	}
	return msg
}

func (e *NotPersistedError) Unwrap() error { return e.Err }

// Classify reports how err should be presented. For aggregated failures the
// final attempt decides.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}
	var notPersisted *NotPersistedError
	if errors.As(err, &notPersisted) {
		return KindNotPersisted
	}
	var fallback *FallbackError
	if errors.As(err, &fallback) {
		if last := fallback.Last(); last != nil {
			return classifyAttempt(last)
		}
	}
	return classifyAttempt(err)
}

func classifyAttempt(err error) Kind {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return KindValidation
	}
	var status *StatusError
	if errors.As(err, &status) {
		return KindStatus
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return KindTransport
	}
	return KindOther
}

// Message renders err for the status line.
func Message(err error) string {
	if err == nil {
		return ""
	}
	kind := Classify(err)
	if kind != KindValidation && kind != KindStatus {
		return err.Error()
	}

	target, op := err, ""
	var fallback *FallbackError
	if errors.As(err, &fallback) && fallback.Last() != nil {
		target, op = fallback.Last(), fallback.Op
	}
	if kind == KindValidation {
		var validation *ValidationError
		errors.As(target, &validation)
		return validation.Error()
	}
	var status *StatusError
	errors.As(target, &status)
	if op != "" {
		return fmt.Sprintf("%s failed: %s", op, status.Error())
	}
	return status.Error()
}
