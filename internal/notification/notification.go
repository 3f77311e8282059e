// Package notification publishes appointment lifecycle events for downstream
// delivery channels (email, SMS, push) consumed off a Kafka topic.
package notification

import (
	"context"
	"errors"
	"sync"
)

// EventKind identifies what happened to an appointment.
type EventKind string

const (
	EventCreated     EventKind = "created"
	EventConfirmed   EventKind = "confirmed"
	EventCancelled   EventKind = "cancelled"
	EventRescheduled EventKind = "rescheduled"
	EventReminder    EventKind = "reminder"
)

// Event is the payload published for a single appointment change. Subject and
// Body are filled in by the notifier from the event kind's template.
type Event struct {
	AppointmentID string    `json:"appointmentId"`
	Kind          EventKind `json:"kind"`
	PatientID     string    `json:"patientId"`
	PatientName   string    `json:"patientName,omitempty"`
	PatientEmail  string    `json:"patientEmail,omitempty"`
	DoctorID      string    `json:"doctorId"`
	DoctorName    string    `json:"doctorName,omitempty"`
	Date          string    `json:"date"`
	SlotStart     string    `json:"slotStart"`
	SlotEnd       string    `json:"slotEnd"`
	Subject       string    `json:"subject,omitempty"`
	Body          string    `json:"body,omitempty"`
}

// Notifier dispatches appointment events. Callers treat dispatch as
// fire-and-forget: a failed dispatch is logged, never surfaced to the user.
type Notifier interface {
	Dispatch(ctx context.Context, event Event) error
}

// Noop discards every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Dispatch(_ context.Context, _ Event) error { return nil }

// Mock is a test double that records dispatched events.
type Mock struct {
	mu         sync.Mutex
	events     []Event
	ShouldFail bool
	FailError  string
}

// Dispatch records the event and optionally returns an error.
func (m *Mock) Dispatch(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Events returns a copy of the recorded events.
func (m *Mock) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
