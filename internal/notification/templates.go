package notification

import (
	"fmt"
	"strings"
	"sync"
)

// Template defines the message rendered for one event kind.
type Template struct {
	Subject string
	Body    string
}

// TemplateEngine maps event kinds to message templates and renders them with
// per-event data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[EventKind]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[EventKind]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	e.templates[EventCreated] = &Template{
		Subject: "Appointment request received",
		Body:    "Dear {{patient_name}}, your appointment with {{doctor_name}} on {{date}} at {{start}} has been received and is awaiting confirmation.",
	}
	e.templates[EventConfirmed] = &Template{
		Subject: "Appointment confirmed",
		Body:    "Dear {{patient_name}}, your appointment with {{doctor_name}} on {{date}} at {{start}} has been confirmed.",
	}
	e.templates[EventCancelled] = &Template{
		Subject: "Appointment cancelled",
		Body:    "Dear {{patient_name}}, your appointment with {{doctor_name}} on {{date}} at {{start}} has been cancelled.",
	}
	e.templates[EventRescheduled] = &Template{
		Subject: "Appointment rescheduled",
		Body:    "Dear {{patient_name}}, your appointment with {{doctor_name}} has been moved to {{date}} at {{start}}.",
	}
	e.templates[EventReminder] = &Template{
		Subject: "Appointment reminder",
		Body:    "Dear {{patient_name}}, this is a reminder of your appointment on {{date}} at {{start}} with {{doctor_name}}.",
	}
}

// RegisterTemplate adds or replaces the template for an event kind.
func (e *TemplateEngine) RegisterTemplate(kind EventKind, t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[kind] = &t
}

// Render looks up the template for kind and performs {{key}} replacement using
// the supplied data map. Keys present in the template but absent from data are
// left as-is.
func (e *TemplateEngine) Render(kind EventKind, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[kind]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", kind)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

func templateData(event Event) map[string]string {
	return map[string]string{
		"patient_name": event.PatientName,
		"doctor_name":  event.DoctorName,
		"date":         event.Date,
		"start":        event.SlotStart,
		"end":          event.SlotEnd,
	}
}
