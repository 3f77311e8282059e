package scheduling

import (
	"context"
	"time"

	"github.com/MrZacked/Healem/internal/models"
)

// DayAvailability is the bookable view of one doctor's day.
type DayAvailability struct {
	Date           string            `json:"date"`
	AvailableSlots []string          `json:"availableSlots"`
	BookedSlots    []models.TimeSlot `json:"bookedSlots"`
}

// AvailabilityEngine computes free and booked slots against a fixed
// working-hours template of slot-start strings. It is read-only and safe
// for concurrent use.
type AvailabilityEngine struct {
	store    Store
	template []string
}

// NewAvailabilityEngine builds an engine over the given slot-start template
// (see config.WorkingHoursConfig.SlotStarts).
func NewAvailabilityEngine(store Store, template []string) *AvailabilityEngine {
	return &AvailabilityEngine{store: store, template: template}
}

// ParseDate validates a calendar date string and returns its canonical
// YYYY-MM-DD form.
func ParseDate(s string) (string, error) {
	parsed, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return "", newValidationError("date", "must be a valid YYYY-MM-DD date")
	}
	return parsed.Format(models.DateLayout), nil
}

// Availability returns the doctor's free and booked slots for a date.
// A template slot is taken iff an active appointment starts exactly at it:
// matching is by slot-start identity, one booking per template slot.
func (e *AvailabilityEngine) Availability(ctx context.Context, doctorID, date string) (*DayAvailability, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	appts, _, err := e.store.FindByQuery(ctx, Query{
		DoctorID: doctorID,
		Date:     day,
		Statuses: models.ActiveStatuses,
	})
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(appts))
	booked := make([]models.TimeSlot, 0, len(appts))
	for _, a := range appts {
		taken[a.TimeSlot.Start] = true
		booked = append(booked, a.TimeSlot)
	}

	available := make([]string, 0, len(e.template))
	for _, slot := range e.template {
		if !taken[slot] {
			available = append(available, slot)
		}
	}

	return &DayAvailability{
		Date:           day,
		AvailableSlots: available,
		BookedSlots:    booked,
	}, nil
}
