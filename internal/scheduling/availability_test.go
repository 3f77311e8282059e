package scheduling

import (
	"context"
	"reflect"
	"testing"

	"github.com/MrZacked/Healem/internal/models"
)

var testTemplate = []string{"09:00", "09:30", "10:00", "10:30"}

func seedSlotAppt(t *testing.T, store *memStore, doctorID, date string, slot models.TimeSlot, status models.AppointmentStatus) *models.Appointment {
	t.Helper()
	appt := &models.Appointment{
		PatientID:       "patient-1",
		DoctorID:        doctorID,
		AppointmentDate: date,
		TimeSlot:        slot,
		Status:          status,
		Reason:          "Annual physical exam",
	}
	if err := store.Insert(context.Background(), appt); err != nil {
		t.Fatalf("seeding appointment: %v", err)
	}
	return appt
}

func TestAvailability_EmptyDay(t *testing.T) {
	store := newMemStore()
	engine := NewAvailabilityEngine(store, testTemplate)

	day, err := engine.Availability(context.Background(), "doctor-1", "2025-06-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if day.Date != "2025-06-10" {
		t.Errorf("expected date echoed back, got %s", day.Date)
	}
	if !reflect.DeepEqual(day.AvailableSlots, testTemplate) {
		t.Errorf("expected full template, got %v", day.AvailableSlots)
	}
	if len(day.BookedSlots) != 0 {
		t.Errorf("expected no booked slots, got %v", day.BookedSlots)
	}
}

func TestAvailability_BookedSlotExcluded(t *testing.T) {
	store := newMemStore()
	engine := NewAvailabilityEngine(store, testTemplate)
	seedSlotAppt(t, store, "doctor-1", "2025-06-10", models.TimeSlot{Start: "09:30", End: "10:00"}, models.StatusPending)

	day, err := engine.Availability(context.Background(), "doctor-1", "2025-06-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"09:00", "10:00", "10:30"}
	if !reflect.DeepEqual(day.AvailableSlots, want) {
		t.Errorf("expected %v, got %v", want, day.AvailableSlots)
	}
	if len(day.BookedSlots) != 1 || day.BookedSlots[0].Start != "09:30" {
		t.Errorf("expected one booked slot starting 09:30, got %v", day.BookedSlots)
	}
}

func TestAvailability_RoundTrip(t *testing.T) {
	store := newMemStore()
	engine := NewAvailabilityEngine(store, testTemplate)

	ends := map[string]string{"09:00": "09:30", "09:30": "10:00", "10:00": "10:30", "10:30": "11:00"}
	var appts []*models.Appointment
	for _, start := range testTemplate {
		appts = append(appts, seedSlotAppt(t, store, "doctor-1", "2025-06-10",
			models.TimeSlot{Start: start, End: ends[start]}, models.StatusConfirmed))
	}

	day, err := engine.Availability(context.Background(), "doctor-1", "2025-06-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(day.AvailableSlots) != 0 {
		t.Errorf("fully booked day should have no free slots, got %v", day.AvailableSlots)
	}
	if len(day.BookedSlots) != len(testTemplate) {
		t.Errorf("expected %d booked slots, got %d", len(testTemplate), len(day.BookedSlots))
	}

	// Cancelling one booking frees exactly that slot.
	appts[1].Status = models.StatusCancelled
	if err := store.Update(context.Background(), appts[1]); err != nil {
		t.Fatalf("cancelling seeded appointment: %v", err)
	}

	day, err = engine.Availability(context.Background(), "doctor-1", "2025-06-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(day.AvailableSlots, []string{"09:30"}) {
		t.Errorf("expected only 09:30 free, got %v", day.AvailableSlots)
	}
}

func TestAvailability_InactiveStatusesIgnored(t *testing.T) {
	for _, status := range []models.AppointmentStatus{
		models.StatusCancelled, models.StatusCompleted, models.StatusNoShow,
	} {
		store := newMemStore()
		engine := NewAvailabilityEngine(store, testTemplate)
		seedSlotAppt(t, store, "doctor-1", "2025-06-10", models.TimeSlot{Start: "09:00", End: "09:30"}, status)

		day, err := engine.Availability(context.Background(), "doctor-1", "2025-06-10")
		if err != nil {
			t.Fatalf("status %s: unexpected error: %v", status, err)
		}
		if !reflect.DeepEqual(day.AvailableSlots, testTemplate) {
			t.Errorf("status %s should not block slots, got %v", status, day.AvailableSlots)
		}
	}
}

func TestAvailability_MatchesBySlotStartIdentity(t *testing.T) {
	store := newMemStore()
	engine := NewAvailabilityEngine(store, testTemplate)

	// An off-grid booking occupies no template slot even though its interval
	// overlaps two of them; it still shows up in the booked list.
	seedSlotAppt(t, store, "doctor-1", "2025-06-10", models.TimeSlot{Start: "09:15", End: "09:45"}, models.StatusConfirmed)

	day, err := engine.Availability(context.Background(), "doctor-1", "2025-06-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(day.AvailableSlots, testTemplate) {
		t.Errorf("off-grid start must not consume template slots, got %v", day.AvailableSlots)
	}
	if len(day.BookedSlots) != 1 || day.BookedSlots[0].Start != "09:15" {
		t.Errorf("expected the off-grid slot in booked list, got %v", day.BookedSlots)
	}
}

func TestAvailability_ScopedToDoctorAndDate(t *testing.T) {
	store := newMemStore()
	engine := NewAvailabilityEngine(store, testTemplate)

	seedSlotAppt(t, store, "doctor-2", "2025-06-10", models.TimeSlot{Start: "09:00", End: "09:30"}, models.StatusPending)
	seedSlotAppt(t, store, "doctor-1", "2025-06-11", models.TimeSlot{Start: "09:30", End: "10:00"}, models.StatusPending)

	day, err := engine.Availability(context.Background(), "doctor-1", "2025-06-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(day.AvailableSlots, testTemplate) {
		t.Errorf("other doctors and days must not affect the view, got %v", day.AvailableSlots)
	}
}

func TestAvailability_UnknownDoctor(t *testing.T) {
	store := newMemStore()
	engine := NewAvailabilityEngine(store, testTemplate)

	// The availability view is keyed purely on bookings: a doctor with no
	// appointments reads as a fully open day.
	day, err := engine.Availability(context.Background(), "doctor-404", "2025-06-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(day.AvailableSlots, testTemplate) {
		t.Errorf("expected full template, got %v", day.AvailableSlots)
	}
}

func TestAvailability_InvalidDate(t *testing.T) {
	store := newMemStore()
	engine := NewAvailabilityEngine(store, testTemplate)

	for _, date := range []string{"10-06-2025", "2025-02-30", "tomorrow", ""} {
		if _, err := engine.Availability(context.Background(), "doctor-1", date); !isValidationError(err) {
			t.Errorf("date %q: expected validation error, got %v", date, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2025-06-10", "2025-06-10", true},
		{"2024-02-29", "2024-02-29", true},
		{"2025-02-30", "", false},
		{"2025-6-1", "", false},
		{"06/10/2025", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		if tt.ok {
			if err != nil {
				t.Errorf("ParseDate(%q): unexpected error: %v", tt.in, err)
			} else if got != tt.want {
				t.Errorf("ParseDate(%q) = %q, want %q", tt.in, got, tt.want)
			}
			continue
		}
		if err == nil {
			t.Errorf("ParseDate(%q): expected error, got %q", tt.in, got)
		}
	}
}
