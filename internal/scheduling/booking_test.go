package scheduling

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/MrZacked/Healem/internal/models"
	"github.com/MrZacked/Healem/internal/notification"
)

func TestBook_Success(t *testing.T) {
	env := newTestEnv()

	view, err := env.booking.Book(context.Background(), validBookRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.ID == "" {
		t.Error("expected non-empty appointment id")
	}
	if view.Status != models.StatusPending {
		t.Errorf("expected status pending, got %s", view.Status)
	}
	if view.Type != models.TypeConsultation {
		t.Errorf("expected default type consultation, got %s", view.Type)
	}
	if view.Priority != models.PriorityMedium {
		t.Errorf("expected default priority medium, got %s", view.Priority)
	}
	if view.EstimatedDuration != 30 {
		t.Errorf("expected default duration 30, got %d", view.EstimatedDuration)
	}
	if view.PatientName != "James Wright" {
		t.Errorf("expected patient name James Wright, got %q", view.PatientName)
	}
	if view.DoctorName != "Sarah Chen" {
		t.Errorf("expected doctor name Sarah Chen, got %q", view.DoctorName)
	}
	if view.DoctorSpecialization != "Cardiology" {
		t.Errorf("expected specialization Cardiology, got %q", view.DoctorSpecialization)
	}

	stored, err := env.store.FindByID(context.Background(), view.ID)
	if err != nil {
		t.Fatalf("stored appointment not found: %v", err)
	}
	if stored.Status != models.StatusPending {
		t.Errorf("stored status = %s, want pending", stored.Status)
	}

	events := env.notifier.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != notification.EventCreated {
		t.Errorf("expected created event, got %s", events[0].Kind)
	}
	if events[0].PatientEmail != "james.wright@mail.test" {
		t.Errorf("expected enriched patient email, got %q", events[0].PatientEmail)
	}
}

func TestBook_DoctorValidation(t *testing.T) {
	tests := []struct {
		name     string
		doctorID string
	}{
		{"unknown id", "doctor-404"},
		{"inactive doctor", "doctor-retired"},
		{"not a doctor", "patient-2"},
	}
	for _, tt := range tests {
		env := newTestEnv()
		req := validBookRequest()
		req.DoctorID = tt.doctorID

		_, err := env.booking.Book(context.Background(), req)
		if !errors.Is(err, ErrInvalidDoctor) {
			t.Errorf("%s: expected ErrInvalidDoctor, got %v", tt.name, err)
		}
	}
}

func TestBook_PatientValidation(t *testing.T) {
	tests := []struct {
		name      string
		patientID string
	}{
		{"unknown id", "patient-404"},
		{"not a patient", "nurse-1"},
	}
	for _, tt := range tests {
		env := newTestEnv()
		req := validBookRequest()
		req.PatientID = tt.patientID

		_, err := env.booking.Book(context.Background(), req)
		if !errors.Is(err, ErrInvalidPatient) {
			t.Errorf("%s: expected ErrInvalidPatient, got %v", tt.name, err)
		}
	}
}

func TestBook_DateValidation(t *testing.T) {
	// The test clock is pinned to 2025-06-01.
	tests := []struct {
		name    string
		date    string
		wantErr error
	}{
		{"today", "2025-06-01", ErrPastDate},
		{"yesterday", "2025-05-31", ErrPastDate},
		{"long past", "2024-01-15", ErrPastDate},
	}
	for _, tt := range tests {
		env := newTestEnv()
		req := validBookRequest()
		req.Date = tt.date

		_, err := env.booking.Book(context.Background(), req)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.wantErr, err)
		}
	}

	env := newTestEnv()
	req := validBookRequest()
	req.Date = "2025-06-02"
	if _, err := env.booking.Book(context.Background(), req); err != nil {
		t.Errorf("tomorrow should be bookable, got %v", err)
	}
}

func TestBook_UnparsableDate(t *testing.T) {
	for _, date := range []string{"06/10/2025", "2025-13-40", "next tuesday", ""} {
		env := newTestEnv()
		req := validBookRequest()
		req.Date = date

		_, err := env.booking.Book(context.Background(), req)
		if !isValidationError(err) {
			t.Errorf("date %q: expected validation error, got %v", date, err)
		}
	}
}

func TestBook_TimeSlotValidation(t *testing.T) {
	tests := []struct {
		name string
		slot models.TimeSlot
	}{
		{"start equals end", models.TimeSlot{Start: "09:00", End: "09:00"}},
		{"start after end", models.TimeSlot{Start: "10:00", End: "09:30"}},
		{"unparsable start", models.TimeSlot{Start: "morning", End: "09:30"}},
		{"unparsable end", models.TimeSlot{Start: "09:00", End: "late"}},
	}
	for _, tt := range tests {
		env := newTestEnv()
		req := validBookRequest()
		req.Slot = tt.slot

		_, err := env.booking.Book(context.Background(), req)
		if !errors.Is(err, ErrInvalidTimeRange) {
			t.Errorf("%s: expected ErrInvalidTimeRange, got %v", tt.name, err)
		}
	}
}

func TestBook_ReasonBounds(t *testing.T) {
	tests := []struct {
		length int
		ok     bool
	}{
		{9, false},
		{10, true},
		{500, true},
		{501, false},
	}
	for _, tt := range tests {
		env := newTestEnv()
		req := validBookRequest()
		req.Reason = strings.Repeat("r", tt.length)

		_, err := env.booking.Book(context.Background(), req)
		if tt.ok && err != nil {
			t.Errorf("reason length %d: unexpected error: %v", tt.length, err)
		}
		if !tt.ok && !isValidationError(err) {
			t.Errorf("reason length %d: expected validation error, got %v", tt.length, err)
		}
	}
}

func TestBook_ReasonTrimmed(t *testing.T) {
	env := newTestEnv()
	req := validBookRequest()
	req.Reason = "   Annual physical exam   "

	view, err := env.booking.Book(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Reason != "Annual physical exam" {
		t.Errorf("expected trimmed reason, got %q", view.Reason)
	}

	// Whitespace does not count toward the minimum length.
	env = newTestEnv()
	req = validBookRequest()
	req.Reason = "   short   "
	if _, err := env.booking.Book(context.Background(), req); !isValidationError(err) {
		t.Errorf("padded short reason: expected validation error, got %v", err)
	}
}

func TestBook_TypePriorityDuration(t *testing.T) {
	env := newTestEnv()
	req := validBookRequest()
	req.Type = models.TypeFollowUp
	req.Priority = models.PriorityUrgent
	req.EstimatedDuration = 60

	view, err := env.booking.Book(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Type != models.TypeFollowUp || view.Priority != models.PriorityUrgent || view.EstimatedDuration != 60 {
		t.Errorf("explicit fields not preserved: %s %s %d", view.Type, view.Priority, view.EstimatedDuration)
	}

	bad := []BookRequest{
		func() BookRequest { r := validBookRequest(); r.Type = "teleportation"; return r }(),
		func() BookRequest { r := validBookRequest(); r.Priority = "extreme"; return r }(),
		func() BookRequest { r := validBookRequest(); r.EstimatedDuration = 14; return r }(),
		func() BookRequest { r := validBookRequest(); r.EstimatedDuration = 241; return r }(),
	}
	for i, req := range bad {
		env := newTestEnv()
		if _, err := env.booking.Book(context.Background(), req); !isValidationError(err) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestBook_SlotConflict(t *testing.T) {
	env := newTestEnv()

	if _, err := env.booking.Book(context.Background(), validBookRequest()); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	// Same slot, different patient.
	req := validBookRequest()
	req.PatientID = "patient-2"
	_, err := env.booking.Book(context.Background(), req)
	if !errors.Is(err, ErrSlotConflict) {
		t.Errorf("expected ErrSlotConflict, got %v", err)
	}
}

func TestBook_OverlappingIntervalConflicts(t *testing.T) {
	env := newTestEnv()

	appt := seedAppt(t, env.store, models.StatusPending)
	appt.TimeSlot = models.TimeSlot{Start: "09:00", End: "10:00"}
	if err := env.store.Update(context.Background(), appt); err != nil {
		t.Fatalf("widening seeded slot: %v", err)
	}

	// Partial overlap with the 09:00-10:00 hold.
	req := validBookRequest()
	req.PatientID = "patient-2"
	req.Slot = models.TimeSlot{Start: "09:30", End: "10:30"}
	if _, err := env.booking.Book(context.Background(), req); !errors.Is(err, ErrSlotConflict) {
		t.Errorf("expected ErrSlotConflict for partial overlap, got %v", err)
	}

	// Slots are half-open, so a booking starting exactly at the end is free.
	req.Slot = models.TimeSlot{Start: "10:00", End: "10:30"}
	if _, err := env.booking.Book(context.Background(), req); err != nil {
		t.Errorf("adjacent slot should be bookable, got %v", err)
	}
}

func TestBook_InactiveStatusesFreeTheSlot(t *testing.T) {
	for _, status := range []models.AppointmentStatus{
		models.StatusCancelled, models.StatusCompleted, models.StatusNoShow,
	} {
		env := newTestEnv()
		seedAppt(t, env.store, status)

		if _, err := env.booking.Book(context.Background(), validBookRequest()); err != nil {
			t.Errorf("status %s should free the slot, got %v", status, err)
		}
	}
}

func TestBook_DifferentDoctorsShareClock(t *testing.T) {
	env := newTestEnv()

	if _, err := env.booking.Book(context.Background(), validBookRequest()); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	req := validBookRequest()
	req.DoctorID = "doctor-2"
	req.PatientID = "patient-2"
	if _, err := env.booking.Book(context.Background(), req); err != nil {
		t.Errorf("same slot with another doctor should succeed, got %v", err)
	}
}

func TestBook_PrecheckFailureDefersToInsert(t *testing.T) {
	env := newTestEnv()
	env.store.overlapErr = errors.New("replica timeout")

	// The pre-check is advisory; the insert still decides.
	if _, err := env.booking.Book(context.Background(), validBookRequest()); err != nil {
		t.Fatalf("booking should survive a failed pre-check, got %v", err)
	}

	req := validBookRequest()
	req.PatientID = "patient-2"
	if _, err := env.booking.Book(context.Background(), req); !errors.Is(err, ErrSlotConflict) {
		t.Errorf("insert should still reject the duplicate, got %v", err)
	}
}

func TestBook_ConcurrentSameSlot(t *testing.T) {
	env := newTestEnv()
	const attempts = 8

	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.booking.Book(context.Background(), validBookRequest())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrSlotConflict):
			lost++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("expected exactly 1 winner, got %d", won)
	}
	if lost != attempts-1 {
		t.Errorf("expected %d conflicts, got %d", attempts-1, lost)
	}
}

func TestReschedule_MoveByAdmin(t *testing.T) {
	env := newTestEnv()
	appt := seedAppt(t, env.store, models.StatusPending)

	view, err := env.booking.Reschedule(context.Background(), appt.ID, adminCaller, RescheduleRequest{
		Date: "2025-06-12",
		Slot: &models.TimeSlot{Start: "10:00", End: "10:30"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.AppointmentDate != "2025-06-12" || view.TimeSlot.Start != "10:00" {
		t.Errorf("move not applied: %s %s", view.AppointmentDate, view.TimeSlot.Start)
	}
	if view.Status != models.StatusPending {
		t.Errorf("reschedule must not change status, got %s", view.Status)
	}

	events := env.notifier.Events()
	if len(events) != 1 || events[0].Kind != notification.EventRescheduled {
		t.Errorf("expected a single rescheduled event, got %v", events)
	}
}

func TestReschedule_RoleGate(t *testing.T) {
	tests := []struct {
		name    string
		caller  Caller
		allowed bool
	}{
		{"admin", adminCaller, true},
		{"nurse", nurseCaller, true},
		{"owning patient", ownerPatient, true},
		{"other patient", otherPatient, false},
		{"owning doctor", ownerDoctor, false},
		{"other doctor", otherDoctor, false},
	}
	for _, tt := range tests {
		env := newTestEnv()
		appt := seedAppt(t, env.store, models.StatusPending)

		_, err := env.booking.Reschedule(context.Background(), appt.ID, tt.caller, RescheduleRequest{
			Date: "2025-06-12",
		})
		if tt.allowed && err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
		}
		if !tt.allowed && !errors.Is(err, ErrForbidden) {
			t.Errorf("%s: expected ErrForbidden, got %v", tt.name, err)
		}
	}
}

func TestReschedule_OnlyPending(t *testing.T) {
	for _, status := range []models.AppointmentStatus{
		models.StatusConfirmed, models.StatusCancelled, models.StatusCompleted, models.StatusNoShow,
	} {
		env := newTestEnv()
		appt := seedAppt(t, env.store, status)

		_, err := env.booking.Reschedule(context.Background(), appt.ID, adminCaller, RescheduleRequest{
			Date: "2025-06-12",
		})
		if !isValidationError(err) {
			t.Errorf("status %s: expected validation error, got %v", status, err)
		}
	}
}

func TestReschedule_NotFound(t *testing.T) {
	env := newTestEnv()

	_, err := env.booking.Reschedule(context.Background(), "appt-404", adminCaller, RescheduleRequest{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReschedule_ConflictWithOtherBooking(t *testing.T) {
	env := newTestEnv()
	appt := seedAppt(t, env.store, models.StatusPending)

	other := validBookRequest()
	other.PatientID = "patient-2"
	other.Slot = models.TimeSlot{Start: "10:00", End: "10:30"}
	if _, err := env.booking.Book(context.Background(), other); err != nil {
		t.Fatalf("second booking failed: %v", err)
	}

	_, err := env.booking.Reschedule(context.Background(), appt.ID, adminCaller, RescheduleRequest{
		Slot: &models.TimeSlot{Start: "10:00", End: "10:30"},
	})
	if !errors.Is(err, ErrSlotConflict) {
		t.Errorf("expected ErrSlotConflict, got %v", err)
	}

	// The loser keeps its original slot.
	stored, err := env.store.FindByID(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("refetch failed: %v", err)
	}
	if stored.TimeSlot.Start != "09:00" {
		t.Errorf("failed reschedule must not move the slot, got %s", stored.TimeSlot.Start)
	}
}

func TestReschedule_OwnSlotExcludedFromConflict(t *testing.T) {
	env := newTestEnv()
	appt := seedAppt(t, env.store, models.StatusPending)
	appt.TimeSlot = models.TimeSlot{Start: "09:00", End: "10:00"}
	if err := env.store.Update(context.Background(), appt); err != nil {
		t.Fatalf("widening seeded slot: %v", err)
	}

	// The new slot overlaps only the appointment's own current hold.
	view, err := env.booking.Reschedule(context.Background(), appt.ID, nurseCaller, RescheduleRequest{
		Slot: &models.TimeSlot{Start: "09:30", End: "10:30"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.TimeSlot.Start != "09:30" {
		t.Errorf("expected slot moved to 09:30, got %s", view.TimeSlot.Start)
	}
}

func TestReschedule_PastDateRejected(t *testing.T) {
	env := newTestEnv()
	appt := seedAppt(t, env.store, models.StatusPending)

	_, err := env.booking.Reschedule(context.Background(), appt.ID, adminCaller, RescheduleRequest{
		Date: "2025-05-20",
	})
	if !errors.Is(err, ErrPastDate) {
		t.Errorf("expected ErrPastDate, got %v", err)
	}
}

func TestReschedule_FieldsWithoutMove(t *testing.T) {
	env := newTestEnv()
	appt := seedAppt(t, env.store, models.StatusPending)

	view, err := env.booking.Reschedule(context.Background(), appt.ID, ownerPatient, RescheduleRequest{
		Reason:   "Persistent migraines for two weeks",
		Type:     models.TypeFollowUp,
		Priority: models.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Reason != "Persistent migraines for two weeks" {
		t.Errorf("reason not updated: %q", view.Reason)
	}
	if view.Type != models.TypeFollowUp || view.Priority != models.PriorityHigh {
		t.Errorf("type/priority not updated: %s %s", view.Type, view.Priority)
	}
	if view.AppointmentDate != "2025-06-10" || view.TimeSlot.Start != "09:00" {
		t.Errorf("date and slot must be untouched: %s %s", view.AppointmentDate, view.TimeSlot.Start)
	}

	// No move, no rescheduled event.
	if events := env.notifier.Events(); len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}

func TestReschedule_SameSlotIsNotAMove(t *testing.T) {
	env := newTestEnv()
	appt := seedAppt(t, env.store, models.StatusPending)

	_, err := env.booking.Reschedule(context.Background(), appt.ID, adminCaller, RescheduleRequest{
		Date: "2025-06-10",
		Slot: &models.TimeSlot{Start: "09:00", End: "09:30"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if events := env.notifier.Events(); len(events) != 0 {
		t.Errorf("restating the current slot should not dispatch events, got %d", len(events))
	}
}

func TestReschedule_InvalidFieldValues(t *testing.T) {
	tests := []struct {
		name string
		req  RescheduleRequest
	}{
		{"short reason", RescheduleRequest{Reason: "too short"}},
		{"unknown type", RescheduleRequest{Type: "seance"}},
		{"unknown priority", RescheduleRequest{Priority: "whenever"}},
		{"bad date", RescheduleRequest{Date: "12-06-2025"}},
	}
	for _, tt := range tests {
		env := newTestEnv()
		appt := seedAppt(t, env.store, models.StatusPending)

		_, err := env.booking.Reschedule(context.Background(), appt.ID, adminCaller, tt.req)
		if !isValidationError(err) {
			t.Errorf("%s: expected validation error, got %v", tt.name, err)
		}
	}

	env := newTestEnv()
	appt := seedAppt(t, env.store, models.StatusPending)
	_, err := env.booking.Reschedule(context.Background(), appt.ID, adminCaller, RescheduleRequest{
		Slot: &models.TimeSlot{Start: "11:00", End: "10:00"},
	})
	if !errors.Is(err, ErrInvalidTimeRange) {
		t.Errorf("inverted slot: expected ErrInvalidTimeRange, got %v", err)
	}
}
