package scheduling

import (
	"context"

	"go.uber.org/zap"

	"github.com/MrZacked/Healem/internal/models"
	"github.com/MrZacked/Healem/internal/notification"
)

// NewEvent builds the notification payload for an appointment, resolving
// display fields from the directory best-effort: a directory failure leaves
// them empty rather than blocking the event.
func NewEvent(ctx context.Context, users Directory, appt *models.Appointment, kind notification.EventKind) notification.Event {
	event := notification.Event{
		AppointmentID: appt.ID,
		Kind:          kind,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Date:          appt.AppointmentDate,
		SlotStart:     appt.TimeSlot.Start,
		SlotEnd:       appt.TimeSlot.End,
	}
	if patient, err := users.GetUser(ctx, appt.PatientID); err == nil && patient != nil {
		event.PatientName = patient.DisplayName
		event.PatientEmail = patient.Email
	}
	if doctor, err := users.GetUser(ctx, appt.DoctorID); err == nil && doctor != nil {
		event.DoctorName = doctor.DisplayName
	}
	return event
}

// dispatchEvent publishes an appointment event. Failures are logged and
// swallowed so a broken broker never fails a scheduling operation.
func dispatchEvent(ctx context.Context, users Directory, notifier notification.Notifier, log *zap.Logger, appt *models.Appointment, kind notification.EventKind) {
	event := NewEvent(ctx, users, appt, kind)
	if err := notifier.Dispatch(ctx, event); err != nil {
		log.Warn("notification dispatch failed",
			zap.String("appointment_id", appt.ID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}
