package scheduling

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/MrZacked/Healem/internal/models"
	"github.com/MrZacked/Healem/internal/notification"
)

// allowedTransitions is the appointment state machine. A (from, to) pair
// absent from this table is illegal for every role.
var allowedTransitions = map[models.AppointmentStatus][]models.AppointmentStatus{
	models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled, models.StatusNoShow},
	models.StatusConfirmed: {models.StatusCancelled, models.StatusCompleted, models.StatusNoShow},
}

func transitionAllowed(from, to models.AppointmentStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// canTrigger applies the per-transition role gate. The (from, to) pair has
// already passed the state machine check.
func canTrigger(appt *models.Appointment, caller Caller, to models.AppointmentStatus) bool {
	doctorOwner := caller.Role == models.RoleDoctor && caller.ID == appt.DoctorID
	patientOwner := caller.Role == models.RolePatient && caller.ID == appt.PatientID
	staff := caller.Role.IsStaff()

	switch to {
	case models.StatusConfirmed:
		return staff || doctorOwner
	case models.StatusCancelled:
		if appt.Status == models.StatusPending {
			return staff || doctorOwner || patientOwner
		}
		return staff || doctorOwner
	case models.StatusCompleted:
		return doctorOwner
	case models.StatusNoShow:
		return staff || doctorOwner
	}
	return false
}

// TransitionRequest carries a status change and the fields that ride along
// with it.
type TransitionRequest struct {
	Status             models.AppointmentStatus
	Notes              string
	CancellationReason string
}

// LifecycleManager drives appointment status changes and the bookkeeping
// attached to them.
type LifecycleManager struct {
	store    Store
	users    Directory
	notifier notification.Notifier
	log      *zap.Logger
}

func NewLifecycleManager(store Store, users Directory, notifier notification.Notifier, log *zap.Logger) *LifecycleManager {
	return &LifecycleManager{store: store, users: users, notifier: notifier, log: log}
}

// Transition moves an appointment to req.Status on behalf of the caller.
// When req.Status equals the current status no transition happens and only
// the note fields are written, gated by the read predicate.
func (m *LifecycleManager) Transition(ctx context.Context, id string, caller Caller, req TransitionRequest) (*AppointmentView, error) {
	if !req.Status.IsValid() {
		return nil, newValidationError("status", "unknown status %q", req.Status)
	}
	appt, err := m.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Status == appt.Status {
		if !CanAccess(appt, caller) {
			return nil, ErrForbidden
		}
		applyNotes(appt, caller, req.Notes)
		if err := m.store.Update(ctx, appt); err != nil {
			return nil, err
		}
		return NewAppointmentView(ctx, m.users, appt), nil
	}

	if !transitionAllowed(appt.Status, req.Status) {
		return nil, ErrInvalidTransition
	}
	if !canTrigger(appt, caller, req.Status) {
		return nil, ErrForbidden
	}

	from := appt.Status
	appt.Status = req.Status
	if req.Status == models.StatusCancelled {
		appt.CancelledBy = string(caller.Role)
		appt.CancellationReason = strings.TrimSpace(req.CancellationReason)
	}
	applyNotes(appt, caller, req.Notes)

	if err := m.store.Update(ctx, appt); err != nil {
		return nil, err
	}

	m.log.Info("appointment status changed",
		zap.String("appointment_id", appt.ID),
		zap.String("from", string(from)),
		zap.String("to", string(appt.Status)),
		zap.String("caller_role", string(caller.Role)))

	switch appt.Status {
	case models.StatusConfirmed:
		dispatchEvent(ctx, m.users, m.notifier, m.log, appt, notification.EventConfirmed)
	case models.StatusCancelled:
		dispatchEvent(ctx, m.users, m.notifier, m.log, appt, notification.EventCancelled)
	}

	return NewAppointmentView(ctx, m.users, appt), nil
}

// applyNotes writes the caller's note into the field their role owns.
func applyNotes(appt *models.Appointment, caller Caller, notes string) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return
	}
	switch caller.Role {
	case models.RolePatient:
		appt.Notes.Patient = notes
	case models.RoleDoctor:
		appt.Notes.Doctor = notes
	case models.RoleAdmin, models.RoleNurse:
		appt.Notes.Admin = notes
	}
}

// AppendPrescription adds entries to the appointment's prescription list.
// Only the appointment's own doctor may prescribe; existing entries are never
// modified or removed.
func (m *LifecycleManager) AppendPrescription(ctx context.Context, id string, caller Caller, entries []models.PrescriptionEntry) (*AppointmentView, error) {
	if len(entries) == 0 {
		return nil, newValidationError("prescription", "at least one entry is required")
	}
	for i := range entries {
		if strings.TrimSpace(entries[i].Name) == "" {
			return nil, newValidationError("prescription", "entry %d: medication name is required", i)
		}
	}

	appt, err := m.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.Role != models.RoleDoctor || caller.ID != appt.DoctorID {
		return nil, ErrForbidden
	}

	if err := m.store.AppendPrescription(ctx, appt.ID, entries); err != nil {
		return nil, err
	}

	appt, err = m.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewAppointmentView(ctx, m.users, appt), nil
}
