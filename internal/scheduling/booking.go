package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MrZacked/Healem/internal/models"
	"github.com/MrZacked/Healem/internal/notification"
)

const (
	minReasonLength = 10
	maxReasonLength = 500

	minEstimatedDuration     = 15
	maxEstimatedDuration     = 240
	defaultEstimatedDuration = 30
)

// BookRequest carries everything needed to create an appointment. Type,
// Priority and EstimatedDuration are optional and default to consultation,
// medium and 30 minutes.
type BookRequest struct {
	PatientID         string
	DoctorID          string
	Date              string
	Slot              models.TimeSlot
	Reason            string
	Type              models.AppointmentType
	Priority          models.AppointmentPriority
	EstimatedDuration int
}

// RescheduleRequest updates scheduling fields on a pending appointment.
// Zero-valued fields are left unchanged.
type RescheduleRequest struct {
	Date     string
	Slot     *models.TimeSlot
	Reason   string
	Type     models.AppointmentType
	Priority models.AppointmentPriority
}

// BookingService creates and reschedules appointments. The store's
// uniqueness constraint is the final authority on slot conflicts; the
// service's overlap pre-check only exists to fail fast with a clean error
// before touching the constraint.
type BookingService struct {
	store    Store
	users    Directory
	notifier notification.Notifier
	log      *zap.Logger

	now func() time.Time
}

func NewBookingService(store Store, users Directory, notifier notification.Notifier, log *zap.Logger) *BookingService {
	return &BookingService{
		store:    store,
		users:    users,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Book creates a pending appointment after checking the preconditions in
// order: doctor, patient, date, time slot, reason.
func (s *BookingService) Book(ctx context.Context, req BookRequest) (*AppointmentView, error) {
	doctor, err := s.users.GetUser(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if doctor == nil || doctor.Role != models.RoleDoctor || !doctor.IsActive {
		return nil, ErrInvalidDoctor
	}

	patient, err := s.users.GetUser(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if patient == nil || patient.Role != models.RolePatient {
		return nil, ErrInvalidPatient
	}

	date, err := ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	// ISO dates compare lexicographically, so string comparison rejects today
	// and everything before it.
	if date <= s.today() {
		return nil, ErrPastDate
	}

	if err := req.Slot.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimeRange, err)
	}

	reason := strings.TrimSpace(req.Reason)
	if len(reason) < minReasonLength || len(reason) > maxReasonLength {
		return nil, newValidationError("reason", "must be between %d and %d characters", minReasonLength, maxReasonLength)
	}

	appt := &models.Appointment{
		PatientID:         req.PatientID,
		DoctorID:          req.DoctorID,
		AppointmentDate:   date,
		TimeSlot:          req.Slot,
		Status:            models.StatusPending,
		Type:              req.Type,
		Priority:          req.Priority,
		Reason:            reason,
		EstimatedDuration: req.EstimatedDuration,
	}
	switch {
	case appt.Type == "":
		appt.Type = models.TypeConsultation
	case !appt.Type.IsValid():
		return nil, newValidationError("type", "unknown appointment type %q", appt.Type)
	}
	switch {
	case appt.Priority == "":
		appt.Priority = models.PriorityMedium
	case !appt.Priority.IsValid():
		return nil, newValidationError("priority", "unknown priority %q", appt.Priority)
	}
	switch {
	case appt.EstimatedDuration == 0:
		appt.EstimatedDuration = defaultEstimatedDuration
	case appt.EstimatedDuration < minEstimatedDuration || appt.EstimatedDuration > maxEstimatedDuration:
		return nil, newValidationError("estimatedDuration", "must be between %d and %d minutes", minEstimatedDuration, maxEstimatedDuration)
	}

	// Best-effort pre-check; the store's unique constraint decides races.
	count, err := s.store.CountActiveOverlaps(ctx, req.DoctorID, date, req.Slot, "")
	if err != nil {
		s.log.Warn("overlap pre-check failed", zap.Error(err))
	} else if count > 0 {
		return nil, ErrSlotConflict
	}

	if err := s.store.Insert(ctx, appt); err != nil {
		return nil, err
	}

	s.log.Info("appointment booked",
		zap.String("appointment_id", appt.ID),
		zap.String("patient_id", appt.PatientID),
		zap.String("doctor_id", appt.DoctorID),
		zap.String("date", appt.AppointmentDate),
		zap.String("slot_start", appt.TimeSlot.Start))

	dispatchEvent(ctx, s.users, s.notifier, s.log, appt, notification.EventCreated)

	return &AppointmentView{
		Appointment:          *appt,
		PatientName:          patient.DisplayName,
		DoctorName:           doctor.DisplayName,
		DoctorSpecialization: doctor.Specialization,
	}, nil
}

// Reschedule edits a pending appointment. Only admins, nurses, and the owning
// patient may reschedule. A new date or slot re-runs the same checks as a
// fresh booking, with the appointment's own slot excluded from the conflict
// count.
func (s *BookingService) Reschedule(ctx context.Context, id string, caller Caller, req RescheduleRequest) (*AppointmentView, error) {
	appt, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	patientOwner := caller.Role == models.RolePatient && caller.ID == appt.PatientID
	if !caller.Role.IsStaff() && !patientOwner {
		return nil, ErrForbidden
	}
	if appt.Status != models.StatusPending {
		return nil, newValidationError("status", "only pending appointments can be rescheduled")
	}

	if req.Reason != "" {
		reason := strings.TrimSpace(req.Reason)
		if len(reason) < minReasonLength || len(reason) > maxReasonLength {
			return nil, newValidationError("reason", "must be between %d and %d characters", minReasonLength, maxReasonLength)
		}
		appt.Reason = reason
	}
	if req.Type != "" {
		if !req.Type.IsValid() {
			return nil, newValidationError("type", "unknown appointment type %q", req.Type)
		}
		appt.Type = req.Type
	}
	if req.Priority != "" {
		if !req.Priority.IsValid() {
			return nil, newValidationError("priority", "unknown priority %q", req.Priority)
		}
		appt.Priority = req.Priority
	}

	moved := false
	if req.Date != "" || req.Slot != nil {
		date := appt.AppointmentDate
		slot := appt.TimeSlot
		if req.Date != "" {
			date, err = ParseDate(req.Date)
			if err != nil {
				return nil, err
			}
			if date <= s.today() {
				return nil, ErrPastDate
			}
		}
		if req.Slot != nil {
			if err := req.Slot.Validate(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidTimeRange, err)
			}
			slot = *req.Slot
		}

		moved = date != appt.AppointmentDate || slot != appt.TimeSlot
		if moved {
			count, err := s.store.CountActiveOverlaps(ctx, appt.DoctorID, date, slot, appt.ID)
			if err != nil {
				s.log.Warn("overlap pre-check failed", zap.Error(err))
			} else if count > 0 {
				return nil, ErrSlotConflict
			}
			appt.AppointmentDate = date
			appt.TimeSlot = slot
		}
	}

	if err := s.store.Update(ctx, appt); err != nil {
		return nil, err
	}

	s.log.Info("appointment rescheduled",
		zap.String("appointment_id", appt.ID),
		zap.String("date", appt.AppointmentDate),
		zap.String("slot_start", appt.TimeSlot.Start),
		zap.Bool("moved", moved))

	if moved {
		dispatchEvent(ctx, s.users, s.notifier, s.log, appt, notification.EventRescheduled)
	}

	return NewAppointmentView(ctx, s.users, appt), nil
}

func (s *BookingService) today() string {
	return s.now().Format(models.DateLayout)
}
