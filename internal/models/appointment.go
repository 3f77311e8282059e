package models

import (
	"fmt"
	"time"
)

// DateLayout is the canonical form of an appointment's calendar date.
const DateLayout = "2006-01-02"

// ClockLayout is the canonical form of a slot boundary (24-hour wall clock).
const ClockLayout = "15:04"

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no-show"
)

// ActiveStatuses are the statuses that occupy a doctor's slot. All other
// statuses free it.
var ActiveStatuses = []AppointmentStatus{StatusPending, StatusConfirmed}

// IsValid reports whether the status is one of the known values.
func (s AppointmentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// IsActive reports whether the appointment still holds its slot.
func (s AppointmentStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

// IsTerminal reports whether no further transitions are possible.
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// AppointmentType categorizes the visit.
type AppointmentType string

const (
	TypeConsultation AppointmentType = "consultation"
	TypeFollowUp     AppointmentType = "follow-up"
	TypeCheckUp      AppointmentType = "check-up"
	TypeEmergency    AppointmentType = "emergency"
	TypeSurgery      AppointmentType = "surgery"
)

func (t AppointmentType) IsValid() bool {
	switch t {
	case TypeConsultation, TypeFollowUp, TypeCheckUp, TypeEmergency, TypeSurgery:
		return true
	}
	return false
}

// AppointmentPriority ranks scheduling urgency.
type AppointmentPriority string

const (
	PriorityLow    AppointmentPriority = "low"
	PriorityMedium AppointmentPriority = "medium"
	PriorityHigh   AppointmentPriority = "high"
	PriorityUrgent AppointmentPriority = "urgent"
)

func (p AppointmentPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// TimeSlot is a half-open [Start, End) interval of HH:MM wall-clock strings.
type TimeSlot struct {
	Start string `gorm:"size:5" json:"start"`
	End   string `gorm:"size:5" json:"end"`
}

// Validate checks that both bounds parse as HH:MM and start precedes end
// when compared as minutes since midnight.
func (t TimeSlot) Validate() error {
	start, err := MinutesOfDay(t.Start)
	if err != nil {
		return fmt.Errorf("invalid slot start %q: %w", t.Start, err)
	}
	end, err := MinutesOfDay(t.End)
	if err != nil {
		return fmt.Errorf("invalid slot end %q: %w", t.End, err)
	}
	if start >= end {
		return fmt.Errorf("slot start %s must be before end %s", t.Start, t.End)
	}
	return nil
}

// Overlaps reports whether two slots share any time on the same date.
// Zero-padded HH:MM strings order lexicographically in clock order, so
// plain string comparison is exact here.
func (t TimeSlot) Overlaps(other TimeSlot) bool {
	return t.Start < other.End && t.End > other.Start
}

// MinutesOfDay converts an HH:MM string to minutes since midnight.
func MinutesOfDay(clock string) (int, error) {
	parsed, err := time.Parse(ClockLayout, clock)
	if err != nil {
		return 0, err
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// Notes holds per-role annotations on an appointment. Each field is only
// writable by its author role.
type Notes struct {
	Patient string `gorm:"column:patient_notes;type:text" json:"patient,omitempty"`
	Doctor  string `gorm:"column:doctor_notes;type:text" json:"doctor,omitempty"`
	Admin   string `gorm:"column:admin_notes;type:text" json:"admin,omitempty"`
}

// PrescriptionEntry is a single medication line attached to an appointment.
// Entries are append-only.
type PrescriptionEntry struct {
	BaseModel
	AppointmentID string `gorm:"size:36;index" json:"-"`
	Name          string `gorm:"size:255;not null" json:"name"`
	Dosage        string `gorm:"size:100" json:"dosage"`
	Frequency     string `gorm:"size:100" json:"frequency"`
	Duration      string `gorm:"size:100" json:"duration"`
	Instructions  string `gorm:"type:text" json:"instructions,omitempty"`
}

// Appointment represents a scheduled medical appointment
type Appointment struct {
	BaseModel
	PatientID          string              `gorm:"size:36;index" json:"patientId"`
	DoctorID           string              `gorm:"size:36;index" json:"doctorId"`
	AppointmentDate    string              `gorm:"size:10" json:"appointmentDate"`
	TimeSlot           TimeSlot            `gorm:"embedded;embeddedPrefix:slot_" json:"timeSlot"`
	Status             AppointmentStatus   `gorm:"size:20;default:'pending'" json:"status"`
	Type               AppointmentType     `gorm:"size:20;default:'consultation'" json:"type"`
	Priority           AppointmentPriority `gorm:"size:10;default:'medium'" json:"priority"`
	Reason             string              `gorm:"size:500" json:"reason"`
	Notes              Notes               `gorm:"embedded" json:"notes"`
	Prescription       []PrescriptionEntry `gorm:"foreignKey:AppointmentID" json:"prescription,omitempty"`
	CancelledBy        string              `gorm:"size:20" json:"cancelledBy,omitempty"`
	CancellationReason string              `gorm:"size:500" json:"cancellationReason,omitempty"`
	EstimatedDuration  int                 `gorm:"default:30" json:"estimatedDuration"`
	ReminderSent       bool                `gorm:"default:false" json:"reminderSent"`

	// Relations
	Patient User `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  User `gorm:"foreignKey:DoctorID" json:"-"`
}
