package scheduling

import (
	"context"

	"github.com/MrZacked/Healem/internal/models"
)

// Caller identifies the authenticated user driving a scheduling operation.
type Caller struct {
	ID   string
	Role models.Role
}

// CanAccess reports whether the caller may read the appointment. Admins and
// nurses see everything; doctors and patients only their own appointments.
func CanAccess(appt *models.Appointment, caller Caller) bool {
	switch caller.Role {
	case models.RoleAdmin, models.RoleNurse:
		return true
	case models.RoleDoctor:
		return caller.ID == appt.DoctorID
	case models.RolePatient:
		return caller.ID == appt.PatientID
	}
	return false
}

// AppointmentView is an appointment decorated with display fields resolved
// from the user directory at read time. Display data is never stored on the
// appointment record itself.
type AppointmentView struct {
	models.Appointment
	PatientName          string `json:"patientName,omitempty"`
	DoctorName           string `json:"doctorName,omitempty"`
	DoctorSpecialization string `json:"doctorSpecialization,omitempty"`
}

// NewAppointmentView resolves display fields best-effort: a directory failure
// leaves the fields empty rather than failing the read.
func NewAppointmentView(ctx context.Context, users Directory, appt *models.Appointment) *AppointmentView {
	view := &AppointmentView{Appointment: *appt}
	if patient, err := users.GetUser(ctx, appt.PatientID); err == nil && patient != nil {
		view.PatientName = patient.DisplayName
	}
	if doctor, err := users.GetUser(ctx, appt.DoctorID); err == nil && doctor != nil {
		view.DoctorName = doctor.DisplayName
		view.DoctorSpecialization = doctor.Specialization
	}
	return view
}

// NewAppointmentViews maps a result page.
func NewAppointmentViews(ctx context.Context, users Directory, appts []models.Appointment) []*AppointmentView {
	views := make([]*AppointmentView, len(appts))
	for i := range appts {
		views[i] = NewAppointmentView(ctx, users, &appts[i])
	}
	return views
}
