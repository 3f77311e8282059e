package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MrZacked/Healem/internal/metrics"
	"github.com/MrZacked/Healem/internal/middleware"
	"github.com/MrZacked/Healem/internal/models"
	"github.com/MrZacked/Healem/internal/scheduling"
	"github.com/MrZacked/Healem/internal/utils"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Booking      *scheduling.BookingService
	Lifecycle    *scheduling.LifecycleManager
	Availability *scheduling.AvailabilityEngine
	Store        scheduling.Store
	Users        scheduling.Directory
	Metrics      *metrics.Collector
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(booking *scheduling.BookingService, lifecycle *scheduling.LifecycleManager, availability *scheduling.AvailabilityEngine, store scheduling.Store, users scheduling.Directory, collector *metrics.Collector) *AppointmentHandler {
	return &AppointmentHandler{
		Booking:      booking,
		Lifecycle:    lifecycle,
		Availability: availability,
		Store:        store,
		Users:        users,
		Metrics:      collector,
	}
}

// callerFromContext builds the scheduling caller from the auth middleware's
// context values.
func callerFromContext(c *gin.Context) (scheduling.Caller, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return scheduling.Caller{}, false
	}
	role, ok := middleware.GetUserRoleFromContext(c)
	if !ok {
		return scheduling.Caller{}, false
	}
	return scheduling.Caller{ID: userID, Role: role}, true
}

// respondSchedulingError maps scheduling errors onto the response envelope.
func respondSchedulingError(c *gin.Context, err error) {
	var validationErr *scheduling.ValidationError
	switch {
	case errors.As(err, &validationErr):
		utils.BadRequest(c, validationErr.Error())
	case errors.Is(err, scheduling.ErrNotFound):
		utils.NotFound(c, "Appointment not found")
	case errors.Is(err, scheduling.ErrForbidden):
		utils.Forbidden(c, "You are not authorized to perform this action on this appointment")
	case errors.Is(err, scheduling.ErrSlotConflict):
		utils.Conflict(c, "The requested time slot is already booked for this doctor")
	case errors.Is(err, scheduling.ErrInvalidTransition):
		utils.BadRequest(c, "The requested status change is not allowed from the appointment's current status")
	case errors.Is(err, scheduling.ErrInvalidDoctor):
		utils.BadRequest(c, "Doctor not found, inactive, or not a doctor")
	case errors.Is(err, scheduling.ErrInvalidPatient):
		utils.BadRequest(c, "Patient not found or user is not a patient")
	case errors.Is(err, scheduling.ErrPastDate):
		utils.BadRequest(c, "Appointment date must be in the future")
	case errors.Is(err, scheduling.ErrInvalidTimeRange):
		utils.BadRequest(c, "Time slot start must be before its end")
	default:
		utils.InternalServerError(c, "Failed to process appointment request: "+err.Error())
	}
}

func (h *AppointmentHandler) countBooking(outcome string) {
	if h.Metrics != nil {
		h.Metrics.BookingsTotal.WithLabelValues(outcome).Inc()
	}
}

// CreateAppointmentRequest represents the request body for creating an appointment.
type CreateAppointmentRequest struct {
	DoctorID          string          `json:"doctorId" binding:"required,uuid"`
	PatientID         string          `json:"patientId" binding:"omitempty,uuid"`
	AppointmentDate   string          `json:"appointmentDate" binding:"required"`
	TimeSlot          models.TimeSlot `json:"timeSlot" binding:"required"`
	Reason            string          `json:"reason" binding:"required"`
	Type              string          `json:"type" binding:"omitempty,oneof=consultation follow-up check-up emergency surgery"`
	Priority          string          `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	EstimatedDuration int             `json:"estimatedDuration" binding:"omitempty,min=15,max=240"`
}

// CreateAppointment handles booking a new appointment. Patients book for
// themselves; staff may book on a patient's behalf.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	caller, ok := callerFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	patientID := req.PatientID
	if caller.Role == models.RolePatient {
		if patientID != "" && patientID != caller.ID {
			utils.Forbidden(c, "Patients can only book appointments for themselves.")
			return
		}
		patientID = caller.ID
	}
	if patientID == "" {
		utils.BadRequest(c, "patientId is required when booking on behalf of a patient")
		return
	}

	view, err := h.Booking.Book(c.Request.Context(), scheduling.BookRequest{
		PatientID:         patientID,
		DoctorID:          req.DoctorID,
		Date:              req.AppointmentDate,
		Slot:              req.TimeSlot,
		Reason:            req.Reason,
		Type:              models.AppointmentType(req.Type),
		Priority:          models.AppointmentPriority(req.Priority),
		EstimatedDuration: req.EstimatedDuration,
	})
	if err != nil {
		if errors.Is(err, scheduling.ErrSlotConflict) {
			h.countBooking("conflict")
		} else {
			h.countBooking("rejected")
		}
		respondSchedulingError(c, err)
		return
	}

	h.countBooking("booked")
	utils.Created(c, "Appointment created successfully", view)
}

// GetAppointmentsForUser handles fetching appointments visible to the logged-in
// user. Patients and doctors are scoped to their own appointments; admins and
// nurses may filter freely.
func (h *AppointmentHandler) GetAppointmentsForUser(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	query := scheduling.Query{
		Date: c.Query("date"),
	}

	if status := c.Query("status"); status != "" {
		parsed := models.AppointmentStatus(status)
		if !parsed.IsValid() {
			utils.BadRequest(c, "Invalid status filter: "+status)
			return
		}
		query.Status = parsed
	}

	var err error
	if query.Page, err = queryInt(c, "page", 1); err != nil {
		utils.BadRequest(c, "Invalid page parameter")
		return
	}
	if query.PageSize, err = queryInt(c, "pageSize", 0); err != nil {
		utils.BadRequest(c, "Invalid pageSize parameter")
		return
	}

	switch caller.Role {
	case models.RolePatient:
		query.PatientID = caller.ID
	case models.RoleDoctor:
		query.DoctorID = caller.ID
	case models.RoleAdmin, models.RoleNurse:
		query.DoctorID = c.Query("doctorId")
		query.PatientID = c.Query("patientId")
	default:
		utils.Forbidden(c, "User role not permitted to view appointments")
		return
	}

	query = query.Normalize()
	appointments, total, err := h.Store.FindByQuery(c.Request.Context(), query)
	if err != nil {
		respondSchedulingError(c, err)
		return
	}

	utils.Success(c, "Appointments fetched successfully", gin.H{
		"appointments": scheduling.NewAppointmentViews(c.Request.Context(), h.Users, appointments),
		"total":        total,
		"page":         query.Page,
		"pageSize":     query.PageSize,
	})
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// GetAppointmentByID handles fetching a single appointment by its ID.
// Accessible by the involved patient and doctor, admins, and nurses.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	appointmentID := c.Param("id")
	if _, err := uuid.Parse(appointmentID); err != nil {
		utils.BadRequest(c, "Invalid Appointment ID format")
		return
	}

	caller, ok := callerFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	appointment, err := h.Store.FindByID(c.Request.Context(), appointmentID)
	if err != nil {
		respondSchedulingError(c, err)
		return
	}

	if !scheduling.CanAccess(appointment, caller) {
		utils.Forbidden(c, "You are not authorized to view this appointment")
		return
	}

	utils.Success(c, "Appointment fetched successfully", scheduling.NewAppointmentView(c.Request.Context(), h.Users, appointment))
}

// GetDoctorAvailability handles fetching a doctor's open slots for one day.
func (h *AppointmentHandler) GetDoctorAvailability(c *gin.Context) {
	doctorID := c.Param("id")
	if _, err := uuid.Parse(doctorID); err != nil {
		utils.BadRequest(c, "Invalid Doctor ID format")
		return
	}

	date := c.Query("date")
	if date == "" {
		utils.BadRequest(c, "date query parameter is required")
		return
	}

	availability, err := h.Availability.Availability(c.Request.Context(), doctorID, date)
	if err != nil {
		respondSchedulingError(c, err)
		return
	}

	utils.Success(c, "Availability fetched successfully", availability)
}

// UpdateAppointmentStatusRequest represents the request body for updating an
// appointment's status.
type UpdateAppointmentStatusRequest struct {
	Status             models.AppointmentStatus `json:"status" binding:"required,oneof=pending confirmed cancelled completed no-show"`
	Notes              string                   `json:"notes"`
	CancellationReason string                   `json:"cancellationReason"`
}

// UpdateAppointmentStatus handles moving an appointment through its lifecycle.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	appointmentID := c.Param("id")
	if _, err := uuid.Parse(appointmentID); err != nil {
		utils.BadRequest(c, "Invalid Appointment ID format")
		return
	}

	var req UpdateAppointmentStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	caller, ok := callerFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	view, err := h.Lifecycle.Transition(c.Request.Context(), appointmentID, caller, scheduling.TransitionRequest{
		Status:             req.Status,
		Notes:              req.Notes,
		CancellationReason: req.CancellationReason,
	})
	if err != nil {
		respondSchedulingError(c, err)
		return
	}

	if h.Metrics != nil {
		h.Metrics.TransitionsTotal.WithLabelValues(string(req.Status)).Inc()
	}
	utils.Success(c, "Appointment status updated successfully", view)
}

// RescheduleAppointmentRequest represents the request body for rescheduling an
// appointment. Omitted fields are left unchanged.
type RescheduleAppointmentRequest struct {
	AppointmentDate string           `json:"appointmentDate"`
	TimeSlot        *models.TimeSlot `json:"timeSlot"`
	Reason          string           `json:"reason"`
	Type            string           `json:"type" binding:"omitempty,oneof=consultation follow-up check-up emergency surgery"`
	Priority        string           `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
}

// RescheduleAppointment handles moving a pending appointment to a new slot or
// editing its details.
func (h *AppointmentHandler) RescheduleAppointment(c *gin.Context) {
	appointmentID := c.Param("id")
	if _, err := uuid.Parse(appointmentID); err != nil {
		utils.BadRequest(c, "Invalid Appointment ID format")
		return
	}

	var req RescheduleAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	caller, ok := callerFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	view, err := h.Booking.Reschedule(c.Request.Context(), appointmentID, caller, scheduling.RescheduleRequest{
		Date:     req.AppointmentDate,
		Slot:     req.TimeSlot,
		Reason:   req.Reason,
		Type:     models.AppointmentType(req.Type),
		Priority: models.AppointmentPriority(req.Priority),
	})
	if err != nil {
		if errors.Is(err, scheduling.ErrSlotConflict) {
			h.countBooking("conflict")
		}
		respondSchedulingError(c, err)
		return
	}

	utils.Success(c, "Appointment rescheduled successfully", view)
}

// PrescriptionEntryPayload is one medication line in a prescription request.
type PrescriptionEntryPayload struct {
	Name         string `json:"name" binding:"required"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

// AddPrescriptionRequest represents the request body for adding prescription
// entries to an appointment.
type AddPrescriptionRequest struct {
	Prescription []PrescriptionEntryPayload `json:"prescription" binding:"required,min=1,dive"`
}

// AddPrescription handles appending prescription entries to an appointment.
// Only the appointment's doctor may prescribe.
func (h *AppointmentHandler) AddPrescription(c *gin.Context) {
	appointmentID := c.Param("id")
	if _, err := uuid.Parse(appointmentID); err != nil {
		utils.BadRequest(c, "Invalid Appointment ID format")
		return
	}

	var req AddPrescriptionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	caller, ok := callerFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	entries := make([]models.PrescriptionEntry, len(req.Prescription))
	for i, p := range req.Prescription {
		entries[i] = models.PrescriptionEntry{
			Name:         p.Name,
			Dosage:       p.Dosage,
			Frequency:    p.Frequency,
			Duration:     p.Duration,
			Instructions: p.Instructions,
		}
	}

	view, err := h.Lifecycle.AppendPrescription(c.Request.Context(), appointmentID, caller, entries)
	if err != nil {
		respondSchedulingError(c, err)
		return
	}

	utils.Success(c, "Prescription added successfully", view)
}

// DeleteAppointment handles removing an appointment record entirely.
// Admin only; cancelling is the normal path for everyone else.
func (h *AppointmentHandler) DeleteAppointment(c *gin.Context) {
	appointmentID := c.Param("id")
	if _, err := uuid.Parse(appointmentID); err != nil {
		utils.BadRequest(c, "Invalid Appointment ID format")
		return
	}

	if err := h.Store.Delete(c.Request.Context(), appointmentID); err != nil {
		respondSchedulingError(c, err)
		return
	}

	utils.Success(c, "Appointment deleted successfully", nil)
}
