package scheduling

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/MrZacked/Healem/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Query filters and paginates appointment listings. Zero values are
// ignored; PageSize == 0 disables pagination.
type Query struct {
	DoctorID  string
	PatientID string
	Status    models.AppointmentStatus
	Statuses  []models.AppointmentStatus
	Date      string
	Page      int
	PageSize  int
}

// Normalize clamps the pagination window to sane bounds.
func (q Query) Normalize() Query {
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	if q.PageSize > 0 && q.Page < 1 {
		q.Page = 1
	}
	return q
}

// Store is the single owner of appointment records. All coordination between
// concurrent bookings is delegated to its storage-level uniqueness
// constraint rather than in-process locks, so multiple instances can run
// side by side.
type Store interface {
	Insert(ctx context.Context, appt *models.Appointment) error
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	FindByQuery(ctx context.Context, q Query) ([]models.Appointment, int64, error)
	Update(ctx context.Context, appt *models.Appointment) error
	Delete(ctx context.Context, id string) error

	// CountActiveOverlaps is a best-effort pre-check: the number of active
	// appointments for the doctor on the date whose interval overlaps the
	// slot. The insert/update outcome remains the final authority.
	CountActiveOverlaps(ctx context.Context, doctorID, date string, slot models.TimeSlot, excludeID string) (int64, error)

	AppendPrescription(ctx context.Context, appointmentID string, entries []models.PrescriptionEntry) error

	FindDueReminders(ctx context.Context, from, until string) ([]models.Appointment, error)
	MarkReminderSent(ctx context.Context, id string) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore returns the GORM-backed scheduling store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Insert(ctx context.Context, appt *models.Appointment) error {
	if err := s.db.WithContext(ctx).Create(appt).Error; err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (s *gormStore) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	var appt models.Appointment
	err := s.db.WithContext(ctx).Preload("Prescription").First(&appt, "id = ?", id).Error
	if err != nil {
		return nil, mapStoreError(err)
	}
	return &appt, nil
}

func (s *gormStore) FindByQuery(ctx context.Context, q Query) ([]models.Appointment, int64, error) {
	q = q.Normalize()
	tx := s.db.WithContext(ctx).Model(&models.Appointment{})

	if q.DoctorID != "" {
		tx = tx.Where("doctor_id = ?", q.DoctorID)
	}
	if q.PatientID != "" {
		tx = tx.Where("patient_id = ?", q.PatientID)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if len(q.Statuses) > 0 {
		tx = tx.Where("status IN ?", q.Statuses)
	}
	if q.Date != "" {
		tx = tx.Where("appointment_date = ?", q.Date)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, mapStoreError(err)
	}

	if q.PageSize > 0 {
		tx = tx.Offset((q.Page - 1) * q.PageSize).Limit(q.PageSize)
	}

	var appts []models.Appointment
	err := tx.Preload("Prescription").
		Order("appointment_date asc, slot_start asc").
		Find(&appts).Error
	if err != nil {
		return nil, 0, mapStoreError(err)
	}
	return appts, total, nil
}

func (s *gormStore) Update(ctx context.Context, appt *models.Appointment) error {
	// A slot move hits the same partial unique index as an insert, so a
	// losing reschedule surfaces as a conflict here.
	if err := s.db.WithContext(ctx).Save(appt).Error; err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (s *gormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Appointment{}, "id = ?", id)
	if res.Error != nil {
		return mapStoreError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) CountActiveOverlaps(ctx context.Context, doctorID, date string, slot models.TimeSlot, excludeID string) (int64, error) {
	// Zero-padded HH:MM strings compare lexicographically in clock order,
	// so the half-open interval overlap test works directly on the columns.
	tx := s.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("doctor_id = ? AND appointment_date = ?", doctorID, date).
		Where("status IN ?", models.ActiveStatuses).
		Where("slot_start < ? AND slot_end > ?", slot.End, slot.Start)
	if excludeID != "" {
		tx = tx.Where("id <> ?", excludeID)
	}

	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return 0, mapStoreError(err)
	}
	return count, nil
}

func (s *gormStore) FindDueReminders(ctx context.Context, from, until string) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := s.db.WithContext(ctx).
		Where("status = ? AND reminder_sent = ?", models.StatusConfirmed, false).
		Where("appointment_date >= ? AND appointment_date <= ?", from, until).
		Order("appointment_date asc, slot_start asc").
		Find(&appts).Error
	if err != nil {
		return nil, mapStoreError(err)
	}
	return appts, nil
}

func (s *gormStore) AppendPrescription(ctx context.Context, appointmentID string, entries []models.PrescriptionEntry) error {
	for i := range entries {
		entries[i].AppointmentID = appointmentID
	}
	if err := s.db.WithContext(ctx).Create(&entries).Error; err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (s *gormStore) MarkReminderSent(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("id = ?", id).
		Update("reminder_sent", true).Error
	if err != nil {
		return mapStoreError(err)
	}
	return nil
}

// mapStoreError folds driver errors into the domain taxonomy. Unique
// violations on the active-slot index are the losing side of a booking race.
func mapStoreError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrSlotConflict
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
