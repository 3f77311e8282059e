package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/MrZacked/Healem/internal/models"
	"github.com/MrZacked/Healem/internal/notification"
)

// memStore is an in-memory Store. Insert and Update enforce the same
// uniqueness rule as the database's partial index: among pending and
// confirmed appointments, a doctor's exact (date, start, end) slot is held
// by at most one row.
type memStore struct {
	mu    sync.Mutex
	appts map[string]*models.Appointment
	seq   int

	overlapErr error
	findErr    error
}

func newMemStore() *memStore {
	return &memStore{appts: make(map[string]*models.Appointment)}
}

func cloneAppt(a *models.Appointment) *models.Appointment {
	c := *a
	c.Prescription = append([]models.PrescriptionEntry(nil), a.Prescription...)
	return &c
}

func (s *memStore) slotTaken(appt *models.Appointment) bool {
	if !appt.Status.IsActive() {
		return false
	}
	for _, other := range s.appts {
		if other.ID == appt.ID || !other.Status.IsActive() {
			continue
		}
		if other.DoctorID == appt.DoctorID &&
			other.AppointmentDate == appt.AppointmentDate &&
			other.TimeSlot == appt.TimeSlot {
			return true
		}
	}
	return false
}

func (s *memStore) Insert(_ context.Context, appt *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if appt.ID == "" {
		s.seq++
		appt.ID = fmt.Sprintf("appt-%d", s.seq)
	}
	if s.slotTaken(appt) {
		return ErrSlotConflict
	}
	s.appts[appt.ID] = cloneAppt(appt)
	return nil
}

func (s *memStore) FindByID(_ context.Context, id string) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	appt, ok := s.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAppt(appt), nil
}

func (s *memStore) FindByQuery(_ context.Context, q Query) ([]models.Appointment, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, 0, s.findErr
	}
	q = q.Normalize()

	var matched []models.Appointment
	for _, appt := range s.appts {
		if q.DoctorID != "" && appt.DoctorID != q.DoctorID {
			continue
		}
		if q.PatientID != "" && appt.PatientID != q.PatientID {
			continue
		}
		if q.Status != "" && appt.Status != q.Status {
			continue
		}
		if len(q.Statuses) > 0 {
			found := false
			for _, st := range q.Statuses {
				if appt.Status == st {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if q.Date != "" && appt.AppointmentDate != q.Date {
			continue
		}
		matched = append(matched, *cloneAppt(appt))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].AppointmentDate != matched[j].AppointmentDate {
			return matched[i].AppointmentDate < matched[j].AppointmentDate
		}
		return matched[i].TimeSlot.Start < matched[j].TimeSlot.Start
	})

	total := int64(len(matched))
	if q.PageSize > 0 {
		offset := (q.Page - 1) * q.PageSize
		if offset >= len(matched) {
			return nil, total, nil
		}
		end := offset + q.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[offset:end]
	}
	return matched, total, nil
}

func (s *memStore) Update(_ context.Context, appt *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appts[appt.ID]; !ok {
		return ErrNotFound
	}
	if s.slotTaken(appt) {
		return ErrSlotConflict
	}
	s.appts[appt.ID] = cloneAppt(appt)
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appts[id]; !ok {
		return ErrNotFound
	}
	delete(s.appts, id)
	return nil
}

func (s *memStore) CountActiveOverlaps(_ context.Context, doctorID, date string, slot models.TimeSlot, excludeID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overlapErr != nil {
		return 0, s.overlapErr
	}
	var count int64
	for _, appt := range s.appts {
		if appt.ID == excludeID || !appt.Status.IsActive() {
			continue
		}
		if appt.DoctorID == doctorID && appt.AppointmentDate == date && appt.TimeSlot.Overlaps(slot) {
			count++
		}
	}
	return count, nil
}

func (s *memStore) AppendPrescription(_ context.Context, appointmentID string, entries []models.PrescriptionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[appointmentID]
	if !ok {
		return ErrNotFound
	}
	for i := range entries {
		s.seq++
		entries[i].ID = fmt.Sprintf("rx-%d", s.seq)
		entries[i].AppointmentID = appointmentID
	}
	appt.Prescription = append(appt.Prescription, entries...)
	return nil
}

func (s *memStore) FindDueReminders(_ context.Context, from, until string) ([]models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []models.Appointment
	for _, appt := range s.appts {
		if appt.Status != models.StatusConfirmed || appt.ReminderSent {
			continue
		}
		if appt.AppointmentDate >= from && appt.AppointmentDate <= until {
			due = append(due, *cloneAppt(appt))
		}
	}
	return due, nil
}

func (s *memStore) MarkReminderSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return ErrNotFound
	}
	appt.ReminderSent = true
	return nil
}

// memDirectory is an in-memory Directory. Unknown ids resolve to (nil, nil),
// matching the GORM-backed implementation.
type memDirectory struct {
	users map[string]*UserInfo
}

func (d *memDirectory) GetUser(_ context.Context, id string) (*UserInfo, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func newTestDirectory() *memDirectory {
	return &memDirectory{users: map[string]*UserInfo{
		"doctor-1": {
			ID: "doctor-1", Role: models.RoleDoctor, IsActive: true,
			DisplayName: "Sarah Chen", Specialization: "Cardiology", Email: "sarah.chen@clinic.test",
		},
		"doctor-2": {
			ID: "doctor-2", Role: models.RoleDoctor, IsActive: true,
			DisplayName: "Priya Patel", Specialization: "Dermatology", Email: "priya.patel@clinic.test",
		},
		"doctor-retired": {
			ID: "doctor-retired", Role: models.RoleDoctor, IsActive: false,
			DisplayName: "Alan Finch",
		},
		"patient-1": {
			ID: "patient-1", Role: models.RolePatient, IsActive: true,
			DisplayName: "James Wright", Email: "james.wright@mail.test",
		},
		"patient-2": {
			ID: "patient-2", Role: models.RolePatient, IsActive: true,
			DisplayName: "Maria Garcia", Email: "maria.garcia@mail.test",
		},
		"admin-1": {ID: "admin-1", Role: models.RoleAdmin, IsActive: true, DisplayName: "Nina Park"},
		"nurse-1": {ID: "nurse-1", Role: models.RoleNurse, IsActive: true, DisplayName: "Omar Haddad"},
	}}
}

var (
	adminCaller  = Caller{ID: "admin-1", Role: models.RoleAdmin}
	nurseCaller  = Caller{ID: "nurse-1", Role: models.RoleNurse}
	ownerDoctor  = Caller{ID: "doctor-1", Role: models.RoleDoctor}
	otherDoctor  = Caller{ID: "doctor-2", Role: models.RoleDoctor}
	ownerPatient = Caller{ID: "patient-1", Role: models.RolePatient}
	otherPatient = Caller{ID: "patient-2", Role: models.RolePatient}
	strangerUser = Caller{ID: "ghost-1", Role: models.Role("visitor")}
)

type testEnv struct {
	store     *memStore
	users     *memDirectory
	notifier  *notification.Mock
	booking   *BookingService
	lifecycle *LifecycleManager
}

// newTestEnv wires the services over in-memory fakes with the clock pinned
// to 2025-06-01 so date checks are deterministic.
func newTestEnv() *testEnv {
	store := newMemStore()
	users := newTestDirectory()
	notifier := &notification.Mock{}
	booking := NewBookingService(store, users, notifier, zap.NewNop())
	booking.now = func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }
	return &testEnv{
		store:     store,
		users:     users,
		notifier:  notifier,
		booking:   booking,
		lifecycle: NewLifecycleManager(store, users, notifier, zap.NewNop()),
	}
}

func validBookRequest() BookRequest {
	return BookRequest{
		PatientID: "patient-1",
		DoctorID:  "doctor-1",
		Date:      "2025-06-10",
		Slot:      models.TimeSlot{Start: "09:00", End: "09:30"},
		Reason:    "Annual physical exam",
	}
}

// seedAppt inserts an appointment directly, bypassing booking validation, so
// lifecycle tests can start from any status.
func seedAppt(t *testing.T, store *memStore, status models.AppointmentStatus) *models.Appointment {
	t.Helper()
	appt := &models.Appointment{
		PatientID:         "patient-1",
		DoctorID:          "doctor-1",
		AppointmentDate:   "2025-06-10",
		TimeSlot:          models.TimeSlot{Start: "09:00", End: "09:30"},
		Status:            status,
		Type:              models.TypeConsultation,
		Priority:          models.PriorityMedium,
		Reason:            "Annual physical exam",
		EstimatedDuration: 30,
	}
	if err := store.Insert(context.Background(), appt); err != nil {
		t.Fatalf("seeding appointment: %v", err)
	}
	return appt
}

func isValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
