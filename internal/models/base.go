package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// BaseModel contains common columns for all tables
type BaseModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

// Database connection instance
var DB *gorm.DB

// InitDB initializes database connection
func InitDB(config DatabaseConfig) (*gorm.DB, error) {
	var err error

	// Connect to the Postgres database. TranslateError turns driver
	// unique-violation errors into gorm.ErrDuplicatedKey.
	DB, err = gorm.Open(postgres.Open(config.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	// Auto migrate the database models
	err = DB.AutoMigrate(
		&User{},
		&RefreshToken{},
		&MedicalRecord{},
		&MedicalRecordAttachment{},
		&Appointment{},
		&PrescriptionEntry{},
		&Message{},
	)
	if err != nil {
		return nil, err
	}

	if err := createIndexes(DB); err != nil {
		return nil, err
	}

	return DB, nil
}

// createIndexes adds the indexes AutoMigrate cannot express. The partial
// unique index is the authoritative guard against double-booking: only one
// appointment in an active status may hold a doctor's exact slot, while
// cancelled/completed/no-show rows free it.
func createIndexes(db *gorm.DB) error {
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_active_slot
			ON appointments (doctor_id, appointment_date, slot_start, slot_end)
			WHERE status IN ('pending', 'confirmed')`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_doctor_date
			ON appointments (doctor_id, appointment_date)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_reminder_due
			ON appointments (appointment_date)
			WHERE status = 'confirmed' AND reminder_sent = false`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DSN string
}
