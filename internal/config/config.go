package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	JWTSecret                 string
	JWTRefreshSecret          string
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	Database                  DatabaseConfig
	Kafka                     KafkaConfig
	Reminder                  ReminderConfig
	WorkingHours              WorkingHoursConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	SSLMode  string
	DSN      string
}

// KafkaConfig holds the appointment event broker configuration.
// An empty Brokers value disables event publishing.
type KafkaConfig struct {
	Brokers string
	Topic   string
}

// ReminderConfig controls the appointment reminder sweeper.
type ReminderConfig struct {
	CronSpec  string
	LeadHours int
}

// WorkingHoursConfig defines the bookable day: two shifts of fixed-length
// slots. Times are HH:MM 24-hour strings.
type WorkingHoursConfig struct {
	MorningStart   string
	MorningEnd     string
	AfternoonStart string
	AfternoonEnd   string
	SlotMinutes    int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load database configuration
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		Username: getEnv("DB_USERNAME", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "healem"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Build DSN (Data Source Name) for the Postgres connection
	dbConfig.DSN = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		dbConfig.Host, dbConfig.Username, dbConfig.Password, dbConfig.Name, dbConfig.Port, dbConfig.SSLMode)

	jwtExpMinutes, err := getEnvInt("JWT_EXPIRATION_MINUTES", 15)
	if err != nil {
		return nil, err
	}

	jwtRefreshExpHours, err := getEnvInt("JWT_REFRESH_EXPIRATION_HOURS", 168) // 7 days
	if err != nil {
		return nil, err
	}

	reminderLeadHours, err := getEnvInt("REMINDER_LEAD_HOURS", 24)
	if err != nil {
		return nil, err
	}

	slotMinutes, err := getEnvInt("WORKING_HOURS_SLOT_MINUTES", 30)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                      getEnv("PORT", "3001"),
		Origin:                    getEnv("ORIGIN", "http://localhost:4200"),
		Environment:               getEnv("APP_ENV", "development"),
		JWTSecret:                 getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		Database:                  dbConfig,
		Kafka: KafkaConfig{
			Brokers: getEnv("KAFKA_BROKERS", ""),
			Topic:   getEnv("KAFKA_APPOINTMENT_TOPIC", "appointment-events"),
		},
		Reminder: ReminderConfig{
			CronSpec:  getEnv("REMINDER_CRON_SPEC", "0 8 * * *"),
			LeadHours: reminderLeadHours,
		},
		WorkingHours: WorkingHoursConfig{
			MorningStart:   getEnv("WORKING_HOURS_MORNING_START", "09:00"),
			MorningEnd:     getEnv("WORKING_HOURS_MORNING_END", "12:00"),
			AfternoonStart: getEnv("WORKING_HOURS_AFTERNOON_START", "14:00"),
			AfternoonEnd:   getEnv("WORKING_HOURS_AFTERNOON_END", "17:00"),
			SlotMinutes:    slotMinutes,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.Host == "" || c.Database.Name == "" {
		return fmt.Errorf("database host and name are required")
	}
	if c.Reminder.LeadHours <= 0 {
		return fmt.Errorf("REMINDER_LEAD_HOURS must be positive")
	}
	if _, err := c.WorkingHours.SlotStarts(); err != nil {
		return fmt.Errorf("invalid working hours template: %w", err)
	}
	return nil
}

// SlotStarts expands the two shifts into the ordered list of bookable
// slot-start strings, e.g. ["09:00", "09:30", ..., "16:30"].
func (w WorkingHoursConfig) SlotStarts() ([]string, error) {
	if w.SlotMinutes <= 0 {
		return nil, fmt.Errorf("slot length must be positive, got %d", w.SlotMinutes)
	}

	var slots []string
	shifts := [][2]string{
		{w.MorningStart, w.MorningEnd},
		{w.AfternoonStart, w.AfternoonEnd},
	}
	for _, shift := range shifts {
		start, err := time.Parse("15:04", shift[0])
		if err != nil {
			return nil, fmt.Errorf("invalid shift start %q: %w", shift[0], err)
		}
		end, err := time.Parse("15:04", shift[1])
		if err != nil {
			return nil, fmt.Errorf("invalid shift end %q: %w", shift[1], err)
		}
		if !start.Before(end) {
			return nil, fmt.Errorf("shift start %s must be before end %s", shift[0], shift[1])
		}
		for t := start; t.Before(end); t = t.Add(time.Duration(w.SlotMinutes) * time.Minute) {
			slots = append(slots, t.Format("15:04"))
		}
	}
	return slots, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
