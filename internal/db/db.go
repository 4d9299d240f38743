package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"qr-attendance-backend/config"
	"qr-attendance-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Applying Postgres-specific DDL...")
	if err := applyPostgresDDL(db); err != nil {
		log.Printf("Warning: failed to apply some DDL: %v. Continuing without them.", err)
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate creates or updates every table the service owns. It works on any
// gorm dialect, which is what lets tests run it against sqlite.
func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.Student{},
		&model.Event{},
		&model.AttendanceRecord{},
		&model.DailyPin{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func applyPostgresDDL(db *gorm.DB) error {
	ddls := []string{
		// Open-session lookups hit this partial index instead of the full history.
		"CREATE INDEX IF NOT EXISTS idx_attendance_open ON attendance_records " +
			"(student_id, event_id, time_period, time_in DESC, id DESC) " +
			"WHERE status = 'present' AND time_out IS NULL;",

		"CREATE INDEX IF NOT EXISTS idx_daily_pins_lookup ON daily_pins (pin, role, valid_date);",

		"ALTER TABLE attendance_records DROP CONSTRAINT IF EXISTS attendance_records_status_check;",
		"ALTER TABLE attendance_records ADD CONSTRAINT attendance_records_status_check " +
			"CHECK ((status = 'present' AND time_out IS NULL) OR (status = 'left' AND time_out IS NOT NULL));",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
