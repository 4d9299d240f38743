package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"qr-attendance-backend/internal/feed"
	"qr-attendance-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	// Students
	ListStudents(ctx context.Context) ([]model.Student, error)
	RosterVersion(ctx context.Context) (RosterVersion, error)
	FindStudentByQR(ctx context.Context, payload string) (*model.Student, error)
	CreateStudent(ctx context.Context, s *model.Student) error
	UpdateStudentProfile(ctx context.Context, studentCode, department, program string) (*model.Student, error)

	// Events
	ListEvents(ctx context.Context) ([]model.Event, error)
	GetEvent(ctx context.Context, id int64) (*model.Event, error)
	CreateEvent(ctx context.Context, e *model.Event) error
	SetEventStatus(ctx context.Context, id int64, status model.EventStatus) error
	DeleteEventCascade(ctx context.Context, id int64) error

	// Attendance
	InsertAttendance(ctx context.Context, rec *model.AttendanceRecord) error
	LatestOpenAttendance(ctx context.Context, studentID, eventID int64, period model.Period) (*model.AttendanceRecord, error)
	CloseAttendance(ctx context.Context, id int64, at time.Time) (*model.AttendanceRecord, error)
	ListAttendanceByEvent(ctx context.Context, eventID int64) ([]model.AttendanceRecord, error)
	ListAttendance(ctx context.Context) ([]model.AttendanceRecord, error)

	// Daily PINs
	IssuePin(ctx context.Context, pin *model.DailyPin) error
	ValidatePin(ctx context.Context, email, pin, role, date string) (bool, error)
	ResolvePinEvent(ctx context.Context, pin, role, date string) (*int64, error)

	// Push subscriptions
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription, eventIDs []int64) error
	SubscribedEvents(ctx context.Context, endpoint string) ([]int64, error)
	SubscriptionsForEvent(ctx context.Context, eventID int64) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	pub Publisher
}

// NewGormStore creates a new GORM-backed store. pub may be nil.
func NewGormStore(db *gorm.DB, pub Publisher) Store {
	return &gormStore{db: db, pub: pub}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) publish(c feed.Change) {
	if s.pub != nil {
		s.pub.Publish(c)
	}
}

// --- Students ---

func (s *gormStore) ListStudents(ctx context.Context) ([]model.Student, error) {
	var students []model.Student
	if err := s.db.WithContext(ctx).Order("id").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}

func (s *gormStore) RosterVersion(ctx context.Context) (RosterVersion, error) {
	var v RosterVersion
	if err := s.db.WithContext(ctx).Model(&model.Student{}).Count(&v.Count).Error; err != nil {
		return v, fmt.Errorf("failed to count students: %w", err)
	}
	if v.Count == 0 {
		return v, nil
	}

	var latest model.Student
	if err := s.db.WithContext(ctx).Select("id", "updated_at").Order("updated_at DESC").Take(&latest).Error; err != nil {
		return v, fmt.Errorf("failed to read latest student update: %w", err)
	}
	v.LatestUpdated = latest.UpdatedAt
	return v, nil
}

// FindStudentByQR returns nil without error when no student owns the payload.
func (s *gormStore) FindStudentByQR(ctx context.Context, payload string) (*model.Student, error) {
	var student model.Student
	err := s.db.WithContext(ctx).Where("qr_payload = ?", payload).Take(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up student by qr: %w", err)
	}
	return &student, nil
}

func (s *gormStore) CreateStudent(ctx context.Context, student *model.Student) error {
	if err := s.db.WithContext(ctx).Create(student).Error; err != nil {
		return fmt.Errorf("failed to create student %s: %w", student.StudentCode, err)
	}
	return nil
}

func (s *gormStore) UpdateStudentProfile(ctx context.Context, studentCode, department, program string) (*model.Student, error) {
	var student model.Student
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_code = ?", studentCode).Take(&student).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Model(&student).Updates(map[string]any{
			"department": department,
			"program":    program,
		}).Error; err != nil {
			return err
		}
		student.Department = department
		student.Program = program
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update student %s: %w", studentCode, err)
	}
	return &student, nil
}

// --- Events ---

func (s *gormStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	var events []model.Event
	if err := s.db.WithContext(ctx).Order("id").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

func (s *gormStore) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	var event model.Event
	err := s.db.WithContext(ctx).Take(&event, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", id, err)
	}
	return &event, nil
}

func (s *gormStore) CreateEvent(ctx context.Context, e *model.Event) error {
	if e.Status == "" {
		e.Status = model.EventScheduled
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to create event %q: %w", e.Name, err)
	}
	s.publish(feed.Change{Table: feed.TableEvents, Op: feed.OpInsert, EventID: e.ID})
	return nil
}

func (s *gormStore) SetEventStatus(ctx context.Context, id int64, status model.EventStatus) error {
	res := s.db.WithContext(ctx).Model(&model.Event{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to set status of event %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	s.publish(feed.Change{Table: feed.TableEvents, Op: feed.OpUpdate, EventID: id})
	return nil
}

// DeleteEventCascade removes an event together with its attendance rows,
// subscription mappings, and PIN bindings.
func (s *gormStore) DeleteEventCascade(ctx context.Context, id int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&model.AttendanceRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete attendance for event %d: %w", id, err)
		}
		if err := tx.Exec("DELETE FROM subscription_event_mapping WHERE event_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete subscriptions for event %d: %w", id, err)
		}
		if err := tx.Model(&model.DailyPin{}).Where("event_id = ?", id).Update("event_id", nil).Error; err != nil {
			return fmt.Errorf("failed to unbind pins for event %d: %w", id, err)
		}
		res := tx.Delete(&model.Event{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete event %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("event %d: %w", id, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(feed.Change{Table: feed.TableEvents, Op: feed.OpDelete, EventID: id})
	return nil
}
