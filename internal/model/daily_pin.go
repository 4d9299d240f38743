package model

import "time"

// DailyPin is an officer credential valid for a single calendar date.
type DailyPin struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"index;size:256;not null" json:"email"`
	Pin       string    `gorm:"size:4;not null" json:"pin"`
	ValidDate string    `gorm:"index;size:10;not null" json:"validDate"` // YYYY-MM-DD
	Role      string    `gorm:"size:32;not null" json:"role"`
	EventID   *int64    `json:"eventId"`
	CreatedAt time.Time `json:"createdAt"`
}
