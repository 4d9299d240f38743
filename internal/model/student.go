package model

import "time"

// Student is a registered attendee. StudentCode and QRPayload never change
// once the student is created.
type Student struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	StudentCode string    `gorm:"uniqueIndex;size:64;not null" json:"studentCode"`
	DisplayName string    `gorm:"size:256;not null" json:"displayName"`
	Department  string    `gorm:"size:128" json:"department"`
	Program     string    `gorm:"size:128" json:"program"`
	QRPayload   string    `gorm:"column:qr_payload;uniqueIndex;size:128;not null" json:"qrPayload"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
