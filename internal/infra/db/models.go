package db

import "time"

type RequestRecordModel struct {
	RequestID       string    `gorm:"primaryKey"`
	ParentRequestID *string   `gorm:"index"`
	Status          string    `gorm:"not null"`
	ErrorCode       string    `gorm:"index"`
	OptionsJSON     []byte    `gorm:"type:jsonb;not null"`
	ResponseJSON    []byte    `gorm:"type:jsonb;not null"`
	CreatedAt       time.Time `gorm:"index;not null"`
}

func (RequestRecordModel) TableName() string { return "request_records" }
