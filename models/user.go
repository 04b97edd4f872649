package models

import "time"

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Points       int64     `gorm:"not null;default:0" json:"points"`
	Bio          *string   `gorm:"type:varchar(255)" json:"bio,omitempty"`
	Avatar       *string   `gorm:"type:varchar(255)" json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

func (User) TableName() string {
	return "users"
}
