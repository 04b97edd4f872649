package models

import "time"

// TaskStatus is the lifecycle state of a task. A task transitions
// open -> closed exactly once, at adoption time.
type TaskStatus string

const (
	TaskStatusOpen   TaskStatus = "open"
	TaskStatusClosed TaskStatus = "closed"
)

type Task struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"not null;index" json:"user_id"`
	Title           string     `gorm:"size:100;not null" json:"title"`
	Description     string     `gorm:"type:text;not null" json:"description"`
	Points          int64      `gorm:"not null" json:"points"`
	Tags            string     `gorm:"size:255" json:"tags"`
	IsExclusive     bool       `gorm:"not null;default:false" json:"is_exclusive"`
	Status          TaskStatus `gorm:"type:varchar(10);not null;default:'open'" json:"status"`
	AdoptedAnswerID *uint      `gorm:"column:adopted_answer_id" json:"adopted_answer_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Task) TableName() string {
	return "tasks"
}

// TaskClaimStatus is the state of a claim row. Terminal states
// (cancelled, expired) are never reused.
type TaskClaimStatus string

const (
	TaskClaimStatusActive    TaskClaimStatus = "active"
	TaskClaimStatusCancelled TaskClaimStatus = "cancelled"
	TaskClaimStatusExpired   TaskClaimStatus = "expired"
)

type TaskClaim struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	TaskID    uint            `gorm:"not null;index" json:"task_id"`
	UserID    uint            `gorm:"not null;index" json:"user_id"`
	Status    TaskClaimStatus `gorm:"type:varchar(10);not null;default:'active'" json:"status"`
	ExpiresAt time.Time       `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"-"`
}

func (TaskClaim) TableName() string {
	return "task_claims"
}
