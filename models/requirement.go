package models

import "time"

// TaskRequirement is a checklist item with the global completion default.
type TaskRequirement struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskID    uint      `gorm:"not null;index" json:"task_id"`
	Content   string    `gorm:"size:255;not null" json:"content"`
	Completed bool      `gorm:"not null;default:false" json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TaskRequirement) TableName() string {
	return "task_requirements"
}

// UserTaskRequirement is the per-user completion view, lazily materialized
// from the global default the first time a user reads a task's requirements.
type UserTaskRequirement struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_user_task_requirement" json:"user_id"`
	TaskID        uint      `gorm:"not null;uniqueIndex:idx_user_task_requirement;index" json:"task_id"`
	RequirementID uint      `gorm:"not null;uniqueIndex:idx_user_task_requirement" json:"requirement_id"`
	Completed     bool      `gorm:"not null;default:false" json:"completed"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

func (UserTaskRequirement) TableName() string {
	return "user_task_requirements"
}
