package models

import "time"

// Answer is the append-only answer log for a task. At most one answer
// per task carries IsAdopted=true, and it must match task.adopted_answer_id.
type Answer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskID    uint      `gorm:"not null;index" json:"task_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	IsAdopted bool      `gorm:"not null;default:false" json:"is_adopted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Answer) TableName() string {
	return "answers"
}

// FinalAnswer is the mutable "current submission" per (task, user), kept
// in sync with that user's latest Answer row so adoption always operates
// on the newest content.
type FinalAnswer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskID    uint      `gorm:"not null;uniqueIndex:idx_final_answer_task_user" json:"task_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_final_answer_task_user" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (FinalAnswer) TableName() string {
	return "final_answers"
}
