package models

import "time"

// Transaction is the human-readable settlement audit trail. It is written
// best-effort after the settlement commits and is never authoritative.
type Transaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ReferenceID string    `gorm:"size:64;not null;uniqueIndex" json:"reference_id"`
	SenderID    uint      `gorm:"not null;index" json:"sender_id"`
	ReceiverID  uint      `gorm:"not null;index" json:"receiver_id"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Type        string    `gorm:"size:30;not null" json:"type"` // task_reward, recharge
	TaskID      *uint     `json:"task_id,omitempty"`
	AnswerID    *uint     `json:"answer_id,omitempty"`
	Status      string    `gorm:"size:20;not null;default:'Completed'" json:"status"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}
