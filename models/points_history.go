package models

import "time"

const (
	PointsTypeReward   = "reward"
	PointsTypeRecharge = "recharge"
)

// PointsHistory records every balance change from the affected user's
// point of view. Rows written during a settlement are part of the
// settlement transaction; the notifications feed polls this table.
type PointsHistory struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	Amount          int64     `gorm:"not null" json:"amount"`
	Type            string    `gorm:"size:20;not null" json:"type"` // reward, recharge
	Description     string    `gorm:"type:text" json:"description"`
	RelatedTaskID   *uint     `json:"related_task_id,omitempty"`
	RelatedAnswerID *uint     `json:"related_answer_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (PointsHistory) TableName() string {
	return "points_history"
}
