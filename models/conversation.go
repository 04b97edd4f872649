package models

import "time"

// Conversation is a direct channel between two users. User1ID always holds
// the smaller of the two user ids so one pair maps to one row.
type Conversation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	User1ID   uint      `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"user1_id"`
	User2ID   uint      `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"user2_id"`
	TaskID    *uint     `gorm:"index" json:"task_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User1 *User `gorm:"foreignKey:User1ID" json:"user1,omitempty"`
	User2 *User `gorm:"foreignKey:User2ID" json:"user2,omitempty"`
}

func (Conversation) TableName() string {
	return "conversations"
}

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
	MessageTypeReward MessageType = "reward"
)

type Message struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	ConversationID uint        `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint        `gorm:"not null" json:"sender_id"`
	Content        string      `gorm:"type:text;not null" json:"content"`
	Type           MessageType `gorm:"type:varchar(10);not null;default:'text'" json:"type"`
	TaskID         *uint       `json:"task_id,omitempty"`
	RewardPoints   *int64      `json:"reward_points,omitempty"`
	IsRead         bool        `gorm:"not null;default:false" json:"is_read"`
	CreatedAt      time.Time   `json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}
