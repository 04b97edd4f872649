package users

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"` // message, points
	Content   string    `json:"content"`
	TaskID    *uint     `json:"task_id,omitempty"`
	Amount    *int64    `json:"amount,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// GET /api/users/me/notifications?since=RFC3339
//
// Merges the reward/system messages addressed to the caller with their
// recent ledger entries, newest first. The frontend polls this.
func NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}

	since := time.Now().Add(-7 * 24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Invalid since timestamp")
			return
		}
		since = parsed
	}

	db := database.DB

	// reward and system messages in the caller's conversations, not sent by them
	var messages []models.Message
	err := db.Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("(conversations.user1_id = ? OR conversations.user2_id = ?)", uid, uid).
		Where("messages.sender_id != ?", uid).
		Where("messages.type IN ?", []models.MessageType{models.MessageTypeSystem, models.MessageTypeReward}).
		Where("messages.created_at > ?", since).
		Order("messages.created_at DESC").
		Limit(100).
		Find(&messages).Error
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load notifications")
		return
	}

	var entries []models.PointsHistory
	if err := db.Where("user_id = ? AND created_at > ?", uid, since).
		Order("created_at DESC").
		Limit(100).
		Find(&entries).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load notifications")
		return
	}

	feed := make([]notification, 0, len(messages)+len(entries))
	for _, m := range messages {
		feed = append(feed, notification{
			ID:        strconv.FormatUint(uint64(m.ID), 10),
			Kind:      "message",
			Content:   m.Content,
			TaskID:    m.TaskID,
			Amount:    m.RewardPoints,
			IsRead:    m.IsRead,
			CreatedAt: m.CreatedAt,
		})
	}
	for _, e := range entries {
		amount := e.Amount
		feed = append(feed, notification{
			ID:        "points_" + strconv.FormatUint(uint64(e.ID), 10),
			Kind:      "points",
			Content:   e.Description,
			TaskID:    e.RelatedTaskID,
			Amount:    &amount,
			IsRead:    true,
			CreatedAt: e.CreatedAt,
		})
	}
	sort.Slice(feed, func(i, j int) bool { return feed[i].CreatedAt.After(feed[j].CreatedAt) })

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: feed})
}

// POST /api/notifications/{id}/read
//
// Marks a message notification as read. Ledger-backed notifications
// ("points_"-prefixed ids) carry no read state and succeed as a no-op.
// The message must be addressed to the caller: in one of their
// conversations and not sent by them.
func MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}
	raw := mux.Vars(r)["id"]
	if strings.HasPrefix(raw, "points_") || strings.HasPrefix(raw, "tx_") {
		utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Notification has no read state"})
		return
	}
	messageID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || messageID == 0 {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Invalid notification ID")
		return
	}

	myConversations := database.DB.Model(&models.Conversation{}).Select("id").
		Where("user1_id = ? OR user2_id = ?", uid, uid)
	var msg models.Message
	err = database.DB.
		Where("id = ? AND sender_id != ?", uint(messageID), uid).
		Where("conversation_id IN (?)", myConversations).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteError(w, http.StatusNotFound, utils.CodeNotFound, "Notification not found")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load notification")
		return
	}
	if !msg.IsRead {
		if err := database.DB.Model(&models.Message{}).Where("id = ?", msg.ID).
			Update("is_read", true).Error; err != nil {
			utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to mark notification read")
			return
		}
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Notification marked as read"})
}
