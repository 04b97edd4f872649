package chat

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/middleware"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

func conversationFromRequest(w http.ResponseWriter, r *http.Request) (*models.Conversation, uint, bool) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return nil, 0, false
	}
	raw := mux.Vars(r)["conversationId"]
	convID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || convID == 0 {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Invalid conversation ID")
		return nil, 0, false
	}
	var conv models.Conversation
	if err := database.DB.First(&conv, uint(convID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteError(w, http.StatusNotFound, utils.CodeNotFound, "Conversation not found")
			return nil, 0, false
		}
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load conversation")
		return nil, 0, false
	}
	if !IsParticipant(&conv, uid) {
		utils.WriteError(w, http.StatusForbidden, utils.CodeForbidden, "Not a participant of this conversation")
		return nil, 0, false
	}
	return &conv, uid, true
}

func formatMessage(m *models.Message, viewerID uint) map[string]interface{} {
	entry := map[string]interface{}{
		"id":         m.ID,
		"content":    m.Content,
		"sender_id":  m.SenderID,
		"is_me":      m.SenderID == viewerID,
		"type":       m.Type,
		"timestamp":  m.CreatedAt,
		"task_id":    m.TaskID,
	}
	if m.RewardPoints != nil {
		entry["reward_points"] = *m.RewardPoints
	}
	if m.Sender != nil {
		entry["sender"] = m.Sender.Username
	}
	return entry
}

// GET /api/conversations/{conversationId}/messages
func GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	conv, uid, ok := conversationFromRequest(w, r)
	if !ok {
		return
	}

	db := database.DB
	var messages []models.Message
	if err := db.Preload("Sender").
		Where("conversation_id = ?", conv.ID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load messages")
		return
	}

	partnerID := conv.User1ID
	if partnerID == uid {
		partnerID = conv.User2ID
	}
	var partner models.User
	partnerName := ""
	if err := db.Select("id, username").First(&partner, partnerID).Error; err == nil {
		partnerName = partner.Username
	}

	resp := make([]map[string]interface{}, 0, len(messages))
	for i := range messages {
		resp = append(resp, formatMessage(&messages[i], uid))
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data: map[string]interface{}{
			"messages":     resp,
			"partner_name": partnerName,
			"task_id":      conv.TaskID,
		},
	})
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// POST /api/conversations/{conversationId}/messages
func SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	conv, uid, ok := conversationFromRequest(w, r)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	msg := models.Message{
		ConversationID: conv.ID,
		SenderID:       uid,
		Content:        req.Content,
		Type:           models.MessageTypeText,
	}
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to send message")
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{Success: true, Message: "Sent", Data: formatMessage(&msg, uid)})
}

// GET /api/conversations/{conversationId}/messages/poll?since=RFC3339
// Returns messages newer than the given timestamp; the chat UI polls this.
func PollMessagesHandler(w http.ResponseWriter, r *http.Request) {
	conv, uid, ok := conversationFromRequest(w, r)
	if !ok {
		return
	}

	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Invalid since timestamp")
			return
		}
		since = parsed
	}

	var messages []models.Message
	if err := database.DB.Preload("Sender").
		Where("conversation_id = ? AND created_at > ?", conv.ID, since).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load messages")
		return
	}

	resp := make([]map[string]interface{}, 0, len(messages))
	for i := range messages {
		resp = append(resp, formatMessage(&messages[i], uid))
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: resp})
}
