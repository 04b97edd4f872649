package chat

import (
	"errors"
	"net/http"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/middleware"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"

	"gorm.io/gorm"
)

// FindOrCreateConversation returns the direct conversation between two
// users, creating it when absent. The pair is normalized (user1 < user2)
// so exactly one row exists per pair. A non-nil taskID is attached to the
// conversation, replacing a previous association.
func FindOrCreateConversation(tx *gorm.DB, a, b uint, taskID *uint) (*models.Conversation, error) {
	u1, u2 := a, b
	if u1 > u2 {
		u1, u2 = u2, u1
	}
	var conv models.Conversation
	err := tx.Where("user1_id = ? AND user2_id = ?", u1, u2).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		conv = models.Conversation{User1ID: u1, User2ID: u2, TaskID: taskID}
		if err := tx.Create(&conv).Error; err != nil {
			return nil, err
		}
		return &conv, nil
	}
	if err != nil {
		return nil, err
	}
	if taskID != nil && (conv.TaskID == nil || *conv.TaskID != *taskID) {
		if err := tx.Model(&conv).Update("task_id", *taskID).Error; err != nil {
			return nil, err
		}
		conv.TaskID = taskID
	}
	return &conv, nil
}

// IsParticipant reports whether the user belongs to the conversation.
func IsParticipant(conv *models.Conversation, userID uint) bool {
	return conv.User1ID == userID || conv.User2ID == userID
}

// GET /api/conversations
func ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}

	db := database.DB
	var conversations []models.Conversation
	if err := db.Preload("User1").Preload("User2").
		Where("user1_id = ? OR user2_id = ?", uid, uid).
		Order("updated_at DESC").
		Find(&conversations).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load conversations")
		return
	}

	resp := make([]map[string]interface{}, 0, len(conversations))
	for _, conv := range conversations {
		other := conv.User1
		if conv.User1ID == uid {
			other = conv.User2
		}
		entry := map[string]interface{}{
			"id":         conv.ID,
			"task_id":    conv.TaskID,
			"updated_at": conv.UpdatedAt,
		}
		if other != nil {
			entry["name"] = other.Username
			entry["user_id"] = other.ID
		}
		var last models.Message
		if err := db.Where("conversation_id = ?", conv.ID).
			Order("created_at DESC").First(&last).Error; err == nil {
			entry["last_message"] = last.Content
			entry["timestamp"] = last.CreatedAt
		} else {
			entry["last_message"] = ""
			entry["timestamp"] = conv.CreatedAt
		}
		resp = append(resp, entry)
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: resp})
}

type CreateConversationRequest struct {
	TargetUserID uint  `json:"target_user_id" validate:"required"`
	TaskID       *uint `json:"task_id"`
}

// POST /api/conversations
func CreateConversationHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}
	var req CreateConversationRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	if req.TargetUserID == uid {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Cannot start a conversation with yourself")
		return
	}

	db := database.DB
	var target models.User
	if err := db.First(&target, req.TargetUserID).Error; err != nil {
		utils.WriteError(w, http.StatusNotFound, utils.CodeNotFound, "Target user not found")
		return
	}
	if req.TaskID != nil {
		var task models.Task
		if err := db.First(&task, *req.TaskID).Error; err != nil {
			utils.WriteError(w, http.StatusNotFound, utils.CodeNotFound, "Related task not found")
			return
		}
	}

	conv, err := FindOrCreateConversation(db, uid, req.TargetUserID, req.TaskID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to create conversation")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    map[string]interface{}{"conversation_id": conv.ID},
	})
}
