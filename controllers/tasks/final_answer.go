package tasks

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/middleware"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"

	"gorm.io/gorm"
)

type SubmitFinalAnswerRequest struct {
	Content string `json:"content" validate:"required"`
}

// POST /api/tasks/{id}/final-answer
//
// Upserts the caller's final submission for the task and mirrors the
// content into their latest Answer row (creating one if they never
// answered) so adoption always pays out on the newest content.
func SubmitFinalAnswerHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}
	taskID, ok := pathID(r, "id")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Invalid task ID")
		return
	}
	var req SubmitFinalAnswerRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	var finalAnswer models.FinalAnswer
	var taskOwnerID uint
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.First(&task, taskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return err
		}
		if task.Status != models.TaskStatusOpen {
			return ErrTaskClosed
		}
		if task.UserID == uid {
			return errForbidden
		}
		taskOwnerID = task.UserID

		err := tx.Where("task_id = ? AND user_id = ?", taskID, uid).First(&finalAnswer).Error
		switch {
		case err == nil:
			finalAnswer.Content = req.Content
			if err := tx.Save(&finalAnswer).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			finalAnswer = models.FinalAnswer{TaskID: taskID, UserID: uid, Content: req.Content}
			if err := tx.Create(&finalAnswer).Error; err != nil {
				return err
			}
		default:
			return err
		}

		// keep the caller's newest Answer row in sync
		var latest models.Answer
		err = tx.Where("task_id = ? AND user_id = ?", taskID, uid).
			Order("created_at DESC").First(&latest).Error
		switch {
		case err == nil:
			return tx.Model(&models.Answer{}).Where("id = ?", latest.ID).
				Update("content", req.Content).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&models.Answer{TaskID: taskID, UserID: uid, Content: req.Content}).Error
		default:
			return err
		}
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTaskNotFound):
			utils.WriteError(w, http.StatusNotFound, utils.CodeNotFound, err.Error())
		case errors.Is(err, ErrTaskClosed):
			utils.WriteError(w, http.StatusConflict, utils.CodeTaskClosed, "Task is closed")
		case errors.Is(err, errForbidden):
			utils.WriteError(w, http.StatusForbidden, utils.CodeForbidden, "You cannot submit a final answer to your own task")
		default:
			log.Printf("[final-answer] submit for task %d by user %d failed: %v", taskID, uid, err)
			utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to submit final answer")
		}
		return
	}

	notifyFinalAnswer(taskID, uid, taskOwnerID)

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Final answer submitted",
		Data: map[string]interface{}{
			"id":      finalAnswer.ID,
			"task_id": finalAnswer.TaskID,
		},
	})
}

// notifyFinalAnswer drops a heads-up into an existing conversation between
// the answerer and the publisher. Best-effort: no conversation, no message.
func notifyFinalAnswer(taskID, answererID, ownerID uint) {
	u1, u2 := answererID, ownerID
	if u1 > u2 {
		u1, u2 = u2, u1
	}
	var conv models.Conversation
	err := database.DB.Where("user1_id = ? AND user2_id = ?", u1, u2).First(&conv).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[final-answer] conversation lookup failed: %v", err)
		}
		return
	}
	msg := models.Message{
		ConversationID: conv.ID,
		SenderID:       answererID,
		Content:        fmt.Sprintf("A final answer has been submitted for task #%d.", taskID),
		Type:           models.MessageTypeSystem,
		TaskID:         &taskID,
	}
	if err := database.DB.Create(&msg).Error; err != nil {
		log.Printf("[final-answer] notify message failed: %v", err)
		return
	}
	if err := database.DB.Model(&models.Conversation{}).Where("id = ?", conv.ID).
		Update("updated_at", time.Now()).Error; err != nil {
		log.Printf("[final-answer] conversation bump failed: %v", err)
	}
}

// GET /api/tasks/{id}/final-answers
//
// Content is only visible to the task publisher and the submitting user;
// everyone else sees that a submission exists.
func ListFinalAnswersHandler(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(r, "id")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Invalid task ID")
		return
	}
	var task models.Task
	if err := database.DB.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteError(w, http.StatusNotFound, utils.CodeNotFound, "Task not found")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load task")
		return
	}
	uid, _ := utils.GetUserID(r)

	var finals []models.FinalAnswer
	if err := database.DB.Preload("User").
		Where("task_id = ?", taskID).
		Order("updated_at DESC").
		Find(&finals).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load final answers")
		return
	}

	resp := make([]map[string]interface{}, 0, len(finals))
	for _, fa := range finals {
		entry := map[string]interface{}{
			"id":         fa.ID,
			"user_id":    fa.UserID,
			"updated_at": fa.UpdatedAt,
		}
		if uid == task.UserID || uid == fa.UserID {
			entry["content"] = fa.Content
		}
		if fa.User != nil {
			entry["username"] = fa.User.Username
		}
		resp = append(resp, entry)
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: resp})
}
