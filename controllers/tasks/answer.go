package tasks

import (
	"errors"
	"net/http"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/middleware"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"

	"gorm.io/gorm"
)

type CreateAnswerRequest struct {
	Content string `json:"content" validate:"required"`
}

// POST /api/tasks/{id}/answers
func CreateAnswerHandler(w http.ResponseWriter, r *http.Request) {
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
	var req CreateAnswerRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
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
	if task.Status != models.TaskStatusOpen {
		utils.WriteError(w, http.StatusConflict, utils.CodeTaskClosed, "Task is closed")
		return
	}
	if task.UserID == uid {
		utils.WriteError(w, http.StatusForbidden, utils.CodeForbidden, "You cannot answer your own task")
		return
	}

	answer := models.Answer{
		TaskID:  taskID,
		UserID:  uid,
		Content: req.Content,
	}
	if err := database.DB.Create(&answer).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to create answer")
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "Answer submitted",
		Data: map[string]interface{}{
			"id":      answer.ID,
			"task_id": answer.TaskID,
		},
	})
}

// GET /api/tasks/{id}/answers
func ListAnswersHandler(w http.ResponseWriter, r *http.Request) {
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

	var answers []models.Answer
	if err := database.DB.Preload("User").
		Where("task_id = ?", taskID).
		Order("is_adopted DESC, created_at ASC").
		Find(&answers).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load answers")
		return
	}

	resp := make([]map[string]interface{}, 0, len(answers))
	for _, ans := range answers {
		entry := map[string]interface{}{
			"id":         ans.ID,
			"content":    ans.Content,
			"user_id":    ans.UserID,
			"is_adopted": ans.IsAdopted,
			"created_at": ans.CreatedAt,
		}
		if ans.User != nil {
			entry["username"] = ans.User.Username
		}
		resp = append(resp, entry)
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: resp})
}
