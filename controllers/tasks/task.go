package tasks

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/middleware"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type CreateTaskRequest struct {
	Title        string   `json:"title" validate:"required"`
	Description  string   `json:"description" validate:"required"`
	Points       int64    `json:"points" validate:"required"`
	Tags         string   `json:"tags"`
	Requirements []string `json:"requirements"`
	IsExclusive  bool     `json:"is_exclusive"`
}

// POST /api/tasks
func CreateTaskHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}
	var req CreateTaskRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	if req.Points <= 0 {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Bounty points must be a positive integer")
		return
	}

	task := models.Task{
		UserID:      uid,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Points:      req.Points,
		Tags:        strings.TrimSpace(req.Tags),
		IsExclusive: req.IsExclusive,
		Status:      models.TaskStatusOpen,
	}

	// Task and its requirement checklist appear together or not at all.
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		for _, content := range req.Requirements {
			content = strings.TrimSpace(content)
			if content == "" {
				continue
			}
			requirement := models.TaskRequirement{
				TaskID:    task.ID,
				Content:   content,
				Completed: false,
			}
			if err := tx.Create(&requirement).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to publish task")
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{Success: true, Message: "Task published", Data: task})
}

// GET /api/tasks
// Open tasks only. Exclusive tasks under an active claim are hidden from
// everyone except their claimant.
func ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 50 {
		limit = 10
	}

	db := database.DB
	activeClaims := db.Model(&models.TaskClaim{}).Select("task_id").
		Where("status = ?", models.TaskClaimStatusActive)

	query := db.Model(&models.Task{}).Where("status = ?", models.TaskStatusOpen)
	if uid != 0 {
		myClaims := db.Model(&models.TaskClaim{}).Select("task_id").
			Where("status = ? AND user_id = ?", models.TaskClaimStatusActive, uid)
		query = query.Where("is_exclusive = ? OR id NOT IN (?) OR id IN (?)", false, activeClaims, myClaims)
	} else {
		query = query.Where("is_exclusive = ? OR id NOT IN (?)", false, activeClaims)
	}

	var tasks []models.Task
	if err := query.Preload("User").
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&tasks).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load tasks")
		return
	}

	resp := make([]map[string]interface{}, 0, len(tasks))
	for _, t := range tasks {
		entry := map[string]interface{}{
			"id":           t.ID,
			"title":        t.Title,
			"description":  t.Description,
			"points":       t.Points,
			"tags":         splitTags(t.Tags),
			"is_exclusive": t.IsExclusive,
			"status":       t.Status,
			"created_at":   t.CreatedAt,
		}
		if t.User != nil {
			entry["user"] = map[string]interface{}{"id": t.User.ID, "username": t.User.Username}
		}
		resp = append(resp, entry)
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: resp})
}

// GET /api/tasks/{id}
func TaskDetailHandler(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(r, "id")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Invalid task ID")
		return
	}

	db := database.DB
	var task models.Task
	if err := db.Preload("User").First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteError(w, http.StatusNotFound, utils.CodeNotFound, "Task not found")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load task")
		return
	}

	var answerCount int64
	db.Model(&models.Answer{}).Where("task_id = ?", task.ID).Count(&answerCount)

	entry := map[string]interface{}{
		"id":                task.ID,
		"title":             task.Title,
		"description":       task.Description,
		"points":            task.Points,
		"tags":              splitTags(task.Tags),
		"is_exclusive":      task.IsExclusive,
		"status":            task.Status,
		"adopted_answer_id": task.AdoptedAnswerID,
		"answer_count":      answerCount,
		"created_at":        task.CreatedAt,
	}
	if task.User != nil {
		entry["user"] = map[string]interface{}{"id": task.User.ID, "username": task.User.Username}
	}

	if task.IsExclusive {
		var claim models.TaskClaim
		if err := db.Where("task_id = ? AND status = ?", task.ID, models.TaskClaimStatusActive).
			First(&claim).Error; err == nil {
			entry["active_claim"] = map[string]interface{}{
				"claim_id":   claim.ID,
				"user_id":    claim.UserID,
				"expires_at": claim.ExpiresAt,
			}
		}
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: entry})
}

func splitTags(tags string) []string {
	out := []string{}
	for _, t := range strings.Split(tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// pathID parses a numeric mux path variable.
func pathID(r *http.Request, name string) (uint, bool) {
	raw := mux.Vars(r)[name]
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}
