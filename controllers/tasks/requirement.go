package tasks

import (
	"errors"
	"log"
	"net/http"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/middleware"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"

	"gorm.io/gorm"
)

// materializeUserRequirements creates the per-user checklist rows for any
// requirement of the task that the user has no row for yet, seeding them
// from the task-level state. Returns the user's full checklist.
func materializeUserRequirements(tx *gorm.DB, taskID, userID uint) ([]models.UserTaskRequirement, error) {
	var reqs []models.TaskRequirement
	if err := tx.Where("task_id = ?", taskID).Order("id ASC").Find(&reqs).Error; err != nil {
		return nil, err
	}
	rows := make([]models.UserTaskRequirement, 0, len(reqs))
	for _, req := range reqs {
		row := models.UserTaskRequirement{
			UserID:        userID,
			TaskID:        taskID,
			RequirementID: req.ID,
		}
		if err := tx.Where(models.UserTaskRequirement{
			UserID:        userID,
			TaskID:        taskID,
			RequirementID: req.ID,
		}).Attrs(models.UserTaskRequirement{Completed: req.Completed}).
			FirstOrCreate(&row).Error; err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AllRequirementsCompleted reports whether every requirement of the task is
// checked off at the task level. A task with no requirements counts as
// complete.
func AllRequirementsCompleted(tx *gorm.DB, taskID uint) (bool, error) {
	var pending int64
	err := tx.Model(&models.TaskRequirement{}).
		Where("task_id = ? AND completed = ?", taskID, false).
		Count(&pending).Error
	if err != nil {
		return false, err
	}
	return pending == 0, nil
}

// GET /api/tasks/{id}/requirements
//
// Anonymous callers see the task-level checklist; authenticated callers get
// their personal rows, materialized on first read.
func ListRequirementsHandler(w http.ResponseWriter, r *http.Request) {
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

	uid, authed := utils.GetUserID(r)

	type requirementView struct {
		ID        uint   `json:"id"`
		Content   string `json:"content"`
		Completed bool   `json:"completed"`
	}

	var views []requirementView
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var reqs []models.TaskRequirement
		if err := tx.Where("task_id = ?", taskID).Order("id ASC").Find(&reqs).Error; err != nil {
			return err
		}
		views = make([]requirementView, 0, len(reqs))
		if !authed || uid == 0 {
			for _, req := range reqs {
				views = append(views, requirementView{ID: req.ID, Content: req.Content, Completed: req.Completed})
			}
			return nil
		}
		rows, err := materializeUserRequirements(tx, taskID, uid)
		if err != nil {
			return err
		}
		byReq := make(map[uint]bool, len(rows))
		for _, row := range rows {
			byReq[row.RequirementID] = row.Completed
		}
		for _, req := range reqs {
			views = append(views, requirementView{ID: req.ID, Content: req.Content, Completed: byReq[req.ID]})
		}
		return nil
	})
	if err != nil {
		log.Printf("[requirement] list for task %d failed: %v", taskID, err)
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load requirements")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: views})
}

type SetRequirementRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}

// PATCH /api/tasks/{id}/requirements/{requirementId}
//
// Task-owner only. Updates the task-level state and fans the new value out
// to everyone who already has a stake in the task: the owner, all
// answerers, all users with materialized rows, and the caller.
func SetRequirementCompletedHandler(w http.ResponseWriter, r *http.Request) {
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
	reqID, ok := pathID(r, "requirementId")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Invalid requirement ID")
		return
	}
	var body SetRequirementRequest
	if err := middleware.ValidateJSON(w, r, &body); err != nil {
		return
	}
	completed := *body.Completed

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := database.LockForUpdate(tx).First(&task, taskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return err
		}
		if task.UserID != uid {
			return errForbidden
		}

		res := tx.Model(&models.TaskRequirement{}).
			Where("id = ? AND task_id = ?", reqID, taskID).
			Update("completed", completed)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRequirementNotFound
		}

		// collect everyone whose checklist mirrors this requirement
		interested := map[uint]struct{}{task.UserID: {}, uid: {}}
		var answerers []uint
		if err := tx.Model(&models.Answer{}).Where("task_id = ?", taskID).
			Distinct().Pluck("user_id", &answerers).Error; err != nil {
			return err
		}
		for _, id := range answerers {
			interested[id] = struct{}{}
		}
		var holders []uint
		if err := tx.Model(&models.UserTaskRequirement{}).
			Where("task_id = ? AND requirement_id = ?", taskID, reqID).
			Distinct().Pluck("user_id", &holders).Error; err != nil {
			return err
		}
		for _, id := range holders {
			interested[id] = struct{}{}
		}

		for userID := range interested {
			row := models.UserTaskRequirement{
				UserID:        userID,
				TaskID:        taskID,
				RequirementID: reqID,
			}
			if err := tx.Where(models.UserTaskRequirement{
				UserID:        userID,
				TaskID:        taskID,
				RequirementID: reqID,
			}).FirstOrCreate(&row).Error; err != nil {
				return err
			}
			if row.Completed != completed {
				if err := tx.Model(&models.UserTaskRequirement{}).
					Where("id = ?", row.ID).
					Update("completed", completed).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTaskNotFound), errors.Is(err, ErrRequirementNotFound):
			utils.WriteError(w, http.StatusNotFound, utils.CodeNotFound, err.Error())
		case errors.Is(err, errForbidden):
			utils.WriteError(w, http.StatusForbidden, utils.CodeForbidden, "Only the task publisher can update requirements")
		default:
			log.Printf("[requirement] update %d on task %d failed: %v", reqID, taskID, err)
			utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to update requirement")
		}
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Requirement updated",
		Data: map[string]interface{}{
			"requirement_id": reqID,
			"completed":      completed,
		},
	})
}

var ErrRequirementNotFound = errors.New("requirement not found")
