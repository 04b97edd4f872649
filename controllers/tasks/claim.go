package tasks

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/Dr-xiaoming/tasks/controllers/chat"
	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/middleware"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"

	"gorm.io/gorm"
)

const (
	// claimWindow is how long an exclusive claim stays active before the
	// sweeper expires it.
	claimWindow = 3 * 24 * time.Hour
	// maxActiveClaims caps how many tasks one user may hold at once.
	maxActiveClaims = 5
)

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrTaskClosed         = errors.New("task is closed")
	ErrNotExclusive       = errors.New("task is not exclusive")
	ErrAlreadyClaimed     = errors.New("task already claimed by another user")
	ErrDuplicateClaim     = errors.New("you already hold an active claim on this task")
	ErrClaimLimitExceeded = errors.New("active claim limit reached")
)

// POST /api/tasks/{id}/claim
func ClaimTaskHandler(w http.ResponseWriter, r *http.Request) {
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

	var claim models.TaskClaim
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := database.LockForUpdate(tx).First(&task, taskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return err
		}
		if task.Status != models.TaskStatusOpen {
			return ErrTaskClosed
		}
		if !task.IsExclusive {
			return ErrNotExclusive
		}

		var existing models.TaskClaim
		err := database.LockForUpdate(tx).
			Where("task_id = ? AND status = ?", taskID, models.TaskClaimStatusActive).
			First(&existing).Error
		if err == nil {
			if existing.UserID == uid {
				return ErrDuplicateClaim
			}
			return ErrAlreadyClaimed
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// the quota check runs under the claimant's row lock; two claims on
		// different tasks by the same user serialize here, not on the task row
		var claimant models.User
		if err := database.LockForUpdate(tx).First(&claimant, uid).Error; err != nil {
			return err
		}
		var activeCount int64
		if err := tx.Model(&models.TaskClaim{}).
			Where("user_id = ? AND status = ?", uid, models.TaskClaimStatusActive).
			Count(&activeCount).Error; err != nil {
			return err
		}
		if activeCount >= maxActiveClaims {
			return ErrClaimLimitExceeded
		}

		claim = models.TaskClaim{
			TaskID:    taskID,
			UserID:    uid,
			Status:    models.TaskClaimStatusActive,
			ExpiresAt: time.Now().Add(claimWindow),
		}
		return tx.Create(&claim).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTaskNotFound):
			utils.WriteError(w, http.StatusNotFound, utils.CodeNotFound, err.Error())
		case errors.Is(err, ErrTaskClosed):
			utils.WriteError(w, http.StatusConflict, utils.CodeTaskClosed, err.Error())
		case errors.Is(err, ErrNotExclusive):
			utils.WriteError(w, http.StatusBadRequest, utils.CodeNotExclusive, err.Error())
		case errors.Is(err, ErrDuplicateClaim):
			utils.WriteError(w, http.StatusConflict, utils.CodeDuplicateClaim, err.Error())
		case errors.Is(err, ErrAlreadyClaimed):
			utils.WriteError(w, http.StatusConflict, utils.CodeAlreadyClaimed, err.Error())
		case errors.Is(err, ErrClaimLimitExceeded):
			utils.WriteError(w, http.StatusConflict, utils.CodeClaimLimitExceeded, err.Error())
		default:
			log.Printf("[claim] claim task %d by user %d failed: %v", taskID, uid, err)
			utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to claim task")
		}
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "Task claimed",
		Data: map[string]interface{}{
			"claim_id":   claim.ID,
			"task_id":    claim.TaskID,
			"expires_at": claim.ExpiresAt,
		},
	})
}

type ReleaseClaimRequest struct {
	ClaimID uint `json:"claim_id" validate:"required"`
}

// POST /api/tasks/{id}/claim/release
//
// Only the task owner may release someone else's claim; the claimant is
// notified via a system message in their conversation with the owner.
func ReleaseClaimHandler(w http.ResponseWriter, r *http.Request) {
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
	var req ReleaseClaimRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

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

		var claim models.TaskClaim
		if err := database.LockForUpdate(tx).
			Where("id = ? AND task_id = ?", req.ClaimID, taskID).
			First(&claim).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClaimNotFound
			}
			return err
		}
		if claim.Status != models.TaskClaimStatusActive {
			return ErrClaimNotActive
		}

		if err := tx.Model(&models.TaskClaim{}).
			Where("id = ? AND status = ?", claim.ID, models.TaskClaimStatusActive).
			Update("status", models.TaskClaimStatusCancelled).Error; err != nil {
			return err
		}

		if claim.UserID != uid {
			conv, err := chat.FindOrCreateConversation(tx, uid, claim.UserID, &taskID)
			if err != nil {
				return err
			}
			notice := models.Message{
				ConversationID: conv.ID,
				SenderID:       uid,
				Content:        fmt.Sprintf("The publisher released your claim on task \"%s\".", task.Title),
				Type:           models.MessageTypeSystem,
				TaskID:         &taskID,
			}
			if err := tx.Create(&notice).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).
				Update("updated_at", time.Now()).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTaskNotFound), errors.Is(err, ErrClaimNotFound):
			utils.WriteError(w, http.StatusNotFound, utils.CodeNotFound, err.Error())
		case errors.Is(err, errForbidden):
			utils.WriteError(w, http.StatusForbidden, utils.CodeForbidden, "Only the task publisher can release a claim")
		case errors.Is(err, ErrClaimNotActive):
			utils.WriteError(w, http.StatusConflict, utils.CodeConflict, err.Error())
		default:
			log.Printf("[claim] release claim %d on task %d failed: %v", req.ClaimID, taskID, err)
			utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to release claim")
		}
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Claim released"})
}

var (
	ErrClaimNotFound  = errors.New("claim not found")
	ErrClaimNotActive = errors.New("claim is not active")
	errForbidden      = errors.New("forbidden")
)

// SweepExpiredClaims flips all overdue active claims to expired in one
// conditional UPDATE and returns how many rows changed. Safe to run
// concurrently: a claim already swept matches neither condition again.
func SweepExpiredClaims(db *gorm.DB) (int64, error) {
	res := db.Model(&models.TaskClaim{}).
		Where("status = ? AND expires_at < ?", models.TaskClaimStatusActive, time.Now()).
		Update("status", models.TaskClaimStatusExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// POST /api/cron/expire-claims
// Guarded by the X-CRON-KEY header so only the scheduler can trigger it.
func ExpireClaimsHandler(w http.ResponseWriter, r *http.Request) {
	key := os.Getenv("CRON_SECRET_KEY")
	if key == "" || r.Header.Get("X-CRON-KEY") != key {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}
	count, err := SweepExpiredClaims(database.DB)
	if err != nil {
		log.Printf("[claim] expire sweep failed: %v", err)
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to expire claims")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Expired claims processed",
		Data:    map[string]interface{}{"expired": count},
	})
}

// GET /api/users/me/claims/count
func MyClaimCountHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}
	var count int64
	if err := database.DB.Model(&models.TaskClaim{}).
		Where("user_id = ? AND status = ?", uid, models.TaskClaimStatusActive).
		Count(&count).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to count claims")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data: map[string]interface{}{
			"active_claims": count,
			"limit":         maxActiveClaims,
		},
	})
}
