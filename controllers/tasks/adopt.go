package tasks

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Dr-xiaoming/tasks/controllers/chat"
	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrAnswerNotFound         = errors.New("answer not found for this task")
	ErrCannotAdoptOwn         = errors.New("you cannot adopt your own answer")
	ErrRequirementsIncomplete = errors.New("all requirements must be completed before adopting")
	ErrInsufficientFunds      = errors.New("insufficient points balance")
)

type settlementResult struct {
	Task       models.Task
	Answer     models.Answer
	AnswererID uint
	Points     int64
}

// adoptAnswer runs the whole settlement in a single transaction: close the
// task, mark the answer adopted, move the reward between the two balances,
// record both ledger entries and drop the reward message into the publisher
// and answerer's conversation. Both adoption endpoints funnel through here
// so the preconditions and effects can never drift apart.
func adoptAnswer(db *gorm.DB, taskID, answerID, callerID uint) (*settlementResult, error) {
	var result settlementResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := database.LockForUpdate(tx).First(&task, taskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskNotFound
			}
			return err
		}
		if task.UserID != callerID {
			return errForbidden
		}
		if task.Status != models.TaskStatusOpen {
			return ErrTaskClosed
		}

		var answer models.Answer
		if err := tx.Where("id = ? AND task_id = ?", answerID, taskID).
			First(&answer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAnswerNotFound
			}
			return err
		}
		if answer.UserID == callerID {
			return ErrCannotAdoptOwn
		}

		done, err := AllRequirementsCompleted(tx, taskID)
		if err != nil {
			return err
		}
		if !done {
			return ErrRequirementsIncomplete
		}

		var payer models.User
		if err := database.LockForUpdate(tx).First(&payer, callerID).Error; err != nil {
			return err
		}
		if payer.Points < task.Points {
			return ErrInsufficientFunds
		}
		var payee models.User
		if err := database.LockForUpdate(tx).First(&payee, answer.UserID).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.User{}).Where("id = ?", payer.ID).
			Update("points", gorm.Expr("points - ?", task.Points)).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", payee.ID).
			Update("points", gorm.Expr("points + ?", task.Points)).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Task{}).Where("id = ?", taskID).Updates(map[string]interface{}{
			"status":            models.TaskStatusClosed,
			"adopted_answer_id": answer.ID,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Answer{}).Where("id = ?", answer.ID).
			Update("is_adopted", true).Error; err != nil {
			return err
		}

		conv, err := chat.FindOrCreateConversation(tx, callerID, answer.UserID, &taskID)
		if err != nil {
			return err
		}
		points := task.Points
		reward := models.Message{
			ConversationID: conv.ID,
			SenderID:       callerID,
			Content:        fmt.Sprintf("Your answer to \"%s\" was adopted. %d points have been transferred to you.", task.Title, points),
			Type:           models.MessageTypeReward,
			TaskID:         &taskID,
			RewardPoints:   &points,
		}
		if err := tx.Create(&reward).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).
			Update("updated_at", time.Now()).Error; err != nil {
			return err
		}

		entries := []models.PointsHistory{
			{
				UserID:          callerID,
				Amount:          -points,
				Type:            models.PointsTypeReward,
				Description:     fmt.Sprintf("Reward paid for task \"%s\"", task.Title),
				RelatedTaskID:   &taskID,
				RelatedAnswerID: &answer.ID,
			},
			{
				UserID:          answer.UserID,
				Amount:          points,
				Type:            models.PointsTypeReward,
				Description:     fmt.Sprintf("Reward received for task \"%s\"", task.Title),
				RelatedTaskID:   &taskID,
				RelatedAnswerID: &answer.ID,
			},
		}
		if err := tx.Create(&entries).Error; err != nil {
			return err
		}

		result = settlementResult{
			Task:       task,
			Answer:     answer,
			AnswererID: answer.UserID,
			Points:     points,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordSettlement(db, &result, callerID)
	return &result, nil
}

// recordSettlement writes the external audit row after the settlement has
// committed. Failures here never undo the adoption; they are logged and the
// row can be backfilled from points_history.
func recordSettlement(db *gorm.DB, res *settlementResult, payerID uint) {
	desc := fmt.Sprintf("Task reward settlement: %s", res.Task.Title)
	audit := models.Transaction{
		ReferenceID: utils.GenerateReferenceID(payerID),
		SenderID:    payerID,
		ReceiverID:  res.AnswererID,
		Amount:      res.Points,
		Type:        "task_reward",
		TaskID:      &res.Task.ID,
		AnswerID:    &res.Answer.ID,
		Description: &desc,
	}
	if err := db.Create(&audit).Error; err != nil {
		log.Printf("[settlement] audit record for task %d failed: %v", res.Task.ID, err)
	}
}

func writeAdoptError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, ErrAnswerNotFound):
		utils.WriteError(w, http.StatusNotFound, utils.CodeNotFound, err.Error())
	case errors.Is(err, errForbidden):
		utils.WriteError(w, http.StatusForbidden, utils.CodeForbidden, "Only the task publisher can adopt an answer")
	case errors.Is(err, ErrCannotAdoptOwn):
		utils.WriteError(w, http.StatusForbidden, utils.CodeForbidden, err.Error())
	case errors.Is(err, ErrTaskClosed):
		utils.WriteError(w, http.StatusConflict, utils.CodeTaskClosed, "Task is already closed")
	case errors.Is(err, ErrRequirementsIncomplete):
		utils.WriteError(w, http.StatusConflict, utils.CodeRequirementsIncomplete, err.Error())
	case errors.Is(err, ErrInsufficientFunds):
		utils.WriteError(w, http.StatusConflict, utils.CodeInsufficientFunds, err.Error())
	case isSerializationFailure(err):
		utils.WriteError(w, http.StatusConflict, utils.CodeConflict, "Adoption conflicted with a concurrent update, please retry")
	default:
		log.Printf("[settlement] adoption failed: %v", err)
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to adopt answer")
	}
}

// isSerializationFailure reports whether the transaction was aborted by the
// database's lock manager (deadlock or lock wait timeout). Such a settlement
// left no state behind and is safe to retry.
func isSerializationFailure(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1205 || mysqlErr.Number == 1213
	}
	return false
}

// POST /api/tasks/{id}/answers/{answerId}/adopt
func AdoptAnswerHandler(w http.ResponseWriter, r *http.Request) {
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
	answerID, ok := pathID(r, "answerId")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Invalid answer ID")
		return
	}

	res, err := adoptAnswer(database.DB, taskID, answerID, uid)
	if err != nil {
		writeAdoptError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Answer adopted",
		Data: map[string]interface{}{
			"task_id":       res.Task.ID,
			"answer_id":     res.Answer.ID,
			"reward_points": res.Points,
		},
	})
}

// PATCH /api/answers/{id}/adopt
//
// Answer-first entrypoint used by the chat UI: resolves the task from the
// answer, then runs the exact same settlement.
func AdoptByAnswerHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}
	answerID, ok := pathID(r, "id")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Invalid answer ID")
		return
	}

	var answer models.Answer
	if err := database.DB.First(&answer, answerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteError(w, http.StatusNotFound, utils.CodeNotFound, "Answer not found")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load answer")
		return
	}

	res, err := adoptAnswer(database.DB, answer.TaskID, answer.ID, uid)
	if err != nil {
		writeAdoptError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Answer adopted",
		Data: map[string]interface{}{
			"task_id":       res.Task.ID,
			"answer_id":     res.Answer.ID,
			"reward_points": res.Points,
		},
	})
}
