package tasks

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"

	"github.com/go-sql-driver/mysql"
)

func TestAdoptAnswer(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 100)
	answerer := newUser(t, db, "answerer", 0)
	task := newTask(t, db, owner.ID, 100, false)
	answer := newAnswer(t, db, task.ID, answerer.ID)

	rr := doRequest(t, AdoptAnswerHandler, http.MethodPost,
		map[string]string{"id": itoa(task.ID), "answerId": itoa(answer.ID)}, owner.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if got := userPoints(t, db, owner.ID); got != 0 {
		t.Fatalf("owner balance = %d, want 0", got)
	}
	if got := userPoints(t, db, answerer.ID); got != 100 {
		t.Fatalf("answerer balance = %d, want 100", got)
	}

	var gotTask models.Task
	db.First(&gotTask, task.ID)
	if gotTask.Status != models.TaskStatusClosed {
		t.Fatalf("task status = %s, want closed", gotTask.Status)
	}
	if gotTask.AdoptedAnswerID == nil || *gotTask.AdoptedAnswerID != answer.ID {
		t.Fatalf("adopted_answer_id = %v, want %d", gotTask.AdoptedAnswerID, answer.ID)
	}

	var gotAnswer models.Answer
	db.First(&gotAnswer, answer.ID)
	if !gotAnswer.IsAdopted {
		t.Fatal("answer not marked adopted")
	}

	// reward message landed in the pair's conversation
	var msg models.Message
	if err := db.Where("type = ?", models.MessageTypeReward).First(&msg).Error; err != nil {
		t.Fatalf("reward message not created: %v", err)
	}
	if msg.RewardPoints == nil || *msg.RewardPoints != 100 {
		t.Fatalf("reward message points = %v, want 100", msg.RewardPoints)
	}
	if msg.TaskID == nil || *msg.TaskID != task.ID {
		t.Fatalf("reward message task = %v, want %d", msg.TaskID, task.ID)
	}

	// both ledger entries exist and sum to zero
	var entries []models.PointsHistory
	db.Where("related_task_id = ?", task.ID).Find(&entries)
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	var sum int64
	for _, e := range entries {
		sum += e.Amount
	}
	if sum != 0 {
		t.Fatalf("ledger entries sum to %d, want 0", sum)
	}

	// audit row written after commit
	var audit models.Transaction
	if err := db.Where("task_id = ?", task.ID).First(&audit).Error; err != nil {
		t.Fatalf("audit transaction not created: %v", err)
	}
	if audit.SenderID != owner.ID || audit.ReceiverID != answerer.ID || audit.Amount != 100 {
		t.Fatalf("audit row mismatch: %+v", audit)
	}
}

func TestAdoptAnswer_InsufficientFunds(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 30)
	answerer := newUser(t, db, "answerer", 5)
	task := newTask(t, db, owner.ID, 100, false)
	answer := newAnswer(t, db, task.ID, answerer.ID)

	rr := doRequest(t, AdoptAnswerHandler, http.MethodPost,
		map[string]string{"id": itoa(task.ID), "answerId": itoa(answer.ID)}, owner.ID, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
	if resp := decodeResponse(t, rr); resp.Code != utils.CodeInsufficientFunds {
		t.Fatalf("expected code %s, got %s", utils.CodeInsufficientFunds, resp.Code)
	}

	// nothing changed
	if got := userPoints(t, db, owner.ID); got != 30 {
		t.Fatalf("owner balance = %d, want 30", got)
	}
	if got := userPoints(t, db, answerer.ID); got != 5 {
		t.Fatalf("answerer balance = %d, want 5", got)
	}
	var gotTask models.Task
	db.First(&gotTask, task.ID)
	if gotTask.Status != models.TaskStatusOpen {
		t.Fatalf("task should stay open, got %s", gotTask.Status)
	}
	var gotAnswer models.Answer
	db.First(&gotAnswer, answer.ID)
	if gotAnswer.IsAdopted {
		t.Fatal("answer must not be adopted")
	}
	var ledgerCount int64
	db.Model(&models.PointsHistory{}).Count(&ledgerCount)
	if ledgerCount != 0 {
		t.Fatalf("expected empty ledger, got %d entries", ledgerCount)
	}
}

func TestAdoptAnswer_RequirementsGate(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 200)
	answerer := newUser(t, db, "answerer", 0)
	task := newTask(t, db, owner.ID, 100, false)
	req := newRequirement(t, db, task.ID, "attach the logs")
	answer := newAnswer(t, db, task.ID, answerer.ID)
	adoptVars := map[string]string{"id": itoa(task.ID), "answerId": itoa(answer.ID)}

	rr := doRequest(t, AdoptAnswerHandler, http.MethodPost, adoptVars, owner.ID, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 with open requirement, got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); resp.Code != utils.CodeRequirementsIncomplete {
		t.Fatalf("expected code %s, got %s", utils.CodeRequirementsIncomplete, resp.Code)
	}

	completed := true
	rr = doRequest(t, SetRequirementCompletedHandler, http.MethodPatch,
		map[string]string{"id": itoa(task.ID), "requirementId": itoa(req.ID)},
		owner.ID, map[string]interface{}{"completed": completed})
	if rr.Code != http.StatusOK {
		t.Fatalf("requirement update failed: %d %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, AdoptAnswerHandler, http.MethodPost, adoptVars, owner.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 after completing requirements, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := userPoints(t, db, owner.ID); got != 100 {
		t.Fatalf("owner balance = %d, want 100", got)
	}
	if got := userPoints(t, db, answerer.ID); got != 100 {
		t.Fatalf("answerer balance = %d, want 100", got)
	}
	var gotTask models.Task
	db.First(&gotTask, task.ID)
	if gotTask.Status != models.TaskStatusClosed {
		t.Fatalf("task status = %s, want closed", gotTask.Status)
	}
}

func TestAdoptAnswer_DoubleAdopt(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 200)
	answerer := newUser(t, db, "answerer", 0)
	other := newUser(t, db, "other", 0)
	task := newTask(t, db, owner.ID, 100, false)
	first := newAnswer(t, db, task.ID, answerer.ID)
	second := newAnswer(t, db, task.ID, other.ID)

	rr := doRequest(t, AdoptAnswerHandler, http.MethodPost,
		map[string]string{"id": itoa(task.ID), "answerId": itoa(first.ID)}, owner.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("first adopt failed: %d", rr.Code)
	}

	rr = doRequest(t, AdoptAnswerHandler, http.MethodPost,
		map[string]string{"id": itoa(task.ID), "answerId": itoa(second.ID)}, owner.ID, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second adopt, got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); resp.Code != utils.CodeTaskClosed {
		t.Fatalf("expected code %s, got %s", utils.CodeTaskClosed, resp.Code)
	}

	// reward paid exactly once
	if got := userPoints(t, db, owner.ID); got != 100 {
		t.Fatalf("owner balance = %d, want 100", got)
	}
	if got := userPoints(t, db, other.ID); got != 0 {
		t.Fatalf("second answerer balance = %d, want 0", got)
	}
}

func TestAdoptAnswer_Forbidden(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 200)
	answerer := newUser(t, db, "answerer", 0)
	stranger := newUser(t, db, "stranger", 0)
	task := newTask(t, db, owner.ID, 100, false)
	answer := newAnswer(t, db, task.ID, answerer.ID)
	vars := map[string]string{"id": itoa(task.ID), "answerId": itoa(answer.ID)}

	// only the publisher can adopt
	rr := doRequest(t, AdoptAnswerHandler, http.MethodPost, vars, stranger.ID, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d", rr.Code)
	}

	// the publisher cannot adopt their own answer
	own := newAnswer(t, db, task.ID, owner.ID)
	rr = doRequest(t, AdoptAnswerHandler, http.MethodPost,
		map[string]string{"id": itoa(task.ID), "answerId": itoa(own.ID)}, owner.ID, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for self-adopt, got %d", rr.Code)
	}

	var gotTask models.Task
	db.First(&gotTask, task.ID)
	if gotTask.Status != models.TaskStatusOpen {
		t.Fatalf("task should stay open, got %s", gotTask.Status)
	}
}

func TestAdoptAnswer_WrongTask(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 200)
	answerer := newUser(t, db, "answerer", 0)
	taskA := newTask(t, db, owner.ID, 100, false)
	taskB := newTask(t, db, owner.ID, 100, false)
	answerB := newAnswer(t, db, taskB.ID, answerer.ID)

	// answer belongs to task B, adopting it through task A must fail
	rr := doRequest(t, AdoptAnswerHandler, http.MethodPost,
		map[string]string{"id": itoa(taskA.ID), "answerId": itoa(answerB.ID)}, owner.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestWriteAdoptError_LockAborts(t *testing.T) {
	// deadlock and lock wait timeout left no settlement state behind, so the
	// caller gets a retryable conflict instead of a server error
	for _, number := range []uint16{1205, 1213} {
		rr := httptest.NewRecorder()
		writeAdoptError(rr, fmt.Errorf("settle: %w", &mysql.MySQLError{Number: number, Message: "aborted"}))
		if rr.Code != http.StatusConflict {
			t.Fatalf("mysql error %d: expected 409, got %d", number, rr.Code)
		}
		if resp := decodeResponse(t, rr); resp.Code != utils.CodeConflict {
			t.Fatalf("mysql error %d: expected code %s, got %s", number, utils.CodeConflict, resp.Code)
		}
	}

	// other driver errors still surface as server errors
	rr := httptest.NewRecorder()
	writeAdoptError(rr, &mysql.MySQLError{Number: 1062, Message: "duplicate"})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for non-retryable driver error, got %d", rr.Code)
	}
}

func TestAdoptByAnswer(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 150)
	answerer := newUser(t, db, "answerer", 0)
	task := newTask(t, db, owner.ID, 150, false)
	answer := newAnswer(t, db, task.ID, answerer.ID)

	// the answer-first endpoint runs the same settlement
	rr := doRequest(t, AdoptByAnswerHandler, http.MethodPatch,
		map[string]string{"id": itoa(answer.ID)}, owner.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if got := userPoints(t, db, owner.ID); got != 0 {
		t.Fatalf("owner balance = %d, want 0", got)
	}
	if got := userPoints(t, db, answerer.ID); got != 150 {
		t.Fatalf("answerer balance = %d, want 150", got)
	}
	var gotTask models.Task
	db.First(&gotTask, task.ID)
	if gotTask.Status != models.TaskStatusClosed {
		t.Fatalf("task status = %s, want closed", gotTask.Status)
	}
	var msg models.Message
	if err := db.Where("type = ?", models.MessageTypeReward).First(&msg).Error; err != nil {
		t.Fatalf("reward message not created: %v", err)
	}
	var entryCount int64
	db.Model(&models.PointsHistory{}).Where("related_task_id = ?", task.ID).Count(&entryCount)
	if entryCount != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", entryCount)
	}
}
