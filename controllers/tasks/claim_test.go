package tasks

import (
	"net/http"
	"testing"
	"time"

	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"
)

func TestClaimTask(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 100)
	worker := newUser(t, db, "worker", 0)
	task := newTask(t, db, owner.ID, 50, true)

	rr := doRequest(t, ClaimTaskHandler, http.MethodPost, map[string]string{"id": itoa(task.ID)}, worker.ID, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var claim models.TaskClaim
	if err := db.Where("task_id = ? AND user_id = ?", task.ID, worker.ID).First(&claim).Error; err != nil {
		t.Fatalf("claim row not created: %v", err)
	}
	if claim.Status != models.TaskClaimStatusActive {
		t.Fatalf("expected active claim, got %s", claim.Status)
	}
	window := time.Until(claim.ExpiresAt)
	if window < 71*time.Hour || window > 73*time.Hour {
		t.Fatalf("expected ~72h expiry window, got %s", window)
	}
}

func TestClaimTask_SecondClaimantRejected(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 100)
	first := newUser(t, db, "first", 0)
	second := newUser(t, db, "second", 0)
	task := newTask(t, db, owner.ID, 50, true)
	vars := map[string]string{"id": itoa(task.ID)}

	if rr := doRequest(t, ClaimTaskHandler, http.MethodPost, vars, first.ID, nil); rr.Code != http.StatusCreated {
		t.Fatalf("first claim failed: %d %s", rr.Code, rr.Body.String())
	}

	rr := doRequest(t, ClaimTaskHandler, http.MethodPost, vars, second.ID, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
	if resp := decodeResponse(t, rr); resp.Code != utils.CodeAlreadyClaimed {
		t.Fatalf("expected code %s, got %s", utils.CodeAlreadyClaimed, resp.Code)
	}

	var active int64
	db.Model(&models.TaskClaim{}).Where("task_id = ? AND status = ?", task.ID, models.TaskClaimStatusActive).Count(&active)
	if active != 1 {
		t.Fatalf("expected exactly 1 active claim, got %d", active)
	}
}

func TestClaimTask_OwnClaimTwice(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 100)
	worker := newUser(t, db, "worker", 0)
	task := newTask(t, db, owner.ID, 50, true)
	vars := map[string]string{"id": itoa(task.ID)}

	if rr := doRequest(t, ClaimTaskHandler, http.MethodPost, vars, worker.ID, nil); rr.Code != http.StatusCreated {
		t.Fatalf("first claim failed: %d", rr.Code)
	}
	rr := doRequest(t, ClaimTaskHandler, http.MethodPost, vars, worker.ID, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); resp.Code != utils.CodeDuplicateClaim {
		t.Fatalf("expected code %s, got %s", utils.CodeDuplicateClaim, resp.Code)
	}
}

func TestClaimTask_NotExclusive(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 100)
	worker := newUser(t, db, "worker", 0)
	task := newTask(t, db, owner.ID, 50, false)

	rr := doRequest(t, ClaimTaskHandler, http.MethodPost, map[string]string{"id": itoa(task.ID)}, worker.ID, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); resp.Code != utils.CodeNotExclusive {
		t.Fatalf("expected code %s, got %s", utils.CodeNotExclusive, resp.Code)
	}
}

func TestClaimTask_ClosedTask(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 100)
	worker := newUser(t, db, "worker", 0)
	task := newTask(t, db, owner.ID, 50, true)
	db.Model(task).Update("status", models.TaskStatusClosed)

	rr := doRequest(t, ClaimTaskHandler, http.MethodPost, map[string]string{"id": itoa(task.ID)}, worker.ID, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); resp.Code != utils.CodeTaskClosed {
		t.Fatalf("expected code %s, got %s", utils.CodeTaskClosed, resp.Code)
	}
}

func TestClaimTask_QuotaExceeded(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 1000)
	worker := newUser(t, db, "worker", 0)

	for i := 0; i < maxActiveClaims; i++ {
		task := newTask(t, db, owner.ID, 10, true)
		rr := doRequest(t, ClaimTaskHandler, http.MethodPost, map[string]string{"id": itoa(task.ID)}, worker.ID, nil)
		if rr.Code != http.StatusCreated {
			t.Fatalf("claim %d failed: %d %s", i+1, rr.Code, rr.Body.String())
		}
	}

	extra := newTask(t, db, owner.ID, 10, true)
	rr := doRequest(t, ClaimTaskHandler, http.MethodPost, map[string]string{"id": itoa(extra.ID)}, worker.ID, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 on claim over quota, got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); resp.Code != utils.CodeClaimLimitExceeded {
		t.Fatalf("expected code %s, got %s", utils.CodeClaimLimitExceeded, resp.Code)
	}
}

func TestSweepExpiredClaims(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 100)
	worker := newUser(t, db, "worker", 0)

	overdue := models.TaskClaim{
		TaskID:    newTask(t, db, owner.ID, 10, true).ID,
		UserID:    worker.ID,
		Status:    models.TaskClaimStatusActive,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	current := models.TaskClaim{
		TaskID:    newTask(t, db, owner.ID, 10, true).ID,
		UserID:    worker.ID,
		Status:    models.TaskClaimStatusActive,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	cancelled := models.TaskClaim{
		TaskID:    newTask(t, db, owner.ID, 10, true).ID,
		UserID:    worker.ID,
		Status:    models.TaskClaimStatusCancelled,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	for _, c := range []*models.TaskClaim{&overdue, &current, &cancelled} {
		if err := db.Create(c).Error; err != nil {
			t.Fatalf("seed claim: %v", err)
		}
	}

	count, err := SweepExpiredClaims(db)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 expired claim, got %d", count)
	}

	// fresh dest per lookup: reusing one struct would leak the previous
	// primary key into the next query's WHERE clause
	claimStatus := func(id uint) models.TaskClaimStatus {
		t.Helper()
		var got models.TaskClaim
		if err := db.First(&got, id).Error; err != nil {
			t.Fatalf("load claim %d: %v", id, err)
		}
		return got.Status
	}
	if got := claimStatus(overdue.ID); got != models.TaskClaimStatusExpired {
		t.Fatalf("overdue claim not expired: %s", got)
	}
	if got := claimStatus(current.ID); got != models.TaskClaimStatusActive {
		t.Fatalf("current claim should stay active: %s", got)
	}
	if got := claimStatus(cancelled.ID); got != models.TaskClaimStatusCancelled {
		t.Fatalf("cancelled claim should stay cancelled: %s", got)
	}

	// sweeping again finds nothing to do
	count, err = SweepExpiredClaims(db)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if count != 0 {
		t.Fatalf("second sweep should affect 0 rows, got %d", count)
	}
}

func TestReleaseClaim(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 100)
	worker := newUser(t, db, "worker", 0)
	task := newTask(t, db, owner.ID, 50, true)
	claim := models.TaskClaim{
		TaskID:    task.ID,
		UserID:    worker.ID,
		Status:    models.TaskClaimStatusActive,
		ExpiresAt: time.Now().Add(claimWindow),
	}
	if err := db.Create(&claim).Error; err != nil {
		t.Fatalf("seed claim: %v", err)
	}
	vars := map[string]string{"id": itoa(task.ID)}
	body := map[string]interface{}{"claim_id": claim.ID}

	// the claimant cannot release their own claim, only the publisher can
	rr := doRequest(t, ReleaseClaimHandler, http.MethodPost, vars, worker.ID, body)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d", rr.Code)
	}

	rr = doRequest(t, ReleaseClaimHandler, http.MethodPost, vars, owner.ID, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var got models.TaskClaim
	db.First(&got, claim.ID)
	if got.Status != models.TaskClaimStatusCancelled {
		t.Fatalf("expected cancelled claim, got %s", got.Status)
	}

	// the claimant got a system message about the release
	var msg models.Message
	if err := db.Where("type = ? AND task_id = ?", models.MessageTypeSystem, task.ID).First(&msg).Error; err != nil {
		t.Fatalf("release notification not created: %v", err)
	}
	if msg.SenderID != owner.ID {
		t.Fatalf("notification sender = %d, want %d", msg.SenderID, owner.ID)
	}

	// releasing again is a conflict
	rr = doRequest(t, ReleaseClaimHandler, http.MethodPost, vars, owner.ID, body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 on double release, got %d", rr.Code)
	}
}

func TestClaimTask_AfterRelease(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 100)
	first := newUser(t, db, "first", 0)
	second := newUser(t, db, "second", 0)
	task := newTask(t, db, owner.ID, 50, true)
	vars := map[string]string{"id": itoa(task.ID)}

	if rr := doRequest(t, ClaimTaskHandler, http.MethodPost, vars, first.ID, nil); rr.Code != http.StatusCreated {
		t.Fatalf("first claim failed: %d", rr.Code)
	}
	var claim models.TaskClaim
	db.Where("task_id = ?", task.ID).First(&claim)

	rr := doRequest(t, ReleaseClaimHandler, http.MethodPost, vars, owner.ID, map[string]interface{}{"claim_id": claim.ID})
	if rr.Code != http.StatusOK {
		t.Fatalf("release failed: %d", rr.Code)
	}

	// the slot is free again
	if rr := doRequest(t, ClaimTaskHandler, http.MethodPost, vars, second.ID, nil); rr.Code != http.StatusCreated {
		t.Fatalf("claim after release failed: %d %s", rr.Code, rr.Body.String())
	}
}
