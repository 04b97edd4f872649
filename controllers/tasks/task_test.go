package tasks

import (
	"net/http"
	"testing"

	"github.com/Dr-xiaoming/tasks/models"
)

func TestCreateTask(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 500)

	rr := doRequest(t, CreateTaskHandler, http.MethodPost, nil, owner.ID, map[string]interface{}{
		"title":        "fix the build",
		"description":  "ci is red",
		"points":       120,
		"tags":         "go,ci",
		"requirements": []string{"link the failing run", " ", "attach logs"},
		"is_exclusive": true,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var task models.Task
	if err := db.Where("user_id = ?", owner.ID).First(&task).Error; err != nil {
		t.Fatalf("task not created: %v", err)
	}
	if task.Points != 120 || !task.IsExclusive || task.Status != models.TaskStatusOpen {
		t.Fatalf("task fields wrong: %+v", task)
	}

	// blank requirement entries are dropped
	var reqCount int64
	db.Model(&models.TaskRequirement{}).Where("task_id = ?", task.ID).Count(&reqCount)
	if reqCount != 2 {
		t.Fatalf("expected 2 requirements, got %d", reqCount)
	}
}

func TestCreateTask_NonPositivePoints(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 500)

	rr := doRequest(t, CreateTaskHandler, http.MethodPost, nil, owner.ID, map[string]interface{}{
		"title":       "free work",
		"description": "no bounty",
		"points":      -5,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var count int64
	db.Model(&models.Task{}).Count(&count)
	if count != 0 {
		t.Fatalf("no task should be created, got %d", count)
	}
}

func TestListTasks_HidesClaimedExclusive(t *testing.T) {
	db := setupTestDB(t)
	owner := newUser(t, db, "owner", 500)
	claimant := newUser(t, db, "claimant", 0)
	stranger := newUser(t, db, "stranger", 0)

	open := newTask(t, db, owner.ID, 10, false)
	claimed := newTask(t, db, owner.ID, 20, true)
	if rr := doRequest(t, ClaimTaskHandler, http.MethodPost, map[string]string{"id": itoa(claimed.ID)}, claimant.ID, nil); rr.Code != http.StatusCreated {
		t.Fatalf("claim failed: %d", rr.Code)
	}

	ids := func(uid uint) map[float64]bool {
		t.Helper()
		rr := doRequest(t, ListTasksHandler, http.MethodGet, nil, uid, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("list failed: %d", rr.Code)
		}
		resp := decodeResponse(t, rr)
		items, _ := resp.Data.([]interface{})
		seen := map[float64]bool{}
		for _, item := range items {
			entry := item.(map[string]interface{})
			seen[entry["id"].(float64)] = true
		}
		return seen
	}

	// anonymous and unrelated viewers see only the unclaimed task
	for _, uid := range []uint{0, stranger.ID} {
		seen := ids(uid)
		if !seen[float64(open.ID)] {
			t.Fatalf("viewer %d should see the open task", uid)
		}
		if seen[float64(claimed.ID)] {
			t.Fatalf("viewer %d should not see the claimed exclusive task", uid)
		}
	}

	// the claimant still sees their claimed task
	seen := ids(claimant.ID)
	if !seen[float64(claimed.ID)] {
		t.Fatal("claimant should see their claimed task")
	}
}
