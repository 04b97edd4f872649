package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"

	"github.com/glebarez/sqlite"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an isolated in-memory database, migrates the schema and
// installs it as the package-global handle used by the handlers.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	// a single connection keeps every query on the same :memory: database
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Task{},
		&models.TaskClaim{},
		&models.Answer{},
		&models.FinalAnswer{},
		&models.TaskRequirement{},
		&models.UserTaskRequirement{},
		&models.Conversation{},
		&models.Message{},
		&models.PointsHistory{},
		&models.Transaction{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	database.DB = db
	t.Cleanup(func() { database.DB = nil })
	return db
}

func newUser(t *testing.T, db *gorm.DB, username string, points int64) *models.User {
	t.Helper()
	user := models.User{Username: username, PasswordHash: "x", Points: points}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return &user
}

func newTask(t *testing.T, db *gorm.DB, ownerID uint, points int64, exclusive bool) *models.Task {
	t.Helper()
	task := models.Task{
		UserID:      ownerID,
		Title:       "test task",
		Description: "do the thing",
		Points:      points,
		IsExclusive: exclusive,
		Status:      models.TaskStatusOpen,
	}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	return &task
}

func newAnswer(t *testing.T, db *gorm.DB, taskID, userID uint) *models.Answer {
	t.Helper()
	answer := models.Answer{TaskID: taskID, UserID: userID, Content: "an answer"}
	if err := db.Create(&answer).Error; err != nil {
		t.Fatalf("create answer: %v", err)
	}
	return &answer
}

func newRequirement(t *testing.T, db *gorm.DB, taskID uint, content string) *models.TaskRequirement {
	t.Helper()
	req := models.TaskRequirement{TaskID: taskID, Content: content}
	if err := db.Create(&req).Error; err != nil {
		t.Fatalf("create requirement: %v", err)
	}
	return &req
}

// doRequest runs a handler with mux vars, an authenticated user (0 means
// anonymous) and an optional JSON body.
func doRequest(t *testing.T, h http.HandlerFunc, method string, vars map[string]string, uid uint, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, "/test", &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	if uid != 0 {
		req = req.WithContext(context.WithValue(req.Context(), utils.UserIDKey, uid))
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var resp utils.APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return resp
}

func userPoints(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		t.Fatalf("load user %d: %v", userID, err)
	}
	return user.Points
}

func itoa(n uint) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
