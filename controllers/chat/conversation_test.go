package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"

	"github.com/glebarez/sqlite"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.User{}, &models.Task{}, &models.Conversation{}, &models.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	database.DB = db
	t.Cleanup(func() { database.DB = nil })
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := models.User{Username: name, PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &user
}

func TestFindOrCreateConversation_Normalizes(t *testing.T) {
	db := setupTestDB(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	first, err := FindOrCreateConversation(db, bob.ID, alice.ID, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.User1ID >= first.User2ID {
		t.Fatalf("pair not normalized: %d/%d", first.User1ID, first.User2ID)
	}

	// calling with the pair flipped returns the same row
	second, err := FindOrCreateConversation(db, alice.ID, bob.ID, nil)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected one conversation per pair, got %d and %d", first.ID, second.ID)
	}

	var count int64
	db.Model(&models.Conversation{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 conversation, got %d", count)
	}
}

func TestFindOrCreateConversation_AttachesTask(t *testing.T) {
	db := setupTestDB(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	conv, err := FindOrCreateConversation(db, alice.ID, bob.ID, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conv.TaskID != nil {
		t.Fatalf("expected no task, got %v", conv.TaskID)
	}

	taskID := uint(42)
	conv, err = FindOrCreateConversation(db, alice.ID, bob.ID, &taskID)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if conv.TaskID == nil || *conv.TaskID != taskID {
		t.Fatalf("task not attached: %v", conv.TaskID)
	}
}

func TestMessages_ParticipantOnly(t *testing.T) {
	db := setupTestDB(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	eve := seedUser(t, db, "eve")

	conv, err := FindOrCreateConversation(db, alice.ID, bob.ID, nil)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	send := func(uid uint, content string) *httptest.ResponseRecorder {
		t.Helper()
		body, _ := json.Marshal(map[string]string{"content": content})
		req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req = mux.SetURLVars(req, map[string]string{"conversationId": strconv.FormatUint(uint64(conv.ID), 10)})
		req = req.WithContext(context.WithValue(req.Context(), utils.UserIDKey, uid))
		rr := httptest.NewRecorder()
		SendMessageHandler(rr, req)
		return rr
	}

	if rr := send(alice.ID, "hi bob"); rr.Code != http.StatusCreated {
		t.Fatalf("participant send failed: %d %s", rr.Code, rr.Body.String())
	}
	if rr := send(eve.ID, "let me in"); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for outsider, got %d", rr.Code)
	}

	var count int64
	db.Model(&models.Message{}).Where("conversation_id = ?", conv.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 message, got %d", count)
	}
}
