package users

import (
	"errors"
	"net/http"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

func publicProfile(user *models.User) map[string]interface{} {
	return map[string]interface{}{
		"id":         user.ID,
		"username":   user.Username,
		"bio":        utils.GetStringValue(user.Bio),
		"avatar":     utils.GetStringValue(user.Avatar),
		"created_at": user.CreatedAt,
	}
}

// GET /api/users?page=&limit=
func ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1, 1, 10000)
	limit := queryInt(r, "limit", 20, 1, 100)

	var users []models.User
	if err := database.DB.Select("id, username, bio, avatar, created_at").
		Order("id ASC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&users).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load users")
		return
	}

	resp := make([]map[string]interface{}, 0, len(users))
	for i := range users {
		resp = append(resp, publicProfile(&users[i]))
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: resp})
}

// GET /api/users/{username}
func ByUsernameHandler(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	if username == "" {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Username required")
		return
	}

	var user models.User
	if err := database.DB.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteError(w, http.StatusNotFound, utils.CodeNotFound, "User not found")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load user")
		return
	}

	var publishedCount, adoptedCount int64
	database.DB.Model(&models.Task{}).Where("user_id = ?", user.ID).Count(&publishedCount)
	database.DB.Model(&models.Answer{}).Where("user_id = ? AND is_adopted = ?", user.ID, true).Count(&adoptedCount)

	profile := publicProfile(&user)
	profile["published_tasks"] = publishedCount
	profile["adopted_answers"] = adoptedCount

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: profile})
}
