package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/middleware"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required,usernameok"`
	Password string `json:"password" validate:"required,pwdmin"`
}

func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	db := database.DB

	var user models.User
	if err := db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Invalid username or password")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Invalid username or password")
		return
	}

	accessToken, err := utils.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to log in")
		return
	}
	refreshJTI, err := utils.GenerateRefreshToken(user.ID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to store refresh token")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Logged in successfully",
		Data: map[string]interface{}{
			"access_token":  accessToken,
			"access_expire": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
			"refresh_token": refreshJTI,
			"user": map[string]interface{}{
				"id":       user.ID,
				"username": user.Username,
				"points":   user.Points,
			},
		},
	})
}

// CheckTokenHandler reports whether the presented access token is still valid.
// The frontend polls this to decide when to force a re-login.
func CheckTokenHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}
	username, _ := utils.GetUsername(r)
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Token valid",
		Data:    map[string]interface{}{"user_id": uid, "username": username},
	})
}
