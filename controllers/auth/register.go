package auth

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/middleware"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	Username             string `json:"username" validate:"required,usernameok"`
	Password             string `json:"password" validate:"required,pwdmin"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Username must not be empty")
		return
	}

	db := database.DB

	var existing models.User
	if err := db.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		utils.WriteError(w, http.StatusConflict, utils.CodeConflict, "Username already taken")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[register] DB error checking username: %v", err)
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Server error")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Server error")
		return
	}

	newUser := models.User{
		Username:     req.Username,
		PasswordHash: string(hashed),
		Points:       0,
	}

	if err := db.Create(&newUser).Error; err != nil {
		log.Printf("[register] DB Create user error: %v", err)
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Registration failed, please try again")
		return
	}

	accessToken, err := utils.GenerateAccessToken(newUser.ID, newUser.Username)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to issue token")
		return
	}
	refreshJTI, err := utils.GenerateRefreshToken(newUser.ID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to store refresh token")
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "Registered successfully, welcome!",
		Data: map[string]interface{}{
			"access_token":  accessToken,
			"access_expire": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
			"refresh_token": refreshJTI,
			"user": map[string]interface{}{
				"id":       newUser.ID,
				"username": newUser.Username,
				"points":   newUser.Points,
			},
		},
	})
}
