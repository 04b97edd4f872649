package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"
)

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshHandler exchanges a valid refresh token for a new access token and rotated refresh token
func RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Invalid JSON body")
		return
	}
	if req.RefreshToken == "" {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "refresh_token is required")
		return
	}

	rt, err := utils.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Invalid refresh token")
		return
	}

	var user models.User
	if err := database.DB.First(&user, rt.UserID).Error; err != nil {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Invalid refresh token")
		return
	}

	// rotate: revoke old token before issuing a new one
	if err := database.DB.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Server error")
		return
	}
	newJTI, err := utils.GenerateRefreshToken(rt.UserID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Server error")
		return
	}

	accessToken, err := utils.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Server error")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data: map[string]interface{}{
			"access_token":  accessToken,
			"access_expire": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
			"refresh_token": newJTI,
		},
	})
}
