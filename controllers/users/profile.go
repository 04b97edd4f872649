package users

import (
	"net/http"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/middleware"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"
)

type UpdateProfileRequest struct {
	Bio    *string `json:"bio"`
	Avatar *string `json:"avatar"`
}

// PATCH /api/users/me
func UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}
	var req UpdateProfileRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	if req.Bio == nil && req.Avatar == nil {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Nothing to update")
		return
	}

	updates := map[string]interface{}{}
	if req.Bio != nil {
		if len(*req.Bio) > 255 {
			utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Bio too long")
			return
		}
		updates["bio"] = *req.Bio
	}
	if req.Avatar != nil {
		if len(*req.Avatar) > 255 {
			utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Avatar URL too long")
			return
		}
		updates["avatar"] = *req.Avatar
	}

	if err := database.DB.Model(&models.User{}).Where("id = ?", uid).
		Updates(updates).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to update profile")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Profile updated"})
}
