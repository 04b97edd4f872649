package users

import (
	"errors"
	"net/http"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"

	"gorm.io/gorm"
)

// GET /api/users/me
func MeHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}

	var user models.User
	if err := database.DB.First(&user, uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteError(w, http.StatusNotFound, utils.CodeNotFound, "User not found")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load user")
		return
	}

	db := database.DB
	var publishedCount, answerCount, adoptedCount, activeClaims int64
	db.Model(&models.Task{}).Where("user_id = ?", uid).Count(&publishedCount)
	db.Model(&models.Answer{}).Where("user_id = ?", uid).Count(&answerCount)
	db.Model(&models.Answer{}).Where("user_id = ? AND is_adopted = ?", uid, true).Count(&adoptedCount)
	db.Model(&models.TaskClaim{}).Where("user_id = ? AND status = ?", uid, models.TaskClaimStatusActive).Count(&activeClaims)

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data: map[string]interface{}{
			"id":              user.ID,
			"username":        user.Username,
			"points":          user.Points,
			"bio":             utils.GetStringValue(user.Bio),
			"avatar":          utils.GetStringValue(user.Avatar),
			"created_at":      user.CreatedAt,
			"published_tasks": publishedCount,
			"answers":         answerCount,
			"adopted_answers": adoptedCount,
			"active_claims":   activeClaims,
		},
	})
}
