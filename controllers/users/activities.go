package users

import (
	"net/http"
	"strconv"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"
)

func queryInt(r *http.Request, name string, def, min, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// GET /api/users/me/points-history?page=&limit=
func PointsHistoryHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}
	page := queryInt(r, "page", 1, 1, 10000)
	limit := queryInt(r, "limit", 20, 1, 100)

	var total int64
	if err := database.DB.Model(&models.PointsHistory{}).
		Where("user_id = ?", uid).Count(&total).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load history")
		return
	}

	var entries []models.PointsHistory
	if err := database.DB.Where("user_id = ?", uid).
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&entries).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to load history")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data: map[string]interface{}{
			"entries": entries,
			"total":   total,
			"page":    page,
			"limit":   limit,
		},
	})
}
