package users

import (
	"fmt"
	"log"
	"net/http"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/middleware"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"

	"gorm.io/gorm"
)

type RechargeRequest struct {
	Amount int64  `json:"amount" validate:"required"`
	Method string `json:"method" validate:"required"`
}

// POST /api/users/me/recharge
//
// Credits points onto the caller's balance and logs the ledger entry in the
// same transaction, same as a settlement does.
func RechargeHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}
	var req RechargeRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	if req.Amount <= 0 {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Amount must be positive")
		return
	}
	if req.Method != "wechat" && req.Method != "alipay" {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Unsupported payment method")
		return
	}

	var balance int64
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := database.LockForUpdate(tx).First(&user, uid).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", uid).
			Update("points", gorm.Expr("points + ?", req.Amount)).Error; err != nil {
			return err
		}
		entry := models.PointsHistory{
			UserID:      uid,
			Amount:      req.Amount,
			Type:        models.PointsTypeRecharge,
			Description: fmt.Sprintf("Recharge via %s", req.Method),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		balance = user.Points + req.Amount
		return nil
	})
	if err != nil {
		log.Printf("[recharge] user %d recharge failed: %v", uid, err)
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to recharge")
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Recharge completed",
		Data: map[string]interface{}{
			"amount":  req.Amount,
			"balance": balance,
		},
	})
}
