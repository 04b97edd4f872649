package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Dr-xiaoming/tasks/database"
	"github.com/Dr-xiaoming/tasks/models"
	"github.com/Dr-xiaoming/tasks/utils"
)

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutHandler revokes a specific refresh token and the access token jti from the Authorization header
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Invalid JSON body")
		return
	}
	if req.RefreshToken == "" {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "refresh_token is required")
		return
	}

	revokeAccessJTI(r)

	if database.DB == nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Server error")
		return
	}
	// Row not found still reports success to avoid token enumeration.
	_ = database.DB.Model(&models.RefreshToken{}).Where("id = ?", req.RefreshToken).Update("revoked", true).Error
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Logged out"})
}

// LogoutAllHandler revokes every refresh token belonging to the caller.
func LogoutAllHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}
	revokeAccessJTI(r)
	if err := database.DB.Model(&models.RefreshToken{}).Where("user_id = ? AND revoked = ?", uid, false).Update("revoked", true).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Server error")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Logged out everywhere"})
}

// revokeAccessJTI best-effort revokes the presented access token for the
// remainder of its lifetime.
func revokeAccessJTI(r *http.Request) {
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
		return
	}
	tokenStr := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	claims, err := utils.ValidateAccessToken(tokenStr)
	if err != nil {
		return
	}
	jtiRaw, ok := claims["jti"].(string)
	if !ok || jtiRaw == "" {
		return
	}
	ttl := time.Duration(0)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ttl = time.Until(exp.Time)
	}
	if ttl < 0 {
		ttl = 0
	}
	_ = utils.RevokeJTI(jtiRaw, ttl)
}
