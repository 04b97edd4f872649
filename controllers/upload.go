package controllers

import (
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Dr-xiaoming/tasks/utils"

	"github.com/google/uuid"
)

const maxUploadBytes = 5 << 20

var allowedUploadExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".pdf":  true,
	".txt":  true,
	".zip":  true,
}

// POST /api/upload
//
// Accepts a single multipart file, stores it in R2 under a random key and
// returns a time-limited signed URL.
func UploadHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "File too large or malformed upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "Missing file field")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedUploadExt[ext] {
		utils.WriteError(w, http.StatusBadRequest, utils.CodeInvalidInput, "File type not allowed")
		return
	}

	objectName := fmt.Sprintf("attachments/%d/%s%s", uid, uuid.NewString(), ext)
	if err := utils.UploadAttachment(objectName, file); err != nil {
		log.Printf("[upload] user %d upload failed: %v", uid, err)
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to store file")
		return
	}

	signedURL, err := utils.GenerateSignedURL(objectName, 24*3600)
	if err != nil {
		log.Printf("[upload] signed url for %s failed: %v", objectName, err)
		utils.WriteError(w, http.StatusInternalServerError, utils.CodeServerError, "Failed to generate URL")
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "Uploaded",
		Data: map[string]interface{}{
			"object_name": objectName,
			"url":         signedURL,
		},
	})
}
