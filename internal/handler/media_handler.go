package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-admin/internal/response"
	"github.com/stemsi/exstem-admin/internal/service"
)

type mediaService interface {
	SaveUpload(src io.Reader, declaredSize int64, purpose service.MediaPurpose) (*service.MediaUpload, error)
}

type MediaHandler struct {
	media mediaService
}

func NewMediaHandler(media mediaService) *MediaHandler {
	return &MediaHandler{media: media}
}

// UploadMedia godoc
// POST /api/v1/admin/media/upload  (multipart: file, purpose=question|logo)
// Responds 201 with the stored image's URL, type, size and dimensions.
func (h *MediaHandler) UploadMedia(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	purpose := service.MediaPurpose(c.DefaultPostForm("purpose", string(service.MediaQuestion)))
	upload, err := h.media.SaveUpload(file, header.Size, purpose)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, upload)
}
