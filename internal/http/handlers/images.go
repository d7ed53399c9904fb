package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"safarifleet.com/app/internal/http/middleware"
	"safarifleet.com/app/internal/http/render"
	"safarifleet.com/app/internal/modules/images"
	"safarifleet.com/app/internal/shared/apperr"
)

const maxImageSize = 10 << 20 // 10 MiB

var allowedImageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

type ImageHandler struct {
	Images *images.Service
}

func NewImageHandler(svc *images.Service) *ImageHandler {
	return &ImageHandler{Images: svc}
}

// GET /vehicles/:id/images
func (h *ImageHandler) List(c *gin.Context) {
	list, err := h.Images.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]imageDTO, 0, len(list))
	for _, img := range list {
		out = append(out, toImageDTO(img))
	}
	render.OK(c, http.StatusOK, "", out)
}

// POST /admin/vehicles/:id/images takes a multipart form, field "file",
// optional "primary=true".
func (h *ImageHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		middleware.Fail(c, apperr.InvalidErr("Validation failed.", map[string]string{"file": "An image file is required."}))
		return
	}
	if fh.Size > maxImageSize {
		middleware.Fail(c, apperr.InvalidErr("Image too large (max 10 MiB).", nil))
		return
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	contentType, ok := allowedImageTypes[ext]
	if !ok {
		middleware.Fail(c, apperr.InvalidErr("Validation failed.", map[string]string{"file": "Only jpg, png and webp images are accepted."}))
		return
	}

	f, err := fh.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()

	img, err := h.Images.Upload(c.Request.Context(), f, images.UploadInput{
		VehicleID:   c.Param("id"),
		Filename:    fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		Primary:     c.PostForm("primary") == "true",
	})
	if err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusCreated, "image uploaded", toImageDTO(img))
}

// DELETE /admin/images/:id
func (h *ImageHandler) Delete(c *gin.Context) {
	if err := h.Images.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	render.OK(c, http.StatusOK, "image deleted", nil)
}
