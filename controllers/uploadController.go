package controllers

import (
	"errors"
	"io"
	"net/http"

	"civicsync/blob"
	"civicsync/models"

	"github.com/gin-gonic/gin"
)

// UploadController stores issue media and application documents and returns
// the URL to reference them by.
type UploadController struct {
	Blobs blob.Store
}

func (uc *UploadController) UploadMedia(c *gin.Context) {
	uc.upload(c, "issues")
}

func (uc *UploadController) UploadDocument(c *gin.Context) {
	uc.upload(c, "applications")
}

func (uc *UploadController) upload(c *gin.Context, folder string) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, blob.MaxUploadSize+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, models.Validationf("file exceeds %d bytes", blob.MaxUploadSize))
			return
		}
		respondError(c, models.Validationf("file is required"))
		return
	}
	if fh.Size > blob.MaxUploadSize {
		respondError(c, models.Validationf("file exceeds %d bytes", blob.MaxUploadSize))
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if !blob.Allowed(contentType) {
		respondError(c, models.Validationf("unsupported content type %q", contentType))
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, models.Validationf("unreadable upload"))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, models.Validationf("unreadable upload"))
		return
	}

	url, err := uc.Blobs.Put(c.Request.Context(), folder, data, contentType)
	if err != nil {
		respondError(c, models.Upstream("store upload", err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}
