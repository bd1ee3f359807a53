package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"FileVault/internal/dto"
	"FileVault/utils"

	"github.com/gin-gonic/gin"
)

// multipartSlack covers the form overhead around the file part.
const multipartSlack = 1 << 20

// UploadFile stores a multipart file with optional comma separated tags.
func (h *Handler) UploadFile(c *gin.Context) {
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+multipartSlack)
	}
	var req dto.UploadFileRequest
	if err := c.ShouldBind(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.Error(c, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		utils.Error(c, http.StatusBadRequest, "missing file")
		return
	}
	if req.File.Filename == "" {
		utils.Error(c, http.StatusBadRequest, "missing filename")
		return
	}
	if h.MaxUploadBytes > 0 && req.File.Size > h.MaxUploadBytes {
		utils.Error(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	f, err := req.File.Open()
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "unreadable file")
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "unreadable file")
		return
	}

	view, err := h.Vault.Upload(c.Request.Context(), utils.CurrentUserID(c), req.File.Filename, content, req.Tags)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetOriginal streams the file bytes back.
func (h *Handler) GetOriginal(c *gin.Context) {
	var req dto.OriginalRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "missing filename")
		return
	}
	dl, err := h.Vault.GetOriginal(c.Request.Context(), utils.CurrentUserID(c), req.Filename)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"; filename*=UTF-8''%s`,
		utils.SanitizeHeaderFilename(dl.FileName), url.PathEscape(dl.FileName)))
	c.Data(http.StatusOK, dl.ContentType, dl.Data)
}

// GetMetadata answers null when the caller has no such file.
func (h *Handler) GetMetadata(c *gin.Context) {
	view, err := h.Vault.GetMetadata(c.Request.Context(), utils.CurrentUserID(c), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if view == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) ListFiles(c *gin.Context) {
	views, err := h.Vault.ListFiles(c.Request.Context(), utils.CurrentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) SearchFiles(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "tag is required")
		return
	}
	views, err := h.Vault.SearchByTag(c.Request.Context(), utils.CurrentUserID(c), req.Tag)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) UpdateTags(c *gin.Context) {
	var req dto.UpdateTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid tags payload")
		return
	}
	view, err := h.Vault.UpdateTags(c.Request.Context(), utils.CurrentUserID(c), c.Param("name"), req.Tags)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Tags updated successfully", Record: *view})
}

func (h *Handler) DeleteFile(c *gin.Context) {
	view, err := h.Vault.Delete(c.Request.Context(), utils.CurrentUserID(c), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "File deleted successfully", Record: *view})
}
