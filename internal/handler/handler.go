package handler

import (
	"errors"
	"net/http"

	"FileVault/internal/service"
	"FileVault/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler holds the services behind the HTTP routes.
type Handler struct {
	Vault          *service.VaultService
	Users          *service.UserService
	MaxUploadBytes int64
	Log            *zap.Logger
}

func New(vault *service.VaultService, users *service.UserService, maxUploadBytes int64, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Vault: vault, Users: users, MaxUploadBytes: maxUploadBytes, Log: log}
}

// fail converts a service error into its response.
func (h *Handler) fail(c *gin.Context, err error) {
	var verr *service.ValidationError
	var serr *service.StorageError
	switch {
	case errors.Is(err, service.ErrNotFound):
		utils.Error(c, http.StatusNotFound, "File not found")
	case errors.Is(err, service.ErrQuotaExceeded):
		utils.Error(c, http.StatusBadRequest, "Upload limit exceeded")
	case errors.Is(err, service.ErrNotWhitelisted):
		utils.Error(c, http.StatusBadRequest, "User not whitelisted")
	case errors.Is(err, service.ErrInvalidCredentials):
		utils.Error(c, http.StatusBadRequest, "Incorrect username or password")
	case errors.Is(err, service.ErrUserExists):
		utils.Error(c, http.StatusBadRequest, "Username already registered")
	case errors.Is(err, service.ErrUserLimitReached):
		utils.Error(c, http.StatusBadRequest, "User limit reached")
	case errors.Is(err, service.ErrBusy):
		utils.Error(c, http.StatusServiceUnavailable, "Service busy, try again")
	case errors.As(err, &verr):
		utils.Error(c, http.StatusBadRequest, verr.Msg)
	case errors.As(err, &serr):
		h.Log.Error("storage failure", zap.String("op", serr.Op), zap.String("path", c.FullPath()), zap.Error(serr.Err))
		utils.Error(c, http.StatusInternalServerError, "storage error")
	default:
		h.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "internal error")
	}
}
