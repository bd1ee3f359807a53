package handler

import (
	"net/http"

	"FileVault/internal/dto"
	"FileVault/utils"

	"github.com/gin-gonic/gin"
)

// Login exchanges form credentials for a bearer token.
func (h *Handler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "Incorrect username or password")
		return
	}
	token, err := h.Users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	user, err := h.Users.Register(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewUserView(user))
}
