package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vaultwatch/riskpulse/internal/dto"
	"github.com/vaultwatch/riskpulse/internal/service"
	"github.com/vaultwatch/riskpulse/pkg/response"
)

type AuthHandler struct {
	service service.AuthService
}

func NewAuthHandler(svc service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input dto.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, err)
		return
	}

	resp, err := h.service.Login(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
