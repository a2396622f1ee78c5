package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/culturequiz/backend/internal/http/middleware"
	"github.com/culturequiz/backend/internal/http/response"
	"github.com/culturequiz/backend/internal/services"
)

type UserHandler struct {
	users services.UserService
}

func NewUserHandler(users services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// GET /api/profile
func (h *UserHandler) Profile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	profile, err := h.users.Profile(c.Request.Context(), userID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, profile)
}

// GET /api/leaderboard
func (h *UserHandler) Leaderboard(c *gin.Context) {
	entries, err := h.users.Leaderboard(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"leaderboard": entries})
}

type passwordRequest struct {
	NewPass string `json:"newpass"`
}

// POST /api/password
func (h *UserHandler) ResetPassword(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.users.ResetPassword(c.Request.Context(), userID, req.NewPass); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": "ok"})
}
