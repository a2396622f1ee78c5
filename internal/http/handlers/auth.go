package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/culturequiz/backend/internal/http/middleware"
	"github.com/culturequiz/backend/internal/http/response"
	"github.com/culturequiz/backend/internal/services"
)

type AuthHandler struct {
	auth         services.AuthService
	cookieMaxAge int
	cookieSecure bool
}

func NewAuthHandler(auth services.AuthService, cookieMaxAge int, cookieSecure bool) *AuthHandler {
	return &AuthHandler{auth: auth, cookieMaxAge: cookieMaxAge, cookieSecure: cookieSecure}
}

type registerRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RepeatPass string `json:"repeatpass"`
	FriendCode string `json:"friend_code"`
}

// POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	message, err := h.auth.Register(c.Request.Context(), req.Username, req.Password, req.RepeatPass, req.FriendCode)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": message})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	session, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("session_token", session.Token, h.cookieMaxAge, "/", "", h.cookieSecure, true)
	response.RespondOK(c, gin.H{"username": session.Username, "id": session.UserID})
}

// POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if err := h.auth.Logout(c.Request.Context(), userID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.SetCookie("session_token", "", -1, "/", "", h.cookieSecure, true)
	response.RespondOK(c, gin.H{"message": "Logged out successfully"})
}
