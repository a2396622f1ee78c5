package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/culturequiz/backend/internal/http/middleware"
	"github.com/culturequiz/backend/internal/http/response"
	"github.com/culturequiz/backend/internal/services"
)

type QuestionHandler struct {
	questions services.QuestionService
}

func NewQuestionHandler(questions services.QuestionService) *QuestionHandler {
	return &QuestionHandler{questions: questions}
}

type askRequest struct {
	Question string `json:"question"`
	Theme    string `json:"theme"`
	// Overview skips submission and only refreshes the ask-page data; the
	// frontend sends it when a tab is (re)opened.
	Overview bool `json:"overview"`
}

// POST /api/questions
func (h *QuestionHandler) Ask(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	var (
		result *services.AskResult
		err    error
	)
	if req.Overview {
		result, err = h.questions.Overview(c.Request.Context(), userID, req.Theme)
	} else {
		result, err = h.questions.Ask(c.Request.Context(), userID, req.Theme, req.Question)
	}
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// GET /api/questions/:id/generation
func (h *QuestionHandler) GenerationStatus(c *gin.Context) {
	questionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_question_id", err)
		return
	}
	status, err := h.questions.Status(c.Request.Context(), questionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, status)
}

// GET /api/questions/updates
func (h *QuestionHandler) Updates(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	ids, err := h.questions.NewlyAnswered(c.Request.Context(), userID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"new_answers": ids})
}
