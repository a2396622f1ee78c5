package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/culturequiz/backend/internal/http/middleware"
	"github.com/culturequiz/backend/internal/http/response"
	"github.com/culturequiz/backend/internal/services"
)

type AnswerHandler struct {
	answers services.AnswerService
}

func NewAnswerHandler(answers services.AnswerService) *AnswerHandler {
	return &AnswerHandler{answers: answers}
}

type answerRequest struct {
	Answer     string `json:"answer"`
	QuestionID int64  `json:"question_id"`
	Theme      string `json:"theme"`
	// Overview only advances the claim selector without submitting.
	Overview bool `json:"overview"`
}

// POST /api/answers
func (h *AnswerHandler) Submit(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	var (
		result *services.AnswerResult
		err    error
	)
	if req.Overview {
		result, err = h.answers.Next(c.Request.Context(), userID, req.QuestionID, req.Theme)
	} else {
		result, err = h.answers.Submit(c.Request.Context(), userID, req.QuestionID, req.Answer, req.Theme)
	}
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// POST /api/questions/:id/validation
func (h *AnswerHandler) Validation(c *gin.Context) {
	questionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_question_id", err)
		return
	}
	view, err := h.answers.Validation(c.Request.Context(), questionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, view)
}

type bestRequest struct {
	AnswerID int64 `json:"answer_id"`
}

// POST /api/questions/:id/best
func (h *AnswerHandler) ChooseBest(c *gin.Context) {
	questionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_question_id", err)
		return
	}
	var req bestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	view, err := h.answers.ChooseBest(c.Request.Context(), questionID, req.AnswerID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, view)
}

type humanVoteRequest struct {
	Human bool `json:"human"`
}

// POST /api/votes/human
func (h *AnswerHandler) HumanVote(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req humanVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	message, err := h.answers.RecordHumanVote(c.Request.Context(), userID, req.Human)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": message})
}
