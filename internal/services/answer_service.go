package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"gorm.io/gorm"

	"github.com/culturequiz/backend/internal/observability"
	"github.com/culturequiz/backend/internal/platform/apierr"
	"github.com/culturequiz/backend/internal/platform/logger"
	"github.com/culturequiz/backend/internal/repos"
	"github.com/culturequiz/backend/internal/types"
)

const (
	MsgAnswerAdded  = "Answer added successfully"
	MsgVoteRecorded = "Thanks for taking part, bye bye"
	MsgPickBest     = "Pick the answer that seems best to you"
	MsgPickHuman    = "Pick the answer you believe a human wrote"
)

type AnswerResult struct {
	Message string                  `json:"message"`
	Next    repos.QuestionCandidate `json:"next"`
}

type ValidationView struct {
	Message    string             `json:"message"`
	Question   string             `json:"question"`
	QuestionID int64              `json:"question_id"`
	Answers    []repos.AnswerView `json:"answers"`
	Checked    bool               `json:"checked"`
	BestAnswer string             `json:"best_answer"`
}

type AnswerService interface {
	// Submit stores a human answer, marks the question answered and runs
	// the answers_given achievement check in one transaction, then hands
	// the caller their next question through the claim selector.
	Submit(ctx context.Context, userID, questionID int64, text, theme string) (*AnswerResult, error)
	// Next skips submission and only advances the claim selector.
	Next(ctx context.Context, userID, questionID int64, theme string) (*AnswerResult, error)
	// Validation returns a question with its answers shuffled, so neither
	// best-answer picks nor human votes inherit an ordering bias.
	Validation(ctx context.Context, questionID int64) (*ValidationView, error)
	// ChooseBest marks the question checked and the answer best, rewards
	// the answer's author and runs the questions_validated check for the
	// question's author, all in one transaction.
	ChooseBest(ctx context.Context, questionID, answerID int64) (*ValidationView, error)
	// RecordHumanVote rewards a correct human-or-AI guess.
	RecordHumanVote(ctx context.Context, userID int64, guessedHuman bool) (string, error)
}

type answerService struct {
	db        *gorm.DB
	log       *logger.Logger
	questions repos.QuestionRepo
	answers   repos.AnswerRepo
	users     repos.UserRepo
	ledger    LedgerService
	claims    ClaimService
	metrics   *observability.Metrics
}

func NewAnswerService(
	db *gorm.DB,
	log *logger.Logger,
	questions repos.QuestionRepo,
	answers repos.AnswerRepo,
	users repos.UserRepo,
	ledger LedgerService,
	claims ClaimService,
	metrics *observability.Metrics,
) AnswerService {
	return &answerService{
		db:        db,
		log:       log.With("service", "AnswerService"),
		questions: questions,
		answers:   answers,
		users:     users,
		ledger:    ledger,
		claims:    claims,
		metrics:   metrics,
	}
}

func (s *answerService) Submit(ctx context.Context, userID, questionID int64, text, theme string) (*AnswerResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apierr.Validation("empty_answer", fmt.Errorf("answer must not be empty"))
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.answers.Create(ctx, tx, &types.Answer{
			Payload:  types.TruncateAnswer(text),
			Question: questionID,
			Author:   userID,
		}); err != nil {
			return err
		}
		if err := s.questions.MarkAnswered(ctx, tx, questionID); err != nil {
			return err
		}
		given, err := s.answers.CountByAuthor(ctx, tx, userID)
		if err != nil {
			return err
		}
		_, err = s.ledger.TryGrant(ctx, tx, userID, types.AchievementAnswersGiven, int(given))
		return err
	})
	if err != nil {
		return nil, apierr.Persistence("answer_insert_failed", err)
	}

	return s.withNext(ctx, userID, questionID, theme, MsgAnswerAdded)
}

func (s *answerService) Next(ctx context.Context, userID, questionID int64, theme string) (*AnswerResult, error) {
	return s.withNext(ctx, userID, questionID, theme, "")
}

func (s *answerService) withNext(ctx context.Context, userID, questionID int64, theme, message string) (*AnswerResult, error) {
	next, err := s.claims.SelectNext(ctx, userID, theme, questionID)
	if err != nil {
		return nil, err
	}
	return &AnswerResult{Message: message, Next: next}, nil
}

func (s *answerService) Validation(ctx context.Context, questionID int64) (*ValidationView, error) {
	question, err := s.questions.GetByID(ctx, nil, questionID)
	if err != nil {
		return nil, apierr.Persistence("question_lookup_failed", err)
	}
	if question == nil {
		return nil, apierr.New(404, "question_not_found", fmt.Errorf("question %d does not exist", questionID))
	}
	answers, err := s.answers.ListByQuestion(ctx, nil, questionID)
	if err != nil {
		return nil, apierr.Persistence("answer_list_failed", err)
	}
	best, err := s.answers.BestPayload(ctx, nil, questionID)
	if err != nil {
		return nil, apierr.Persistence("best_lookup_failed", err)
	}

	rand.Shuffle(len(answers), func(i, j int) {
		answers[i], answers[j] = answers[j], answers[i]
	})

	return &ValidationView{
		Message:    MsgPickBest,
		Question:   question.Payload,
		QuestionID: question.ID,
		Answers:    answers,
		Checked:    question.Checked,
		BestAnswer: best,
	}, nil
}

func (s *answerService) ChooseBest(ctx context.Context, questionID, answerID int64) (*ValidationView, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		question, err := s.questions.GetByID(ctx, tx, questionID)
		if err != nil {
			return err
		}
		if question == nil {
			return apierr.New(404, "question_not_found", fmt.Errorf("question %d does not exist", questionID))
		}
		answer, err := s.answers.GetByID(ctx, tx, answerID)
		if err != nil {
			return err
		}
		if answer == nil || answer.Question != questionID {
			return apierr.Validation("answer_mismatch", fmt.Errorf("answer %d does not belong to question %d", answerID, questionID))
		}

		if err := s.questions.MarkChecked(ctx, tx, questionID); err != nil {
			return err
		}
		if err := s.answers.MarkBest(ctx, tx, answerID); err != nil {
			return err
		}
		if err := s.ledger.ApplyScoreDelta(ctx, tx, answer.Author, ScoreBestAnswer); err != nil {
			return err
		}

		validated, err := s.questions.CountValidatedByAuthor(ctx, tx, question.Author)
		if err != nil {
			return err
		}
		_, err = s.ledger.TryGrant(ctx, tx, question.Author, types.AchievementQuestionsValidated, int(validated))
		return err
	})
	if err != nil {
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, apierr.Persistence("best_selection_failed", err)
	}

	view, err := s.Validation(ctx, questionID)
	if err != nil {
		return nil, err
	}
	view.Message = MsgPickHuman
	view.BestAnswer = ""
	return view, nil
}

func (s *answerService) RecordHumanVote(ctx context.Context, userID int64, guessedHuman bool) (string, error) {
	if !guessedHuman {
		return MsgVoteRecorded, nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.ApplyScoreDelta(ctx, tx, userID, ScoreHumanVote); err != nil {
			return err
		}
		user, err := s.users.GetByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return nil
		}
		_, err = s.ledger.TryGrant(ctx, tx, userID, types.AchievementPoints, user.Score)
		return err
	})
	if err != nil {
		return "", apierr.Persistence("vote_score_failed", err)
	}
	return MsgVoteRecorded, nil
}
