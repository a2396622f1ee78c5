package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/culturequiz/backend/internal/jobs/generation"
	"github.com/culturequiz/backend/internal/observability"
	"github.com/culturequiz/backend/internal/platform/aiproxy"
	"github.com/culturequiz/backend/internal/platform/apierr"
	"github.com/culturequiz/backend/internal/platform/logger"
	"github.com/culturequiz/backend/internal/repos"
	"github.com/culturequiz/backend/internal/types"
)

// User-facing submission messages. Rejections travel in the message field so
// the UI can keep the compose form open; they are not HTTP failures.
const (
	MsgQuestionAdded      = "Question added successfully"
	MsgQuestionDuplicate  = "Someone already asked this question, and we try to keep them as varied as possible! Ask another one!"
	MsgQuestionIncoherent = "The AI does not consider the question coherent with the chosen theme"
)

// minAnswersForValidation gates the updates feed: a question enters the
// validation queue once this many answers accumulated.
const minAnswersForValidation = 4

type AskResult struct {
	Message   string                   `json:"message"`
	Questions []repos.AuthoredQuestion `json:"questions"`
	Themes    []string                 `json:"themes"`
}

type GenerationStatus struct {
	QuestionID int64  `json:"question_id"`
	State      string `json:"state"`
	Answers    int64  `json:"answers"`
}

type QuestionService interface {
	// Ask runs the acceptance pipeline for a submitted question: coherence
	// check, transactional insert with score and achievement side effects,
	// then detached dispatch of the answer generation job.
	Ask(ctx context.Context, userID int64, themeName, text string) (*AskResult, error)
	// Overview returns the ask-page data without submitting anything.
	Overview(ctx context.Context, userID int64, themeName string) (*AskResult, error)
	// Status reports how far the background answer generation got.
	Status(ctx context.Context, questionID int64) (*GenerationStatus, error)
	// NewlyAnswered lists the caller's questions ready for validation.
	NewlyAnswered(ctx context.Context, userID int64) ([]int64, error)
}

type questionService struct {
	db         *gorm.DB
	log        *logger.Logger
	ai         aiproxy.Client
	dispatcher *generation.Dispatcher
	questions  repos.QuestionRepo
	answers    repos.AnswerRepo
	themes     repos.ThemeRepo
	users      repos.UserRepo
	ledger     LedgerService
	metrics    *observability.Metrics
}

func NewQuestionService(
	db *gorm.DB,
	log *logger.Logger,
	ai aiproxy.Client,
	dispatcher *generation.Dispatcher,
	questions repos.QuestionRepo,
	answers repos.AnswerRepo,
	themes repos.ThemeRepo,
	users repos.UserRepo,
	ledger LedgerService,
	metrics *observability.Metrics,
) QuestionService {
	return &questionService{
		db:         db,
		log:        log.With("service", "QuestionService"),
		ai:         ai,
		dispatcher: dispatcher,
		questions:  questions,
		answers:    answers,
		themes:     themes,
		users:      users,
		ledger:     ledger,
		metrics:    metrics,
	}
}

func (s *questionService) Ask(ctx context.Context, userID int64, themeName, text string) (*AskResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apierr.Validation("empty_question", fmt.Errorf("question must not be empty"))
	}

	coherent, err := s.ai.EvaluateCoherence(ctx, text, themeName)
	if err != nil {
		s.metrics.AICalls.WithLabelValues("coherence", "error").Inc()
		return nil, err
	}
	s.metrics.AICalls.WithLabelValues("coherence", "ok").Inc()

	message := MsgQuestionAdded
	if !coherent {
		message = MsgQuestionIncoherent
		return s.buildAskResult(ctx, userID, themeName, message)
	}

	question, err := s.acceptQuestion(ctx, userID, themeName, text)
	switch {
	case err == nil:
		// Detached dispatch: the request does not wait for, and cannot
		// observe, the generation outcome.
		if dispatchErr := s.dispatcher.Dispatch(question.ID, question.Payload); dispatchErr != nil {
			s.log.Warn("Generation dispatch rejected, question stays pending",
				"question_id", question.ID, "error", dispatchErr)
		}
	case apierr.KindOf(err) == apierr.KindDuplicateKey:
		message = MsgQuestionDuplicate
	default:
		return nil, err
	}

	return s.buildAskResult(ctx, userID, themeName, message)
}

func (s *questionService) Overview(ctx context.Context, userID int64, themeName string) (*AskResult, error) {
	return s.buildAskResult(ctx, userID, themeName, "")
}

// acceptQuestion performs the accept transaction: insert, author score +10,
// questions_asked and points achievement checks. All or nothing.
func (s *questionService) acceptQuestion(ctx context.Context, userID int64, themeName, text string) (*types.Question, error) {
	var question *types.Question
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		theme, err := s.themes.GetByName(ctx, tx, themeName)
		if err != nil {
			return err
		}
		if theme == nil {
			return apierr.Validation("unknown_theme", fmt.Errorf("theme %q does not exist", themeName))
		}

		question, err = s.questions.Create(ctx, tx, &types.Question{
			Payload:         types.TruncateQuestion(text),
			ThemeID:         theme.ID,
			Author:          userID,
			GenerationState: types.GenerationPending,
		})
		if err != nil {
			return err
		}

		if err := s.ledger.ApplyScoreDelta(ctx, tx, userID, ScoreQuestionAccepted); err != nil {
			return err
		}

		asked, err := s.questions.CountByAuthor(ctx, tx, userID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.TryGrant(ctx, tx, userID, types.AchievementQuestionsAsked, int(asked)); err != nil {
			return err
		}

		user, err := s.users.GetByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user != nil {
			if _, err := s.ledger.TryGrant(ctx, tx, userID, types.AchievementPoints, user.Score); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if apierr.IsDuplicateKey(err) {
			s.log.Info("Duplicate question rejected", "user_id", userID)
			return nil, &apierr.Error{Status: 200, Code: "duplicate_question", Kind: apierr.KindDuplicateKey, Err: err}
		}
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, apierr.Persistence("question_insert_failed", err)
	}
	return question, nil
}

func (s *questionService) buildAskResult(ctx context.Context, userID int64, usedTheme, message string) (*AskResult, error) {
	authored, err := s.questions.ListByAuthor(ctx, nil, userID)
	if err != nil {
		return nil, apierr.Persistence("question_list_failed", err)
	}
	names, err := s.themes.ListNames(ctx, nil)
	if err != nil {
		return nil, apierr.Persistence("theme_list_failed", err)
	}
	// The just-used theme is withheld so two consecutive questions never
	// share a theme.
	themes := make([]string, 0, len(names))
	for _, name := range names {
		if name != usedTheme {
			themes = append(themes, name)
		}
	}
	return &AskResult{Message: message, Questions: authored, Themes: themes}, nil
}

func (s *questionService) Status(ctx context.Context, questionID int64) (*GenerationStatus, error) {
	question, err := s.questions.GetByID(ctx, nil, questionID)
	if err != nil {
		return nil, apierr.Persistence("question_lookup_failed", err)
	}
	if question == nil {
		return nil, apierr.New(404, "question_not_found", fmt.Errorf("question %d does not exist", questionID))
	}
	count, err := s.answers.CountByQuestion(ctx, nil, questionID)
	if err != nil {
		return nil, apierr.Persistence("answer_count_failed", err)
	}
	return &GenerationStatus{QuestionID: questionID, State: question.GenerationState, Answers: count}, nil
}

func (s *questionService) NewlyAnswered(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := s.questions.AnsweredUnchecked(ctx, nil, userID, minAnswersForValidation)
	if err != nil {
		return nil, apierr.Persistence("updates_query_failed", err)
	}
	return ids, nil
}
