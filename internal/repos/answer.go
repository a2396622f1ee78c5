package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/culturequiz/backend/internal/platform/logger"
	"github.com/culturequiz/backend/internal/types"
)

// AnswerView hides the best flag and timestamps from voters.
type AnswerView struct {
	ID      int64  `json:"id"`
	Payload string `json:"payload"`
	Author  int64  `json:"author"`
}

type AnswerRepo interface {
	Create(ctx context.Context, tx *gorm.DB, answer *types.Answer) (*types.Answer, error)
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Answer, error)
	ListByQuestion(ctx context.Context, tx *gorm.DB, questionID int64) ([]AnswerView, error)
	// MarkBest flags the answer as the question's best one.
	MarkBest(ctx context.Context, tx *gorm.DB, answerID int64) error
	BestPayload(ctx context.Context, tx *gorm.DB, questionID int64) (string, error)
	CountByAuthor(ctx context.Context, tx *gorm.DB, author int64) (int64, error)
	CountByQuestion(ctx context.Context, tx *gorm.DB, questionID int64) (int64, error)
}

type answerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnswerRepo(db *gorm.DB, baseLog *logger.Logger) AnswerRepo {
	return &answerRepo{db: db, log: baseLog.With("repo", "AnswerRepo")}
}

func (r *answerRepo) Create(ctx context.Context, tx *gorm.DB, answer *types.Answer) (*types.Answer, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(answer).Error; err != nil {
		return nil, err
	}
	return answer, nil
}

func (r *answerRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Answer, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var answer types.Answer
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&answer).Error
	if err != nil {
		return nil, err
	}
	if answer.ID == 0 {
		return nil, nil
	}
	return &answer, nil
}

func (r *answerRepo) ListByQuestion(ctx context.Context, tx *gorm.DB, questionID int64) ([]AnswerView, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []AnswerView
	err := transaction.WithContext(ctx).
		Model(&types.Answer{}).
		Select("id, payload, author").
		Where("question = ?", questionID).
		Order("id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *answerRepo) MarkBest(ctx context.Context, tx *gorm.DB, answerID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Answer{}).
		Where("id = ?", answerID).
		Update("best", true).Error
}

func (r *answerRepo) BestPayload(ctx context.Context, tx *gorm.DB, questionID int64) (string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var payloads []string
	err := transaction.WithContext(ctx).
		Model(&types.Answer{}).
		Where("question = ? AND best = ?", questionID, true).
		Limit(1).
		Pluck("payload", &payloads).Error
	if err != nil {
		return "", err
	}
	if len(payloads) == 0 {
		return "", nil
	}
	return payloads[0], nil
}

func (r *answerRepo) CountByAuthor(ctx context.Context, tx *gorm.DB, author int64) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.Answer{}).
		Where("author = ?", author).
		Count(&count).Error
	return count, err
}

func (r *answerRepo) CountByQuestion(ctx context.Context, tx *gorm.DB, questionID int64) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.Answer{}).
		Where("question = ?", questionID).
		Count(&count).Error
	return count, err
}
