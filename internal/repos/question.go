package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/culturequiz/backend/internal/platform/logger"
	"github.com/culturequiz/backend/internal/types"
)

// QuestionCandidate is the claim-selector projection: a question joined with
// its theme name.
type QuestionCandidate struct {
	ID      int64  `json:"id"`
	Payload string `json:"payload"`
	Theme   string `json:"theme"`
}

// AuthoredQuestion is the question-list projection shown to an author.
type AuthoredQuestion struct {
	ID       int64  `json:"id"`
	Payload  string `json:"payload"`
	Theme    string `json:"theme"`
	Answered bool   `json:"answered"`
	Checked  bool   `json:"checked"`
}

type QuestionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, question *types.Question) (*types.Question, error)
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Question, error)
	// GetByPayload resolves a question id from its text. The generation
	// worker only knows the text it was dispatched with, not the row.
	GetByPayload(ctx context.Context, tx *gorm.DB, payload string) (*types.Question, error)
	ListByAuthor(ctx context.Context, tx *gorm.DB, author int64) ([]AuthoredQuestion, error)
	// Candidates returns up to limit claimable questions for userID, oldest
	// first: not authored by the user, unclaimed, unanswered, and outside
	// the excluded theme and question id.
	Candidates(ctx context.Context, tx *gorm.DB, userID int64, excludedTheme string, excludedQuestionID int64, limit int) ([]QuestionCandidate, error)
	// ClearClaims releases every claim held by userID.
	ClearClaims(ctx context.Context, tx *gorm.DB, userID int64) error
	// Claim atomically transfers the claim on questionID to userID, guarded
	// by is_answering=0. Returns false without error when a rival claimed
	// the row first.
	Claim(ctx context.Context, tx *gorm.DB, questionID, userID int64) (bool, error)
	MarkAnswered(ctx context.Context, tx *gorm.DB, questionID int64) error
	MarkChecked(ctx context.Context, tx *gorm.DB, questionID int64) error
	SetGenerationState(ctx context.Context, tx *gorm.DB, questionID int64, state string) error
	CountByAuthor(ctx context.Context, tx *gorm.DB, author int64) (int64, error)
	CountValidatedByAuthor(ctx context.Context, tx *gorm.DB, author int64) (int64, error)
	// AnsweredUnchecked lists the author's questions that are answered, not
	// yet validated, and have accumulated at least minAnswers answers.
	AnsweredUnchecked(ctx context.Context, tx *gorm.DB, author int64, minAnswers int) ([]int64, error)
}

type questionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionRepo(db *gorm.DB, baseLog *logger.Logger) QuestionRepo {
	return &questionRepo{db: db, log: baseLog.With("repo", "QuestionRepo")}
}

func (r *questionRepo) Create(ctx context.Context, tx *gorm.DB, question *types.Question) (*types.Question, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(question).Error; err != nil {
		return nil, err
	}
	return question, nil
}

func (r *questionRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Question, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var question types.Question
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&question).Error
	if err != nil {
		return nil, err
	}
	if question.ID == 0 {
		return nil, nil
	}
	return &question, nil
}

func (r *questionRepo) GetByPayload(ctx context.Context, tx *gorm.DB, payload string) (*types.Question, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var question types.Question
	err := transaction.WithContext(ctx).
		Where("payload = ?", payload).
		Limit(1).
		Find(&question).Error
	if err != nil {
		return nil, err
	}
	if question.ID == 0 {
		return nil, nil
	}
	return &question, nil
}

func (r *questionRepo) ListByAuthor(ctx context.Context, tx *gorm.DB, author int64) ([]AuthoredQuestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []AuthoredQuestion
	err := transaction.WithContext(ctx).
		Table("questions").
		Select("questions.id, questions.payload, themes.theme, questions.answered, questions.checked").
		Joins("JOIN themes ON themes.id = questions.theme_id").
		Where("questions.author = ?", author).
		Order("questions.id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *questionRepo) Candidates(ctx context.Context, tx *gorm.DB, userID int64, excludedTheme string, excludedQuestionID int64, limit int) ([]QuestionCandidate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []QuestionCandidate
	err := transaction.WithContext(ctx).
		Table("questions").
		Select("questions.id, questions.payload, themes.theme").
		Joins("JOIN themes ON themes.id = questions.theme_id").
		Where("questions.author <> ?", userID).
		Where("questions.is_answering = 0").
		Where("questions.answered = ?", false).
		Where("themes.theme <> ?", excludedTheme).
		Where("questions.id <> ?", excludedQuestionID).
		Order("questions.id ASC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *questionRepo) ClearClaims(ctx context.Context, tx *gorm.DB, userID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Question{}).
		Where("is_answering = ?", userID).
		Update("is_answering", 0).Error
}

func (r *questionRepo) Claim(ctx context.Context, tx *gorm.DB, questionID, userID int64) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Question{}).
		Where("id = ? AND is_answering = 0", questionID).
		Update("is_answering", userID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *questionRepo) MarkAnswered(ctx context.Context, tx *gorm.DB, questionID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Question{}).
		Where("id = ?", questionID).
		Update("answered", true).Error
}

func (r *questionRepo) MarkChecked(ctx context.Context, tx *gorm.DB, questionID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Question{}).
		Where("id = ?", questionID).
		Update("checked", true).Error
}

func (r *questionRepo) SetGenerationState(ctx context.Context, tx *gorm.DB, questionID int64, state string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Question{}).
		Where("id = ?", questionID).
		Update("generation_state", state).Error
}

func (r *questionRepo) CountByAuthor(ctx context.Context, tx *gorm.DB, author int64) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.Question{}).
		Where("author = ?", author).
		Count(&count).Error
	return count, err
}

func (r *questionRepo) CountValidatedByAuthor(ctx context.Context, tx *gorm.DB, author int64) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.Question{}).
		Where("author = ? AND checked = ?", author, true).
		Count(&count).Error
	return count, err
}

func (r *questionRepo) AnsweredUnchecked(ctx context.Context, tx *gorm.DB, author int64, minAnswers int) ([]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []int64
	err := transaction.WithContext(ctx).
		Table("questions").
		Select("questions.id").
		Joins("JOIN answers ON questions.id = answers.question").
		Where("questions.author = ? AND questions.answered = ? AND questions.checked = ?", author, true, false).
		Group("questions.id").
		Having("COUNT(answers.id) >= ?", minAnswers).
		Pluck("questions.id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
