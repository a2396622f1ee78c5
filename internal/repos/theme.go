package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/culturequiz/backend/internal/platform/logger"
	"github.com/culturequiz/backend/internal/types"
)

type ThemeRepo interface {
	GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Theme, error)
	ListNames(ctx context.Context, tx *gorm.DB) ([]string, error)
}

type themeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewThemeRepo(db *gorm.DB, baseLog *logger.Logger) ThemeRepo {
	return &themeRepo{db: db, log: baseLog.With("repo", "ThemeRepo")}
}

func (r *themeRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Theme, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var theme types.Theme
	err := transaction.WithContext(ctx).
		Where("theme = ?", name).
		Limit(1).
		Find(&theme).Error
	if err != nil {
		return nil, err
	}
	if theme.ID == 0 {
		return nil, nil
	}
	return &theme, nil
}

func (r *themeRepo) ListNames(ctx context.Context, tx *gorm.DB) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var names []string
	if err := transaction.WithContext(ctx).
		Model(&types.Theme{}).
		Order("id ASC").
		Pluck("theme", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}
