package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/culturequiz/backend/internal/platform/logger"
	"github.com/culturequiz/backend/internal/types"
)

type LeaderboardEntry struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

type UserRepo interface {
	Create(ctx context.Context, tx *gorm.DB, user *types.User) (*types.User, error)
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.User, error)
	GetByUsername(ctx context.Context, tx *gorm.DB, username string) (*types.User, error)
	GetByFriendCode(ctx context.Context, tx *gorm.DB, code string) (*types.User, error)
	// AddScore applies a relative delta inside the caller's transaction.
	// Scores are never read-modify-written in application code.
	AddScore(ctx context.Context, tx *gorm.DB, userID int64, delta int) error
	UpdatePassword(ctx context.Context, tx *gorm.DB, userID int64, hashed string) error
	Leaderboard(ctx context.Context, tx *gorm.DB) ([]LeaderboardEntry, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) Create(ctx context.Context, tx *gorm.DB, user *types.User) (*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var user types.User
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 && id != 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, tx *gorm.DB, username string) (*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var user types.User
	err := transaction.WithContext(ctx).
		Where("username = ?", username).
		Limit(1).
		Find(&user).Error
	if err != nil {
		return nil, err
	}
	if user.Username == "" {
		return nil, nil
	}
	return &user, nil
}

func (r *userRepo) GetByFriendCode(ctx context.Context, tx *gorm.DB, code string) (*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if code == "" {
		return nil, nil
	}
	var user types.User
	err := transaction.WithContext(ctx).
		Where("friend_code = ?", code).
		Limit(1).
		Find(&user).Error
	if err != nil {
		return nil, err
	}
	if user.Username == "" {
		return nil, nil
	}
	return &user, nil
}

func (r *userRepo) AddScore(ctx context.Context, tx *gorm.DB, userID int64, delta int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		Update("score", gorm.Expr("score + ?", delta)).Error
}

func (r *userRepo) UpdatePassword(ctx context.Context, tx *gorm.DB, userID int64, hashed string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		Update("password", hashed).Error
}

func (r *userRepo) Leaderboard(ctx context.Context, tx *gorm.DB) ([]LeaderboardEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var entries []LeaderboardEntry
	// The AI identity would be an unfair baseline, keep it off the board.
	err := transaction.WithContext(ctx).
		Model(&types.User{}).
		Select("username, score").
		Where("id <> ?", types.AIUserID).
		Order("score DESC").
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
