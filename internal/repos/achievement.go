package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/culturequiz/backend/internal/platform/logger"
	"github.com/culturequiz/backend/internal/types"
)

type AchievementRepo interface {
	// Match finds the achievement row a criterion value satisfies. Most
	// types match the threshold exactly; points achievements match when the
	// criterion falls within [threshold, threshold+band], since scores move
	// in uneven jumps.
	Match(ctx context.Context, tx *gorm.DB, achievementType string, criterion int) (*types.Achievement, error)
	// InsertReached records a grant. The unique constraint on the
	// (user, achievement) pair stays the source of truth; a conflicting
	// insert surfaces as gorm.ErrDuplicatedKey without aborting the
	// caller's transaction.
	InsertReached(ctx context.Context, tx *gorm.DB, userID, achievementID int64) error
	ListReachedByUser(ctx context.Context, tx *gorm.DB, userID int64) ([]types.Achievement, error)
}

type achievementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAchievementRepo(db *gorm.DB, baseLog *logger.Logger) AchievementRepo {
	return &achievementRepo{db: db, log: baseLog.With("repo", "AchievementRepo")}
}

func (r *achievementRepo) Match(ctx context.Context, tx *gorm.DB, achievementType string, criterion int) (*types.Achievement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Where("type = ?", achievementType)
	if achievementType == types.AchievementPoints {
		q = q.Where("? BETWEEN threshold AND threshold + ?", criterion, types.PointsBandWidth)
	} else {
		q = q.Where("threshold = ?", criterion)
	}
	var achievement types.Achievement
	err := q.Order("threshold DESC").Limit(1).Find(&achievement).Error
	if err != nil {
		return nil, err
	}
	if achievement.ID == 0 {
		return nil, nil
	}
	return &achievement, nil
}

func (r *achievementRepo) InsertReached(ctx context.Context, tx *gorm.DB, userID, achievementID int64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	reached := types.ReachedAchievement{UserID: userID, AchievementID: achievementID}
	// ON CONFLICT DO NOTHING keeps the enclosing transaction healthy on the
	// duplicate path; zero affected rows means the pair already exists.
	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
			DoNothing: true,
		}).
		Create(&reached)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrDuplicatedKey
	}
	return nil
}

func (r *achievementRepo) ListReachedByUser(ctx context.Context, tx *gorm.DB, userID int64) ([]types.Achievement, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []types.Achievement
	err := transaction.WithContext(ctx).
		Table("achievements").
		Select("achievements.id, achievements.type, achievements.threshold, achievements.title").
		Joins("JOIN reached_achievements ON reached_achievements.achievement_id = achievements.id").
		Where("reached_achievements.user_id = ?", userID).
		Order("reached_achievements.created_at ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
