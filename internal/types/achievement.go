package types

import "time"

// Achievement type tags. Static reference rows seeded at migration.
const (
	AchievementQuestionsAsked     = "questions_asked"
	AchievementPoints             = "points"
	AchievementAnswersGiven       = "answers_given"
	AchievementQuestionsValidated = "questions_validated"
	AchievementFriendCode         = "friend_code"
)

// PointsBandWidth widens point achievements to a checkpoint band: a points
// achievement matches when the score falls in [threshold, threshold+50],
// because scores advance in non-uniform increments and can jump over an
// exact threshold.
const PointsBandWidth = 50

type Achievement struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	Type      string `gorm:"not null;index;column:type" json:"type"`
	Threshold int    `gorm:"not null;column:threshold" json:"threshold"`
	Title     string `gorm:"not null;column:title" json:"title"`
}

func (Achievement) TableName() string {
	return "achievements"
}

// ReachedAchievement records a grant. The unique index on
// (user_id, achievement_id) is the idempotency mechanism for award logic:
// a second grant attempt violates it and is treated as already granted.
type ReachedAchievement struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	UserID        int64     `gorm:"not null;uniqueIndex:idx_reached_user_achievement;column:user_id" json:"user_id"`
	AchievementID int64     `gorm:"not null;uniqueIndex:idx_reached_user_achievement;column:achievement_id" json:"achievement_id"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}

func (ReachedAchievement) TableName() string {
	return "reached_achievements"
}
