package types

import "time"

// AIUserID is the reserved author id for machine-generated answers. The row
// is seeded at migration time and is excluded from login and the leaderboard.
const AIUserID int64 = -1

type User struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"uniqueIndex;not null;column:username" json:"username"`
	Password   string    `gorm:"not null;column:password" json:"-"`
	Score      int       `gorm:"not null;default:0;column:score" json:"score"`
	FriendCode string    `gorm:"uniqueIndex;not null;column:friend_code" json:"friend_code"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
