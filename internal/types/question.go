package types

import "time"

// Generation states for the background answer pipeline. A question starts
// pending, becomes done when all tiers persisted an answer, partial otherwise.
const (
	GenerationPending = "pending"
	GenerationPartial = "partial"
	GenerationDone    = "done"
)

// QuestionMaxLen is the storage limit for question payloads.
const QuestionMaxLen = 255

// TruncateQuestion enforces QuestionMaxLen on rune boundaries.
func TruncateQuestion(payload string) string {
	runes := []rune(payload)
	if len(runes) <= QuestionMaxLen {
		return payload
	}
	return string(runes[:QuestionMaxLen])
}

type Question struct {
	ID      int64  `gorm:"primaryKey" json:"id"`
	Payload string `gorm:"uniqueIndex;not null;size:255;column:payload" json:"payload"`
	ThemeID int64  `gorm:"not null;index;column:theme_id" json:"theme_id"`
	Author  int64  `gorm:"not null;index;column:author" json:"author"`
	// IsAnswering holds the id of the user currently claiming the question,
	// 0 when unclaimed. Advisory claim, not ownership.
	IsAnswering     int64     `gorm:"not null;default:0;index;column:is_answering" json:"is_answering"`
	Answered        bool      `gorm:"not null;default:false;column:answered" json:"answered"`
	Checked         bool      `gorm:"not null;default:false;column:checked" json:"checked"`
	GenerationState string    `gorm:"not null;default:pending;column:generation_state" json:"generation_state"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}
