package types

import "time"

// AnswerMaxLen is the canonical storage limit for answer payloads, applied
// to both human and machine answers before insert.
const AnswerMaxLen = 511

// TruncateAnswer enforces AnswerMaxLen on rune boundaries.
func TruncateAnswer(payload string) string {
	runes := []rune(payload)
	if len(runes) <= AnswerMaxLen {
		return payload
	}
	return string(runes[:AnswerMaxLen])
}

type Answer struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Payload  string `gorm:"not null;size:511;column:payload" json:"payload"`
	Question int64  `gorm:"not null;index;column:question" json:"question"`
	Author   int64  `gorm:"not null;index;column:author" json:"author"`
	// Best is set by the validation flow; at most one per question.
	Best      bool      `gorm:"not null;default:false;column:best" json:"best"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Answer) TableName() string {
	return "answers"
}
