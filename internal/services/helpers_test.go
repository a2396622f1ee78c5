package services

import (
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/culturequiz/backend/internal/db"
	"github.com/culturequiz/backend/internal/observability"
	"github.com/culturequiz/backend/internal/platform/logger"
	"github.com/culturequiz/backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.NewSQLite(filepath.Join(t.TempDir(), "quiz.db"), logger.NewNop())
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	return gdb
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

func createUser(t *testing.T, gdb *gorm.DB, username, friendCode string) *types.User {
	t.Helper()
	user := &types.User{Username: username, Password: "hashed", FriendCode: friendCode}
	if err := gdb.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func themeID(t *testing.T, gdb *gorm.DB, name string) int64 {
	t.Helper()
	var theme types.Theme
	if err := gdb.Where("theme = ?", name).First(&theme).Error; err != nil {
		t.Fatalf("lookup theme %s: %v", name, err)
	}
	return theme.ID
}

func createQuestion(t *testing.T, gdb *gorm.DB, author int64, theme, payload string) *types.Question {
	t.Helper()
	question := &types.Question{
		Payload:         payload,
		ThemeID:         themeID(t, gdb, theme),
		Author:          author,
		GenerationState: types.GenerationPending,
	}
	if err := gdb.Create(question).Error; err != nil {
		t.Fatalf("create question %q: %v", payload, err)
	}
	return question
}

func createAnswer(t *testing.T, gdb *gorm.DB, questionID, author int64, payload string) *types.Answer {
	t.Helper()
	answer := &types.Answer{Payload: payload, Question: questionID, Author: author}
	if err := gdb.Create(answer).Error; err != nil {
		t.Fatalf("create answer %q: %v", payload, err)
	}
	return answer
}

func userScore(t *testing.T, gdb *gorm.DB, userID int64) int {
	t.Helper()
	var user types.User
	if err := gdb.Where("id = ?", userID).First(&user).Error; err != nil {
		t.Fatalf("lookup user %d: %v", userID, err)
	}
	return user.Score
}

func reachedCount(t *testing.T, gdb *gorm.DB, userID int64) int64 {
	t.Helper()
	var count int64
	if err := gdb.Model(&types.ReachedAchievement{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count reached achievements: %v", err)
	}
	return count
}
