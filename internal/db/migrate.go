package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/culturequiz/backend/internal/types"
)

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&types.User{},
		&types.Theme{},
		&types.Question{},
		&types.Answer{},
		&types.Achievement{},
		&types.ReachedAchievement{},
	)
}

var seedThemes = []string{
	"Storia", "Geografia", "Scienza", "Arte", "Letteratura", "Musica", "Sport", "Cinema",
}

var seedAchievements = []types.Achievement{
	{Type: types.AchievementQuestionsAsked, Threshold: 1, Title: "Prima domanda"},
	{Type: types.AchievementQuestionsAsked, Threshold: 10, Title: "Curioso"},
	{Type: types.AchievementQuestionsAsked, Threshold: 50, Title: "Inquisitore"},
	{Type: types.AchievementAnswersGiven, Threshold: 1, Title: "Prima risposta"},
	{Type: types.AchievementAnswersGiven, Threshold: 10, Title: "Tuttologo"},
	{Type: types.AchievementAnswersGiven, Threshold: 50, Title: "Enciclopedia"},
	{Type: types.AchievementQuestionsValidated, Threshold: 1, Title: "Prima convalida"},
	{Type: types.AchievementQuestionsValidated, Threshold: 12, Title: "Giudice"},
	{Type: types.AchievementPoints, Threshold: 100, Title: "Centurione"},
	{Type: types.AchievementPoints, Threshold: 500, Title: "Veterano"},
	{Type: types.AchievementPoints, Threshold: 1000, Title: "Leggenda"},
	{Type: types.AchievementFriendCode, Threshold: 1, Title: "Amico invitato"},
}

// Seed installs the static reference rows: themes, achievements and the AI
// identity. Idempotent, safe to run on every start.
func Seed(gdb *gorm.DB) error {
	for _, theme := range seedThemes {
		row := types.Theme{Theme: theme}
		if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
	}
	for _, a := range seedAchievements {
		row := a
		var existing types.Achievement
		err := gdb.Where("type = ? AND threshold = ?", row.Type, row.Threshold).Limit(1).Find(&existing).Error
		if err != nil {
			return err
		}
		if existing.ID != 0 {
			continue
		}
		if err := gdb.Create(&row).Error; err != nil {
			return err
		}
	}
	ai := types.User{ID: types.AIUserID, Username: "IA", Password: "!", FriendCode: "0000-0000-0000"}
	if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&ai).Error; err != nil {
		return err
	}
	return nil
}
