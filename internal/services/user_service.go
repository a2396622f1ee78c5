package services

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/culturequiz/backend/internal/platform/apierr"
	"github.com/culturequiz/backend/internal/platform/logger"
	"github.com/culturequiz/backend/internal/repos"
	"github.com/culturequiz/backend/internal/types"
)

type Profile struct {
	Username     string              `json:"username"`
	Score        int                 `json:"score"`
	FriendCode   string              `json:"friend_code"`
	Questions    int64               `json:"questions"`
	Answers      int64               `json:"answers"`
	Achievements []types.Achievement `json:"achievements"`
}

type UserService interface {
	Profile(ctx context.Context, userID int64) (*Profile, error)
	Leaderboard(ctx context.Context) ([]repos.LeaderboardEntry, error)
	ResetPassword(ctx context.Context, userID int64, newPassword string) error
}

type userService struct {
	db           *gorm.DB
	log          *logger.Logger
	users        repos.UserRepo
	questions    repos.QuestionRepo
	answers      repos.AnswerRepo
	achievements repos.AchievementRepo
}

func NewUserService(db *gorm.DB, log *logger.Logger, users repos.UserRepo, questions repos.QuestionRepo, answers repos.AnswerRepo, achievements repos.AchievementRepo) UserService {
	return &userService{
		db:           db,
		log:          log.With("service", "UserService"),
		users:        users,
		questions:    questions,
		answers:      answers,
		achievements: achievements,
	}
}

func (s *userService) Profile(ctx context.Context, userID int64) (*Profile, error) {
	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, apierr.Persistence("user_lookup_failed", err)
	}
	if user == nil {
		return nil, apierr.New(404, "user_not_found", fmt.Errorf("user %d does not exist", userID))
	}
	asked, err := s.questions.CountByAuthor(ctx, nil, userID)
	if err != nil {
		return nil, apierr.Persistence("question_count_failed", err)
	}
	given, err := s.answers.CountByAuthor(ctx, nil, userID)
	if err != nil {
		return nil, apierr.Persistence("answer_count_failed", err)
	}
	reached, err := s.achievements.ListReachedByUser(ctx, nil, userID)
	if err != nil {
		return nil, apierr.Persistence("achievement_list_failed", err)
	}
	return &Profile{
		Username:     user.Username,
		Score:        user.Score,
		FriendCode:   user.FriendCode,
		Questions:    asked,
		Answers:      given,
		Achievements: reached,
	}, nil
}

func (s *userService) Leaderboard(ctx context.Context) ([]repos.LeaderboardEntry, error) {
	entries, err := s.users.Leaderboard(ctx, nil)
	if err != nil {
		return nil, apierr.Persistence("leaderboard_failed", err)
	}
	return entries, nil
}

func (s *userService) ResetPassword(ctx context.Context, userID int64, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return apierr.Validation("empty_password", fmt.Errorf("password must not be empty"))
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apierr.New(500, "password_hash_failed", err)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.users.UpdatePassword(ctx, tx, userID, string(hashed))
	})
	if err != nil {
		return apierr.Persistence("password_update_failed", err)
	}
	return nil
}
