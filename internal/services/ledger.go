package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/culturequiz/backend/internal/observability"
	"github.com/culturequiz/backend/internal/platform/apierr"
	"github.com/culturequiz/backend/internal/platform/logger"
	"github.com/culturequiz/backend/internal/repos"
)

// Score deltas per domain event.
const (
	ScoreQuestionAccepted = 10
	ScoreBestAnswer       = 40
	ScoreHumanVote        = 10
	ScoreReferralBonus    = 50
)

// GrantOutcome is the tagged result of an achievement grant attempt. The
// unique constraint on reached_achievements is the source of truth: a
// duplicate-key violation means the achievement was already granted and is
// reported as AlreadyGranted, never as an error.
type GrantOutcome int

const (
	// GrantNotMatched: no achievement row matches the criterion.
	GrantNotMatched GrantOutcome = iota
	Granted
	AlreadyGranted
)

func (o GrantOutcome) String() string {
	switch o {
	case Granted:
		return "granted"
	case AlreadyGranted:
		return "already_granted"
	default:
		return "not_matched"
	}
}

// LedgerService mutates scores and grants achievements. Both operations are
// always invoked inside the transaction of the domain write that motivated
// them; the tx argument is therefore mandatory, not a nil-fallback.
type LedgerService interface {
	ApplyScoreDelta(ctx context.Context, tx *gorm.DB, userID int64, delta int) error
	// TryGrant matches (achievementType, criterion) against the achievement
	// table and records the grant idempotently.
	TryGrant(ctx context.Context, tx *gorm.DB, userID int64, achievementType string, criterion int) (GrantOutcome, error)
}

type ledgerService struct {
	log          *logger.Logger
	users        repos.UserRepo
	achievements repos.AchievementRepo
	metrics      *observability.Metrics
}

func NewLedgerService(log *logger.Logger, users repos.UserRepo, achievements repos.AchievementRepo, metrics *observability.Metrics) LedgerService {
	return &ledgerService{
		log:          log.With("service", "LedgerService"),
		users:        users,
		achievements: achievements,
		metrics:      metrics,
	}
}

func (s *ledgerService) ApplyScoreDelta(ctx context.Context, tx *gorm.DB, userID int64, delta int) error {
	if err := s.users.AddScore(ctx, tx, userID, delta); err != nil {
		return apierr.Persistence("score_update_failed", err)
	}
	return nil
}

func (s *ledgerService) TryGrant(ctx context.Context, tx *gorm.DB, userID int64, achievementType string, criterion int) (GrantOutcome, error) {
	achievement, err := s.achievements.Match(ctx, tx, achievementType, criterion)
	if err != nil {
		return GrantNotMatched, apierr.Persistence("achievement_lookup_failed", err)
	}
	if achievement == nil {
		return GrantNotMatched, nil
	}

	err = s.achievements.InsertReached(ctx, tx, userID, achievement.ID)
	switch {
	case err == nil:
		s.metrics.AchievementGrants.WithLabelValues(Granted.String()).Inc()
		s.log.Info("Achievement granted",
			"user_id", userID,
			"achievement_type", achievementType,
			"threshold", achievement.Threshold,
		)
		return Granted, nil
	case apierr.IsDuplicateKey(err):
		// Re-entrant path: the grant already happened, silently keep it.
		s.metrics.AchievementGrants.WithLabelValues(AlreadyGranted.String()).Inc()
		return AlreadyGranted, nil
	default:
		s.metrics.AchievementGrants.WithLabelValues("failed").Inc()
		return GrantNotMatched, apierr.Persistence("achievement_grant_failed", err)
	}
}
