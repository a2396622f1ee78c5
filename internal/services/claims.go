package services

import (
	"context"
	"math/rand/v2"

	"gorm.io/gorm"

	"github.com/culturequiz/backend/internal/observability"
	"github.com/culturequiz/backend/internal/platform/apierr"
	"github.com/culturequiz/backend/internal/platform/logger"
	"github.com/culturequiz/backend/internal/repos"
)

// Bounded fan-out for candidate selection. Oldest-first with a small limit
// keeps one hot question from dominating the pick while still draining the
// backlog in order.
const claimCandidateLimit = 10

// claimRounds bounds re-selection when every candidate of a batch is claimed
// by rivals between the read and the conditional write.
const claimRounds = 3

// Sentinel returned when no question is claimable.
const (
	SentinelQuestionID    = int64(0)
	SentinelQuestionText  = "No further questions to answer, go ask some new ones!"
	SentinelQuestionTheme = "placeholder"
)

// ClaimService assigns the next question a user should answer. The claim is
// the is_answering marker: advisory, exclusive, revocable, at most one per
// user system-wide.
type ClaimService interface {
	// SelectNext picks uniformly at random among up to 10 eligible
	// questions and transfers the caller's claim to it. The transfer is a
	// single conditional update guarded by is_answering=0; losing the race
	// against a rival claimer drops the candidate and re-selects instead of
	// overwriting. With nothing claimable the caller's stale claim is
	// cleared and the sentinel question is returned.
	SelectNext(ctx context.Context, userID int64, excludedTheme string, excludedQuestionID int64) (repos.QuestionCandidate, error)
	// Release clears every claim held by the user (logout path).
	Release(ctx context.Context, userID int64) error
}

type claimService struct {
	db        *gorm.DB
	log       *logger.Logger
	questions repos.QuestionRepo
	metrics   *observability.Metrics
}

func NewClaimService(db *gorm.DB, log *logger.Logger, questions repos.QuestionRepo, metrics *observability.Metrics) ClaimService {
	return &claimService{
		db:        db,
		log:       log.With("service", "ClaimService"),
		questions: questions,
		metrics:   metrics,
	}
}

func sentinelQuestion() repos.QuestionCandidate {
	return repos.QuestionCandidate{
		ID:      SentinelQuestionID,
		Payload: SentinelQuestionText,
		Theme:   SentinelQuestionTheme,
	}
}

func (s *claimService) SelectNext(ctx context.Context, userID int64, excludedTheme string, excludedQuestionID int64) (repos.QuestionCandidate, error) {
	for round := 0; round < claimRounds; round++ {
		candidates, err := s.questions.Candidates(ctx, nil, userID, excludedTheme, excludedQuestionID, claimCandidateLimit)
		if err != nil {
			return repos.QuestionCandidate{}, apierr.Persistence("candidate_query_failed", err)
		}
		if len(candidates) == 0 {
			break
		}

		for len(candidates) > 0 {
			i := rand.IntN(len(candidates))
			pick := candidates[i]

			claimed, err := s.claim(ctx, userID, pick.ID)
			if err != nil {
				return repos.QuestionCandidate{}, err
			}
			if claimed {
				s.metrics.ClaimSelections.WithLabelValues("claimed").Inc()
				return pick, nil
			}
			// A rival claimed it between the read and the write. Benign:
			// drop the candidate and try another.
			s.metrics.ClaimSelections.WithLabelValues("race_lost").Inc()
			s.log.Debug("Claim race lost, re-selecting", "question_id", pick.ID, "user_id", userID)
			candidates = append(candidates[:i], candidates[i+1:]...)
		}
	}

	if err := s.Release(ctx, userID); err != nil {
		return repos.QuestionCandidate{}, err
	}
	s.metrics.ClaimSelections.WithLabelValues("none_available").Inc()
	return sentinelQuestion(), nil
}

// claim clears the user's previous claim and takes the new one in a single
// transaction, so the at-most-one-claim invariant holds on every exit path.
func (s *claimService) claim(ctx context.Context, userID, questionID int64) (bool, error) {
	var claimed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.questions.ClearClaims(ctx, tx, userID); err != nil {
			return err
		}
		ok, err := s.questions.Claim(ctx, tx, questionID, userID)
		if err != nil {
			return err
		}
		claimed = ok
		return nil
	})
	if err != nil {
		return false, apierr.Persistence("claim_failed", err)
	}
	return claimed, nil
}

func (s *claimService) Release(ctx context.Context, userID int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.questions.ClearClaims(ctx, tx, userID)
	})
	if err != nil {
		return apierr.Persistence("claim_release_failed", err)
	}
	return nil
}
