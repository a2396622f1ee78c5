package services

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/culturequiz/backend/internal/platform/logger"
	"github.com/culturequiz/backend/internal/repos"
	"github.com/culturequiz/backend/internal/types"
)

func newClaimFixture(t *testing.T) (*gorm.DB, ClaimService) {
	t.Helper()
	gdb := newTestDB(t)
	questions := repos.NewQuestionRepo(gdb, logger.NewNop())
	return gdb, NewClaimService(gdb, logger.NewNop(), questions, newTestMetrics())
}

func claimedBy(t *testing.T, gdb *gorm.DB, userID int64) []int64 {
	t.Helper()
	var ids []int64
	if err := gdb.Model(&types.Question{}).Where("is_answering = ?", userID).Pluck("id", &ids).Error; err != nil {
		t.Fatalf("list claims: %v", err)
	}
	return ids
}

func TestSelectNextClaimsExactlyOne(t *testing.T) {
	gdb, claims := newClaimFixture(t)
	asker := createUser(t, gdb, "asker", "1111-1111-1111")
	claimer := createUser(t, gdb, "claimer", "2222-2222-2222")
	createQuestion(t, gdb, asker.ID, "Storia", "Chi era Napoleone?")
	createQuestion(t, gdb, asker.ID, "Scienza", "Cosa studia la biologia?")
	createQuestion(t, gdb, asker.ID, "Arte", "Chi ha dipinto la Gioconda?")

	next, err := claims.SelectNext(context.Background(), claimer.ID, "", 0)
	if err != nil {
		t.Fatalf("SelectNext: %v", err)
	}
	if next.ID == SentinelQuestionID {
		t.Fatal("expected a real question, got the sentinel")
	}

	held := claimedBy(t, gdb, claimer.ID)
	if len(held) != 1 {
		t.Fatalf("expected exactly one claim, got %d", len(held))
	}
	if held[0] != next.ID {
		t.Fatalf("claim on question %d, selector returned %d", held[0], next.ID)
	}
}

func TestSelectNextTransfersClaim(t *testing.T) {
	gdb, claims := newClaimFixture(t)
	asker := createUser(t, gdb, "asker", "1111-1111-1111")
	claimer := createUser(t, gdb, "claimer", "2222-2222-2222")
	previous := createQuestion(t, gdb, asker.ID, "Storia", "Chi era Napoleone?")
	createQuestion(t, gdb, asker.ID, "Scienza", "Cosa studia la biologia?")

	if err := gdb.Model(&types.Question{}).Where("id = ?", previous.ID).Update("is_answering", claimer.ID).Error; err != nil {
		t.Fatalf("seed claim: %v", err)
	}

	// Excluding the previously claimed question forces a transfer.
	next, err := claims.SelectNext(context.Background(), claimer.ID, "Storia", previous.ID)
	if err != nil {
		t.Fatalf("SelectNext: %v", err)
	}
	if next.ID == previous.ID {
		t.Fatal("selector returned the excluded question")
	}

	held := claimedBy(t, gdb, claimer.ID)
	if len(held) != 1 || held[0] != next.ID {
		t.Fatalf("expected claim to move to %d, holds %v", next.ID, held)
	}
}

func TestSelectNextSentinelWhenNothingClaimable(t *testing.T) {
	gdb, claims := newClaimFixture(t)
	asker := createUser(t, gdb, "asker", "1111-1111-1111")
	claimer := createUser(t, gdb, "claimer", "2222-2222-2222")
	stale := createQuestion(t, gdb, asker.ID, "Storia", "Chi era Napoleone?")

	// The only question is already claimed by the caller: no candidate
	// remains and the stale claim must be released.
	if err := gdb.Model(&types.Question{}).Where("id = ?", stale.ID).Update("is_answering", claimer.ID).Error; err != nil {
		t.Fatalf("seed claim: %v", err)
	}

	next, err := claims.SelectNext(context.Background(), claimer.ID, "Geografia", 42)
	if err != nil {
		t.Fatalf("SelectNext: %v", err)
	}
	if next.ID != SentinelQuestionID || next.Payload != SentinelQuestionText || next.Theme != SentinelQuestionTheme {
		t.Fatalf("expected sentinel, got %+v", next)
	}
	if held := claimedBy(t, gdb, claimer.ID); len(held) != 0 {
		t.Fatalf("stale claim not released: %v", held)
	}
}

func TestSelectNextSkipsRivalClaims(t *testing.T) {
	gdb, claims := newClaimFixture(t)
	asker := createUser(t, gdb, "asker", "1111-1111-1111")
	claimer := createUser(t, gdb, "claimer", "2222-2222-2222")
	rival := createUser(t, gdb, "rival", "3333-3333-3333")
	taken := createQuestion(t, gdb, asker.ID, "Storia", "Chi era Napoleone?")
	free := createQuestion(t, gdb, asker.ID, "Scienza", "Cosa studia la biologia?")

	if err := gdb.Model(&types.Question{}).Where("id = ?", taken.ID).Update("is_answering", rival.ID).Error; err != nil {
		t.Fatalf("seed rival claim: %v", err)
	}

	next, err := claims.SelectNext(context.Background(), claimer.ID, "", 0)
	if err != nil {
		t.Fatalf("SelectNext: %v", err)
	}
	if next.ID != free.ID {
		t.Fatalf("expected unclaimed question %d, got %d", free.ID, next.ID)
	}
	if held := claimedBy(t, gdb, rival.ID); len(held) != 1 || held[0] != taken.ID {
		t.Fatalf("rival claim disturbed: %v", held)
	}
}

func TestSelectNextExcludesOwnAndAnswered(t *testing.T) {
	gdb, claims := newClaimFixture(t)
	asker := createUser(t, gdb, "asker", "1111-1111-1111")
	claimer := createUser(t, gdb, "claimer", "2222-2222-2222")
	createQuestion(t, gdb, claimer.ID, "Storia", "La mia domanda")
	answered := createQuestion(t, gdb, asker.ID, "Scienza", "Cosa studia la biologia?")
	if err := gdb.Model(&types.Question{}).Where("id = ?", answered.ID).Update("answered", true).Error; err != nil {
		t.Fatalf("mark answered: %v", err)
	}

	next, err := claims.SelectNext(context.Background(), claimer.ID, "", 0)
	if err != nil {
		t.Fatalf("SelectNext: %v", err)
	}
	if next.ID != SentinelQuestionID {
		t.Fatalf("expected sentinel, got question %d", next.ID)
	}
}

func TestConditionalClaimLosesGracefully(t *testing.T) {
	gdb, _ := newClaimFixture(t)
	questions := repos.NewQuestionRepo(gdb, logger.NewNop())
	asker := createUser(t, gdb, "asker", "1111-1111-1111")
	question := createQuestion(t, gdb, asker.ID, "Storia", "Chi era Napoleone?")

	ok, err := questions.Claim(context.Background(), nil, question.ID, 7)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	ok, err = questions.Claim(context.Background(), nil, question.ID, 8)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Fatal("second claimer must lose the conditional update")
	}

	var row types.Question
	if err := gdb.First(&row, question.ID).Error; err != nil {
		t.Fatalf("reload question: %v", err)
	}
	if row.IsAnswering != 7 {
		t.Fatalf("claim overwritten: holder=%d", row.IsAnswering)
	}
}

func TestReleaseClearsAllClaims(t *testing.T) {
	gdb, claims := newClaimFixture(t)
	asker := createUser(t, gdb, "asker", "1111-1111-1111")
	claimer := createUser(t, gdb, "claimer", "2222-2222-2222")
	q1 := createQuestion(t, gdb, asker.ID, "Storia", "Chi era Napoleone?")
	q2 := createQuestion(t, gdb, asker.ID, "Scienza", "Cosa studia la biologia?")
	for _, id := range []int64{q1.ID, q2.ID} {
		if err := gdb.Model(&types.Question{}).Where("id = ?", id).Update("is_answering", claimer.ID).Error; err != nil {
			t.Fatalf("seed claim: %v", err)
		}
	}

	if err := claims.Release(context.Background(), claimer.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if held := claimedBy(t, gdb, claimer.ID); len(held) != 0 {
		t.Fatalf("claims survived release: %v", held)
	}
}
