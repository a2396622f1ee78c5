package services

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/culturequiz/backend/internal/platform/apierr"
	"github.com/culturequiz/backend/internal/platform/logger"
	"github.com/culturequiz/backend/internal/repos"
	"github.com/culturequiz/backend/internal/types"
)

func newAnswerFixture(t *testing.T) (*gorm.DB, AnswerService) {
	t.Helper()
	gdb := newTestDB(t)
	log := logger.NewNop()
	metrics := newTestMetrics()
	users := repos.NewUserRepo(gdb, log)
	questions := repos.NewQuestionRepo(gdb, log)
	answers := repos.NewAnswerRepo(gdb, log)
	achievements := repos.NewAchievementRepo(gdb, log)
	ledger := NewLedgerService(log, users, achievements, metrics)
	claims := NewClaimService(gdb, log, questions, metrics)
	service := NewAnswerService(gdb, log, questions, answers, users, ledger, claims, metrics)
	return gdb, service
}

func TestSubmitStoresAnswerAndAdvances(t *testing.T) {
	gdb, service := newAnswerFixture(t)
	asker := createUser(t, gdb, "alice", "1111-1111-1111")
	responder := createUser(t, gdb, "bob", "2222-2222-2222")
	question := createQuestion(t, gdb, asker.ID, "Storia", "Chi era Napoleone?")
	next := createQuestion(t, gdb, asker.ID, "Scienza", "Cosa studia la biologia?")

	result, err := service.Submit(context.Background(), responder.ID, question.ID, "Un generale corso", "Storia")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Message != MsgAnswerAdded {
		t.Fatalf("message: got %q, want %q", result.Message, MsgAnswerAdded)
	}
	if result.Next.ID != next.ID {
		t.Fatalf("next question: got %d, want %d", result.Next.ID, next.ID)
	}

	var answer types.Answer
	if err := gdb.Where("question = ? AND author = ?", question.ID, responder.ID).First(&answer).Error; err != nil {
		t.Fatalf("answer not persisted: %v", err)
	}
	var reloaded types.Question
	if err := gdb.First(&reloaded, question.ID).Error; err != nil {
		t.Fatalf("reload question: %v", err)
	}
	if !reloaded.Answered {
		t.Fatal("question must be marked answered")
	}
	// First answer grants the threshold-1 answers_given achievement.
	if count := reachedCount(t, gdb, responder.ID); count != 1 {
		t.Fatalf("achievements: got %d, want 1", count)
	}
}

func TestSubmitRejectsEmptyAnswer(t *testing.T) {
	gdb, service := newAnswerFixture(t)
	asker := createUser(t, gdb, "alice", "1111-1111-1111")
	responder := createUser(t, gdb, "bob", "2222-2222-2222")
	question := createQuestion(t, gdb, asker.ID, "Storia", "Chi era Napoleone?")

	_, err := service.Submit(context.Background(), responder.ID, question.ID, "  ", "Storia")
	if apierr.KindOf(err) != apierr.KindValidation {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestValidationShufflesButKeepsContent(t *testing.T) {
	gdb, service := newAnswerFixture(t)
	asker := createUser(t, gdb, "alice", "1111-1111-1111")
	responder := createUser(t, gdb, "bob", "2222-2222-2222")
	question := createQuestion(t, gdb, asker.ID, "Storia", "Chi era Napoleone?")
	createAnswer(t, gdb, question.ID, responder.ID, "risposta umana")
	createAnswer(t, gdb, question.ID, types.AIUserID, "risposta artificiale")

	view, err := service.Validation(context.Background(), question.ID)
	if err != nil {
		t.Fatalf("Validation: %v", err)
	}
	if view.Message != MsgPickBest || view.QuestionID != question.ID || view.Checked {
		t.Fatalf("view: %+v", view)
	}
	if len(view.Answers) != 2 {
		t.Fatalf("answers: got %d, want 2", len(view.Answers))
	}
	seen := map[string]bool{}
	for _, a := range view.Answers {
		seen[a.Payload] = true
	}
	if !seen["risposta umana"] || !seen["risposta artificiale"] {
		t.Fatalf("answer set mangled: %+v", view.Answers)
	}
}

func TestChooseBestRewardsAuthorAndChecksQuestion(t *testing.T) {
	gdb, service := newAnswerFixture(t)
	asker := createUser(t, gdb, "alice", "1111-1111-1111")
	responder := createUser(t, gdb, "bob", "2222-2222-2222")
	question := createQuestion(t, gdb, asker.ID, "Storia", "Chi era Napoleone?")
	best := createAnswer(t, gdb, question.ID, responder.ID, "risposta umana")
	createAnswer(t, gdb, question.ID, types.AIUserID, "risposta artificiale")

	view, err := service.ChooseBest(context.Background(), question.ID, best.ID)
	if err != nil {
		t.Fatalf("ChooseBest: %v", err)
	}
	if view.Message != MsgPickHuman {
		t.Fatalf("message: got %q, want %q", view.Message, MsgPickHuman)
	}
	// The best pick must not leak into the follow-up human vote round.
	if view.BestAnswer != "" {
		t.Fatalf("best answer leaked: %q", view.BestAnswer)
	}

	if score := userScore(t, gdb, responder.ID); score != ScoreBestAnswer {
		t.Fatalf("responder score: got %d, want %d", score, ScoreBestAnswer)
	}
	var reloadedQuestion types.Question
	if err := gdb.First(&reloadedQuestion, question.ID).Error; err != nil {
		t.Fatalf("reload question: %v", err)
	}
	if !reloadedQuestion.Checked {
		t.Fatal("question must be marked checked")
	}
	var reloadedAnswer types.Answer
	if err := gdb.First(&reloadedAnswer, best.ID).Error; err != nil {
		t.Fatalf("reload answer: %v", err)
	}
	if !reloadedAnswer.Best {
		t.Fatal("answer must be flagged best")
	}
	// First validated question grants the asker's threshold-1 achievement.
	if count := reachedCount(t, gdb, asker.ID); count != 1 {
		t.Fatalf("asker achievements: got %d, want 1", count)
	}
}

func TestChooseBestRejectsForeignAnswer(t *testing.T) {
	gdb, service := newAnswerFixture(t)
	asker := createUser(t, gdb, "alice", "1111-1111-1111")
	responder := createUser(t, gdb, "bob", "2222-2222-2222")
	question := createQuestion(t, gdb, asker.ID, "Storia", "Chi era Napoleone?")
	other := createQuestion(t, gdb, asker.ID, "Scienza", "Cosa studia la biologia?")
	foreign := createAnswer(t, gdb, other.ID, responder.ID, "risposta fuori posto")

	_, err := service.ChooseBest(context.Background(), question.ID, foreign.ID)
	if apierr.KindOf(err) != apierr.KindValidation {
		t.Fatalf("got %v, want validation error", err)
	}
	if score := userScore(t, gdb, responder.ID); score != 0 {
		t.Fatalf("score changed on rejected pick: %d", score)
	}
}

func TestRecordHumanVote(t *testing.T) {
	gdb, service := newAnswerFixture(t)
	voter := createUser(t, gdb, "carol", "3333-3333-3333")

	msg, err := service.RecordHumanVote(context.Background(), voter.ID, false)
	if err != nil {
		t.Fatalf("RecordHumanVote(miss): %v", err)
	}
	if msg != MsgVoteRecorded {
		t.Fatalf("message: got %q, want %q", msg, MsgVoteRecorded)
	}
	if score := userScore(t, gdb, voter.ID); score != 0 {
		t.Fatalf("missed guess must not score: %d", score)
	}

	if _, err := service.RecordHumanVote(context.Background(), voter.ID, true); err != nil {
		t.Fatalf("RecordHumanVote(hit): %v", err)
	}
	if score := userScore(t, gdb, voter.ID); score != ScoreHumanVote {
		t.Fatalf("score: got %d, want %d", score, ScoreHumanVote)
	}
}
