package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/culturequiz/backend/internal/jobs/generation"
	"github.com/culturequiz/backend/internal/platform/apierr"
	"github.com/culturequiz/backend/internal/platform/logger"
	"github.com/culturequiz/backend/internal/realtime/bus"
	"github.com/culturequiz/backend/internal/repos"
	"github.com/culturequiz/backend/internal/types"
)

// stubAI satisfies the capability client without network calls.
type stubAI struct {
	coherent     bool
	coherenceErr error
}

func (s stubAI) GenerateAnswer(ctx context.Context, topic string, tier int) (string, error) {
	return "stub answer", nil
}

func (s stubAI) Humanize(ctx context.Context, text string, intensity int) (string, error) {
	return text, nil
}

func (s stubAI) EvaluateCoherence(ctx context.Context, question, theme string) (bool, error) {
	return s.coherent, s.coherenceErr
}

func newQuestionFixture(t *testing.T, ai stubAI) (*gorm.DB, QuestionService) {
	t.Helper()
	gdb := newTestDB(t)
	log := logger.NewNop()
	metrics := newTestMetrics()
	users := repos.NewUserRepo(gdb, log)
	themes := repos.NewThemeRepo(gdb, log)
	questions := repos.NewQuestionRepo(gdb, log)
	answers := repos.NewAnswerRepo(gdb, log)
	achievements := repos.NewAchievementRepo(gdb, log)
	ledger := NewLedgerService(log, users, achievements, metrics)
	dispatcher := generation.NewDispatcher(gdb, log, ai, questions, answers, metrics, bus.Nop{})
	service := NewQuestionService(gdb, log, ai, dispatcher, questions, answers, themes, users, ledger, metrics)
	return gdb, service
}

func TestAskAcceptsCoherentQuestion(t *testing.T) {
	gdb, service := newQuestionFixture(t, stubAI{coherent: true})
	user := createUser(t, gdb, "alice", "1111-1111-1111")

	result, err := service.Ask(context.Background(), user.ID, "Storia", "Chi era Napoleone?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if result.Message != MsgQuestionAdded {
		t.Fatalf("message: got %q, want %q", result.Message, MsgQuestionAdded)
	}

	var question types.Question
	if err := gdb.Where("payload = ?", "Chi era Napoleone?").First(&question).Error; err != nil {
		t.Fatalf("question not persisted: %v", err)
	}
	if question.Author != user.ID {
		t.Fatalf("author: got %d, want %d", question.Author, user.ID)
	}
	if question.GenerationState != types.GenerationPending {
		t.Fatalf("generation state: got %q, want pending", question.GenerationState)
	}
	if score := userScore(t, gdb, user.ID); score != ScoreQuestionAccepted {
		t.Fatalf("score: got %d, want %d", score, ScoreQuestionAccepted)
	}
	// First question grants the threshold-1 achievement.
	if count := reachedCount(t, gdb, user.ID); count != 1 {
		t.Fatalf("achievements: got %d, want 1", count)
	}

	if len(result.Questions) != 1 || result.Questions[0].Payload != "Chi era Napoleone?" {
		t.Fatalf("authored list: %+v", result.Questions)
	}
	for _, theme := range result.Themes {
		if theme == "Storia" {
			t.Fatal("used theme must be withheld from the next round")
		}
	}
	if len(result.Themes) == 0 {
		t.Fatal("expected remaining themes")
	}
}

func TestAskDuplicateKeepsStateUntouched(t *testing.T) {
	gdb, service := newQuestionFixture(t, stubAI{coherent: true})
	user := createUser(t, gdb, "alice", "1111-1111-1111")

	if _, err := service.Ask(context.Background(), user.ID, "Storia", "Chi era Napoleone?"); err != nil {
		t.Fatalf("first Ask: %v", err)
	}
	result, err := service.Ask(context.Background(), user.ID, "Storia", "Chi era Napoleone?")
	if err != nil {
		t.Fatalf("duplicate Ask must not be an error: %v", err)
	}
	if result.Message != MsgQuestionDuplicate {
		t.Fatalf("message: got %q, want %q", result.Message, MsgQuestionDuplicate)
	}

	var count int64
	if err := gdb.Model(&types.Question{}).Count(&count).Error; err != nil {
		t.Fatalf("count questions: %v", err)
	}
	if count != 1 {
		t.Fatalf("questions: got %d, want 1", count)
	}
	// The rejected submission rolls back entirely: no double score.
	if score := userScore(t, gdb, user.ID); score != ScoreQuestionAccepted {
		t.Fatalf("score: got %d, want %d", score, ScoreQuestionAccepted)
	}
}

func TestAskIncoherentQuestionNotStored(t *testing.T) {
	gdb, service := newQuestionFixture(t, stubAI{coherent: false})
	user := createUser(t, gdb, "alice", "1111-1111-1111")

	result, err := service.Ask(context.Background(), user.ID, "Storia", "Quanto fa due piu due?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if result.Message != MsgQuestionIncoherent {
		t.Fatalf("message: got %q, want %q", result.Message, MsgQuestionIncoherent)
	}

	var count int64
	if err := gdb.Model(&types.Question{}).Count(&count).Error; err != nil {
		t.Fatalf("count questions: %v", err)
	}
	if count != 0 {
		t.Fatalf("questions: got %d, want 0", count)
	}
	if score := userScore(t, gdb, user.ID); score != 0 {
		t.Fatalf("score: got %d, want 0", score)
	}
}

func TestAskCoherenceFailurePropagates(t *testing.T) {
	gdb, service := newQuestionFixture(t, stubAI{coherenceErr: apierr.Transport("ai_unreachable", errors.New("connection refused"))})
	user := createUser(t, gdb, "alice", "1111-1111-1111")

	_, err := service.Ask(context.Background(), user.ID, "Storia", "Chi era Napoleone?")
	if err == nil {
		t.Fatal("expected an error when the coherence service is down")
	}
	if apierr.KindOf(err) != apierr.KindTransport {
		t.Fatalf("kind: got %v, want KindTransport", apierr.KindOf(err))
	}
}

func TestAskRejectsEmptyAndUnknownTheme(t *testing.T) {
	gdb, service := newQuestionFixture(t, stubAI{coherent: true})
	user := createUser(t, gdb, "alice", "1111-1111-1111")

	if _, err := service.Ask(context.Background(), user.ID, "Storia", "   "); apierr.KindOf(err) != apierr.KindValidation {
		t.Fatalf("empty question: got %v, want validation error", err)
	}
	if _, err := service.Ask(context.Background(), user.ID, "Astrologia", "Chi era Napoleone?"); apierr.KindOf(err) != apierr.KindValidation {
		t.Fatalf("unknown theme: got %v, want validation error", err)
	}
}

func TestStatusReportsGenerationProgress(t *testing.T) {
	gdb, service := newQuestionFixture(t, stubAI{coherent: true})
	user := createUser(t, gdb, "alice", "1111-1111-1111")
	question := createQuestion(t, gdb, user.ID, "Storia", "Chi era Napoleone?")
	createAnswer(t, gdb, question.ID, types.AIUserID, "risposta uno")
	createAnswer(t, gdb, question.ID, types.AIUserID, "risposta due")

	status, err := service.Status(context.Background(), question.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != types.GenerationPending || status.Answers != 2 {
		t.Fatalf("status: %+v", status)
	}

	_, err = service.Status(context.Background(), question.ID+100)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Status != 404 {
		t.Fatalf("missing question: got %v, want 404", err)
	}
}

func TestNewlyAnsweredRequiresFourAnswers(t *testing.T) {
	gdb, service := newQuestionFixture(t, stubAI{coherent: true})
	author := createUser(t, gdb, "alice", "1111-1111-1111")
	responder := createUser(t, gdb, "bob", "2222-2222-2222")

	ready := createQuestion(t, gdb, author.ID, "Storia", "Chi era Napoleone?")
	short := createQuestion(t, gdb, author.ID, "Scienza", "Cosa studia la biologia?")
	for _, q := range []int64{ready.ID, short.ID} {
		if err := gdb.Model(&types.Question{}).Where("id = ?", q).Update("answered", true).Error; err != nil {
			t.Fatalf("mark answered: %v", err)
		}
	}
	for i := 0; i < 4; i++ {
		createAnswer(t, gdb, ready.ID, responder.ID, "risposta completa")
	}
	for i := 0; i < 3; i++ {
		createAnswer(t, gdb, short.ID, responder.ID, "risposta parziale")
	}

	ids, err := service.NewlyAnswered(context.Background(), author.ID)
	if err != nil {
		t.Fatalf("NewlyAnswered: %v", err)
	}
	if len(ids) != 1 || ids[0] != ready.ID {
		t.Fatalf("ids: got %v, want [%d]", ids, ready.ID)
	}
}
