package generation

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/culturequiz/backend/internal/observability"
	"github.com/culturequiz/backend/internal/platform/aiproxy"
	"github.com/culturequiz/backend/internal/platform/envutil"
	"github.com/culturequiz/backend/internal/platform/logger"
	"github.com/culturequiz/backend/internal/realtime/bus"
	"github.com/culturequiz/backend/internal/repos"
	"github.com/culturequiz/backend/internal/types"
)

// tiers is the number of difficulty registers generated per question. Tier 1
// answers like a grade-school student, 2 like a high-school student, 3 like
// an adult.
const tiers = 3

// humanizeIntensity matches the strongest rewrite level of the humanization
// service.
const humanizeIntensity = 3

// ErrQueueFull is returned by Dispatch when the generation queue is
// saturated. The question stays accepted with generation_state pending.
var ErrQueueFull = errors.New("generation queue full")

type job struct {
	questionID int64
	payload    string
}

// Dispatcher runs the answer generation pipeline on a fixed worker pool
// draining a bounded queue, instead of spawning one goroutine per accepted
// question. Dispatch never blocks the request path: it queues or fails fast.
//
// Workers run detached from the request that accepted the question and go
// through the shared connection pool for their own handles; they never touch
// a request-scoped transaction.
type Dispatcher struct {
	db        *gorm.DB
	log       *logger.Logger
	ai        aiproxy.Client
	questions repos.QuestionRepo
	answers   repos.AnswerRepo
	metrics   *observability.Metrics
	events    bus.Bus
	queue     chan job
	workers   int
}

func NewDispatcher(db *gorm.DB, baseLog *logger.Logger, ai aiproxy.Client, questions repos.QuestionRepo, answers repos.AnswerRepo, metrics *observability.Metrics, events bus.Bus) *Dispatcher {
	workers := envutil.GetEnvAsInt("GENERATION_WORKERS", 4, baseLog)
	if workers < 1 {
		workers = 1
	}
	capacity := envutil.GetEnvAsInt("GENERATION_QUEUE_CAPACITY", 64, baseLog)
	if capacity < 1 {
		capacity = 1
	}
	if events == nil {
		events = bus.Nop{}
	}
	return &Dispatcher{
		db:        db,
		log:       baseLog.With("component", "GenerationDispatcher"),
		ai:        ai,
		questions: questions,
		answers:   answers,
		metrics:   metrics,
		events:    events,
		queue:     make(chan job, capacity),
		workers:   workers,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.log.Info("Starting generation worker pool", "workers", d.workers, "queue_capacity", cap(d.queue))
	for i := 0; i < d.workers; i++ {
		workerID := i + 1
		go d.runLoop(ctx, workerID)
	}
}

// Dispatch enqueues a generation job for an accepted question. Fire and
// forget: the caller gets no completion signal, only the saturation error.
func (d *Dispatcher) Dispatch(questionID int64, payload string) error {
	select {
	case d.queue <- job{questionID: questionID, payload: payload}:
		d.metrics.GenerationQueue.Set(float64(len(d.queue)))
		return nil
	default:
		d.metrics.GenerationJobs.WithLabelValues("rejected").Inc()
		return ErrQueueFull
	}
}

func (d *Dispatcher) runLoop(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			d.log.Info("Generation worker stopped", "worker_id", workerID)
			return
		case j := <-d.queue:
			d.metrics.GenerationQueue.Set(float64(len(d.queue)))
			func() {
				defer func() {
					if r := recover(); r != nil {
						d.log.Error("Generation job panic",
							"worker_id", workerID,
							"question_id", j.questionID,
							"panic", r,
						)
						d.metrics.GenerationJobs.WithLabelValues("panic").Inc()
					}
				}()
				d.process(ctx, workerID, j)
			}()
		}
	}
}

// process runs the three tiers strictly in order. Tiers are independent:
// any failure inside one tier is logged and the next tier still runs.
func (d *Dispatcher) process(ctx context.Context, workerID int, j job) {
	log := d.log.With("worker_id", workerID, "question_id", j.questionID)
	log.Info("Answer generation started")

	persisted := 0
	for tier := 1; tier <= tiers; tier++ {
		if err := d.runTier(ctx, j, tier); err != nil {
			d.metrics.GenerationTiers.WithLabelValues("failed").Inc()
			log.Warn("Generation tier failed", "tier", tier, "error", err)
			continue
		}
		d.metrics.GenerationTiers.WithLabelValues("ok").Inc()
		persisted++
	}

	state := types.GenerationPartial
	if persisted == tiers {
		state = types.GenerationDone
	}
	if err := d.questions.SetGenerationState(ctx, nil, j.questionID, state); err != nil {
		log.Error("Failed to record generation state", "state", state, "error", err)
	}
	d.metrics.GenerationJobs.WithLabelValues(state).Inc()

	if err := d.events.Publish(ctx, bus.GenerationEvent{
		QuestionID: j.questionID,
		State:      state,
		Answers:    persisted,
	}); err != nil {
		log.Warn("Failed to publish generation event", "error", err)
	}
	log.Info("Answer generation finished", "state", state, "answers", persisted)
}

func (d *Dispatcher) runTier(ctx context.Context, j job, tier int) error {
	answer, err := d.ai.GenerateAnswer(ctx, j.payload, tier)
	if err != nil {
		d.metrics.AICalls.WithLabelValues("generate", "error").Inc()
		return fmt.Errorf("generate: %w", err)
	}
	d.metrics.AICalls.WithLabelValues("generate", "ok").Inc()

	humanized, err := d.ai.Humanize(ctx, answer, humanizeIntensity)
	if err != nil {
		d.metrics.AICalls.WithLabelValues("humanize", "error").Inc()
		return fmt.Errorf("humanize: %w", err)
	}
	d.metrics.AICalls.WithLabelValues("humanize", "ok").Inc()

	// The job carries the text it was dispatched with, not a row reference.
	question, err := d.questions.GetByPayload(ctx, nil, j.payload)
	if err != nil {
		return fmt.Errorf("resolve question: %w", err)
	}
	if question == nil {
		return fmt.Errorf("question vanished for payload")
	}

	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := d.answers.Create(ctx, tx, &types.Answer{
			Payload:  types.TruncateAnswer(humanized),
			Question: question.ID,
			Author:   types.AIUserID,
		})
		return err
	})
}
