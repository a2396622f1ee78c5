package bus

import "context"

// GenerationEvent announces a generation_state transition for a question, so
// interested frontends can update without polling.
type GenerationEvent struct {
	QuestionID int64  `json:"question_id"`
	State      string `json:"state"`
	Answers    int    `json:"answers"`
}

type Bus interface {
	Publish(ctx context.Context, event GenerationEvent) error
	Close() error
}

// Nop is the bus used when REDIS_ADDR is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, GenerationEvent) error { return nil }
func (Nop) Close() error                                   { return nil }
