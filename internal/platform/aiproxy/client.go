package aiproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/culturequiz/backend/internal/platform/apierr"
	"github.com/culturequiz/backend/internal/platform/envutil"
	"github.com/culturequiz/backend/internal/platform/logger"
)

// Client talks to the three AI capability services. Each call is stateless
// request/response and fails with a typed error instead of panicking across
// the boundary: apierr.KindTransport for unreachable services and non-2xx
// replies, apierr.KindValidation for malformed bodies.
type Client interface {
	// GenerateAnswer asks the answer service for a tiered answer to topic.
	// Tier selects the persona register (1 grade-school, 2 high-school,
	// 3 adult).
	GenerateAnswer(ctx context.Context, topic string, tier int) (string, error)
	// Humanize rewrites machine text to read as human-authored.
	Humanize(ctx context.Context, text string, intensity int) (string, error)
	// EvaluateCoherence scores how well a question fits its theme on a 1-10
	// scale and thresholds it at >=5.
	EvaluateCoherence(ctx context.Context, question, theme string) (bool, error)
}

type client struct {
	httpClient   *http.Client
	log          *logger.Logger
	answerURL    string
	humanizeURL  string
	coherenceURL string
}

func New(log *logger.Logger) Client {
	serviceLog := log.With("service", "AIProxyClient")
	timeout := envutil.GetEnvAsInt("AI_TIMEOUT_SECONDS", 60, log)
	return &client{
		httpClient:   &http.Client{Timeout: time.Duration(timeout) * time.Second},
		log:          serviceLog,
		answerURL:    envutil.GetEnv("AI_ANSWER_URL", "http://ai_response:8073/answer", log),
		humanizeURL:  envutil.GetEnv("AI_HUMANIZE_URL", "http://ai_humanization:8074/humanize", log),
		coherenceURL: envutil.GetEnv("AI_COHERENCE_URL", "http://ai_theme:8075/coherence", log),
	}
}

type generateRequest struct {
	Topic string `json:"topic"`
	Tier  int    `json:"tier"`
}

type generateResponse struct {
	Answer string `json:"answer"`
	Raw    string `json:"raw"`
}

type humanizeRequest struct {
	Text      string `json:"text"`
	Intensity int    `json:"intensity"`
}

type humanizeResponse struct {
	Humanized string `json:"humanized"`
	Raw       string `json:"raw"`
}

type coherenceRequest struct {
	Question string `json:"question"`
	Theme    string `json:"theme"`
}

type coherenceResponse struct {
	Coherent *bool  `json:"coherent"`
	Raw      string `json:"raw"`
}

func (c *client) GenerateAnswer(ctx context.Context, topic string, tier int) (string, error) {
	if tier < 1 || tier > 3 {
		return "", apierr.Validation("invalid_tier", fmt.Errorf("tier %d out of range", tier))
	}
	var out generateResponse
	if err := c.post(ctx, c.answerURL, generateRequest{Topic: topic, Tier: tier}, &out); err != nil {
		return "", err
	}
	if out.Answer == "" {
		return "", apierr.Validation("empty_answer", fmt.Errorf("answer service returned no answer"))
	}
	return out.Answer, nil
}

func (c *client) Humanize(ctx context.Context, text string, intensity int) (string, error) {
	var out humanizeResponse
	if err := c.post(ctx, c.humanizeURL, humanizeRequest{Text: text, Intensity: intensity}, &out); err != nil {
		return "", err
	}
	if out.Humanized == "" {
		return "", apierr.Validation("empty_humanized", fmt.Errorf("humanize service returned no text"))
	}
	return out.Humanized, nil
}

func (c *client) EvaluateCoherence(ctx context.Context, question, theme string) (bool, error) {
	var out coherenceResponse
	if err := c.post(ctx, c.coherenceURL, coherenceRequest{Question: question, Theme: theme}, &out); err != nil {
		return false, err
	}
	if out.Coherent == nil {
		return false, apierr.Validation("missing_coherence", fmt.Errorf("coherence service returned no verdict"))
	}
	return *out.Coherent, nil
}

func (c *client) post(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return apierr.Validation("encode_request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apierr.Transport("build_request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierr.Transport("ai_unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apierr.Transport("read_response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apierr.Transport("ai_status", fmt.Errorf("%s returned status %d", url, resp.StatusCode))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apierr.Validation("decode_response", err)
	}
	return nil
}
