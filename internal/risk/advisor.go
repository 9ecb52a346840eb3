package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/calebdris/venue-booking/pkg/config"
	"github.com/calebdris/venue-booking/pkg/logger"
	"github.com/calebdris/venue-booking/pkg/resilience"
)

// Advice is the advisory output blended into the heuristic score. UsedLLM is
// false when the deterministic fallback produced the advice.
type Advice struct {
	RiskScore  int      `json:"risk_score"`
	Reasons    []string `json:"reasons"`
	Confidence string   `json:"confidence"`
	Analysis   string   `json:"analysis,omitempty"`
	UsedLLM    bool     `json:"used_llm"`
}

// Advisor produces a second opinion on a screened submission. Advise never
// returns an error; any upstream failure degrades to the fallback rule table.
type Advisor interface {
	Advise(ctx context.Context, sub *Submission, features map[string]interface{}) Advice
}

const maxAdviceReasons = 5

// LLMAdvisor asks a chat-completion model to assess the submission. The
// request is guarded by a circuit breaker so a degraded upstream does not
// stall every screening for the full timeout.
type LLMAdvisor struct {
	cfg     config.LLMConfig
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

// NewLLMAdvisor creates an advisor backed by the configured model endpoint.
func NewLLMAdvisor(cfg config.LLMConfig) *LLMAdvisor {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	breaker := resilience.NewCircuitBreaker(resilience.Settings{
		Name:             "llm-advisor",
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
	}, nil)

	return &LLMAdvisor{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

func (a *LLMAdvisor) Advise(ctx context.Context, sub *Submission, features map[string]interface{}) Advice {
	if a.cfg.APIKey == "" {
		return FallbackAdvice(sub, features)
	}

	ctx, span := tracer.Start(ctx, "risk.llm_advise")
	defer span.End()

	result, err := a.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return a.request(ctx, sub, features)
	})
	if err != nil {
		recordLLMRequest("fallback")
		logger.WithContext(ctx).Warn("llm advisor unavailable, using fallback rules", zap.Error(err))
		return FallbackAdvice(sub, features)
	}

	advice, ok := result.(Advice)
	if !ok {
		recordLLMRequest("fallback")
		return FallbackAdvice(sub, features)
	}

	recordLLMRequest("success")
	return advice
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type adviceEnvelope struct {
	RiskScore  *int     `json:"risk_score"`
	Reasons    []string `json:"reasons"`
	Confidence string   `json:"confidence"`
	Analysis   string   `json:"analysis"`
}

func (a *LLMAdvisor) request(ctx context.Context, sub *Submission, features map[string]interface{}) (Advice, error) {
	payload, err := json.Marshal(chatRequest{
		Model: a.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: advisorSystemPrompt},
			{Role: "user", Content: buildAdvisorPrompt(sub, features)},
		},
		MaxTokens:      a.cfg.MaxTokens,
		Temperature:    0.1,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return Advice{}, fmt.Errorf("failed to marshal llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return Advice{}, fmt.Errorf("failed to build llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return Advice{}, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Advice{}, fmt.Errorf("failed to read llm response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Advice{}, fmt.Errorf("llm returned status %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return Advice{}, fmt.Errorf("failed to decode llm response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return Advice{}, fmt.Errorf("llm returned no choices")
	}

	var envelope adviceEnvelope
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &envelope); err != nil {
		return Advice{}, fmt.Errorf("llm content is not valid JSON: %w", err)
	}
	if envelope.RiskScore == nil {
		return Advice{}, fmt.Errorf("llm content is missing risk_score")
	}

	reasons := envelope.Reasons
	if len(reasons) > maxAdviceReasons {
		reasons = reasons[:maxAdviceReasons]
	}

	confidence := strings.ToLower(envelope.Confidence)
	switch confidence {
	case "low", "medium", "high":
	default:
		confidence = "medium"
	}

	return Advice{
		RiskScore:  ClampScore(*envelope.RiskScore),
		Reasons:    dedupReasons(reasons),
		Confidence: confidence,
		Analysis:   envelope.Analysis,
		UsedLLM:    true,
	}, nil
}

const advisorSystemPrompt = `You are a fraud analyst for a venue reservation platform. ` +
	`Assess the booking submission and respond with a JSON object containing ` +
	`"risk_score" (integer 0-100), "reasons" (array of short strings, at most 5), ` +
	`"confidence" ("low", "medium" or "high") and "analysis" (one sentence).`

func buildAdvisorPrompt(sub *Submission, features map[string]interface{}) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Guest name: %s\n", sub.GuestName)
	fmt.Fprintf(&sb, "Guest email: %s\n", sub.GuestEmail)
	if sub.GuestPhone != "" {
		fmt.Fprintf(&sb, "Guest phone: %s\n", sub.GuestPhone)
	}
	fmt.Fprintf(&sb, "Party size: %d\n", sub.PartySize)
	fmt.Fprintf(&sb, "Event date: %s\n", sub.EventDate.Format(time.RFC3339))

	if len(features) > 0 {
		flagged, _ := json.Marshal(features)
		fmt.Fprintf(&sb, "Heuristic signals: %s\n", flagged)
	}

	return sb.String()
}
