// Package triage classifies bugs with a Claude model: structured category,
// priority, urgency, team, and tag recommendations with a confidence score.
package triage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/common"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/telemetry"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/types"
)

var (
	// ErrUnavailable means the classifier was constructed without an API
	// key or was disabled in configuration. Callers skip enrichment
	// wholesale rather than failing records one by one.
	ErrUnavailable = errors.New("triage unavailable")

	// ErrMalformed means the model responded but the payload could not be
	// interpreted as a triage result. It affects one record only.
	ErrMalformed = errors.New("malformed triage response")
)

const (
	// DefaultModel is the classification model when none is configured.
	DefaultModel = "claude-3-5-haiku-20241022"

	// maxTokens caps the completion; triage results are small.
	maxTokens = 500

	// Classification calls are throttled to stay inside API rate limits
	// during large backlog passes.
	callsPerSecond = 2
	callBurst      = 1
)

// Classifier wraps the Anthropic API for bug triage.
//
// Availability is decided once at construction from configuration and never
// probed again: a Classifier built without an API key reports unavailable
// for its whole lifetime.
type Classifier struct {
	client    anthropic.Client
	model     anthropic.Model
	limiter   *rate.Limiter
	available bool
}

// NewClassifier builds a Classifier. When enabled is false or apiKey is
// empty the returned value is inert: Available reports false and Classify
// returns ErrUnavailable.
func NewClassifier(apiKey, model string, enabled bool) *Classifier {
	c := &Classifier{
		model:   anthropic.Model(model),
		limiter: rate.NewLimiter(rate.Limit(callsPerSecond), callBurst),
	}
	if model == "" {
		c.model = anthropic.Model(DefaultModel)
	}
	if !enabled || apiKey == "" {
		common.Logger().Warn("triage disabled: no API key configured")
		return c
	}

	c.client = anthropic.NewClient(option.WithAPIKey(apiKey))
	c.available = true

	aiMetricsOnce.Do(initAIMetrics)
	return c
}

// Available reports whether classification calls can be made.
func (c *Classifier) Available() bool {
	return c.available
}

// Classify runs one classification call for the bug and returns the parsed
// result. One attempt per record: API errors are returned to the caller,
// never retried here.
func (c *Classifier) Classify(ctx context.Context, bug *types.Bug) (*types.TriageResult, error) {
	if !c.available {
		return nil, ErrUnavailable
	}

	prompt, err := renderPrompt(bug)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	text, err := c.call(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result, err := parseResponse(text)
	if err != nil {
		return nil, err
	}

	result.TriagedAt = time.Now().UTC()
	common.Logger().Info("triaged bug",
		"key", bug.Key, "category", result.Category, "priority", result.Priority)
	return result, nil
}

// aiMetrics holds lazily-initialized OTel instruments for Anthropic API calls.
var aiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var aiMetricsOnce sync.Once

func initAIMetrics() {
	m := telemetry.Meter("github.com/jamesbringetto/atlassian-bug-dashboard/triage")
	aiMetrics.inputTokens, _ = m.Int64Counter("bugdash.ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.outputTokens, _ = m.Int64Counter("bugdash.ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.duration, _ = m.Float64Histogram("bugdash.ai.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

// call performs a single Messages API request and returns the text block.
func (c *Classifier) call(ctx context.Context, prompt string) (string, error) {
	tracer := telemetry.Tracer("github.com/jamesbringetto/atlassian-bug-dashboard/triage")
	ctx, span := tracer.Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(
		attribute.String("bugdash.ai.model", string(c.model)),
		attribute.String("bugdash.ai.operation", "triage"),
	)

	t0 := time.Now()
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	ms := float64(time.Since(t0).Milliseconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	modelAttr := attribute.String("bugdash.ai.model", string(c.model))
	if aiMetrics.inputTokens != nil {
		aiMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
		aiMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
		aiMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
	}
	span.SetAttributes(
		attribute.Int64("bugdash.ai.input_tokens", message.Usage.InputTokens),
		attribute.Int64("bugdash.ai.output_tokens", message.Usage.OutputTokens),
	)

	if len(message.Content) == 0 {
		return "", fmt.Errorf("%w: no content blocks", ErrMalformed)
	}
	content := message.Content[0]
	if content.Type != "text" {
		return "", fmt.Errorf("%w: not a text block (type=%s)", ErrMalformed, content.Type)
	}
	return content.Text, nil
}
