package gemini

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"bfhl/go-backend/internal/domains/apierr"
	"bfhl/go-backend/internal/domains/operations"
)

const (
	promptTemplate = "Answer this question with a single word or very short phrase (maximum 2 words): "
	maxAnswerWords = 2

	DefaultTimeout = 15 * time.Second
)

var errEmptyAnswer = errors.New("model returned an empty answer")

// Delegate turns a question into a short answer through a Generator.
// Provider failures are logged with full detail and surfaced as a generic
// upstream error.
type Delegate struct {
	gen     Generator
	timeout time.Duration
	logger  *slog.Logger
}

func NewDelegate(gen Generator, timeout time.Duration, logger *slog.Logger) *Delegate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Delegate{gen: gen, timeout: timeout, logger: logger.With("component", "gemini")}
}

// Ask implements operations.Asker.
func (d *Delegate) Ask(ctx context.Context, question string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	started := time.Now()
	raw, err := d.gen.Generate(callCtx, BuildPrompt(question))
	if err == nil && strings.TrimSpace(raw) == "" {
		err = errEmptyAnswer
	}
	if err != nil {
		d.logger.Error("ai request failed",
			"question", question,
			"error", err.Error(),
			"deadline_exceeded", errors.Is(err, context.DeadlineExceeded),
			"latency_ms", time.Since(started).Milliseconds(),
		)
		return "", apierr.Upstream(operations.MsgAIUnavailable, err)
	}

	answer := ShortAnswer(raw)
	d.logger.Debug("ai response", "raw_len", len(raw), "answer", answer, "latency_ms", time.Since(started).Milliseconds())
	return answer, nil
}

// BuildPrompt embeds the question into the fixed instruction.
func BuildPrompt(question string) string {
	return promptTemplate + question
}

// ShortAnswer trims the model text and keeps its first two words.
func ShortAnswer(raw string) string {
	words := strings.Fields(raw)
	if len(words) > maxAnswerWords {
		words = words[:maxAnswerWords]
	}
	return strings.Join(words, " ")
}
