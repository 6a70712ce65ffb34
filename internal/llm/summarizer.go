package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mdombrov-33/go-promptguard/detector"
	"go.uber.org/zap"

	"github.com/sgx-labs/noter/internal/config"
)

// ErrNoModel is returned when the back-end has no usable model.
var ErrNoModel = errors.New("no chat model available")

// ErrSummaryRejected is returned when a generated summary looks like a
// prompt injection echoed back from note content.
var ErrSummaryRejected = errors.New("summary rejected by injection screen")

// guardWindow is the largest slice of text handed to the detector at once.
const guardWindow = 2000

// promptGuard runs only the role-injection and instruction-override
// detectors. The statistical detectors score plain prose as hostile.
var promptGuard = detector.New(
	detector.WithRoleInjection(true),
	detector.WithInstructionOverride(true),
	detector.WithPromptLeak(false),
	detector.WithObfuscation(false),
	detector.WithEntropy(false),
	detector.WithPerplexity(false),
	detector.WithTokenAnomaly(false),
	detector.WithNormalization(false),
	detector.WithDelimiter(false),
	detector.WithMaxInputLength(guardWindow),
)

// blockingPatterns are the detector findings that reject a summary. The
// looser ones ("don't", "restart", "User:" lines) show up in everyday notes.
var blockingPatterns = map[string]bool{
	"role_injection_special_token": true,
	"role_injection_xml_tag":       true,
	"role_injection_role_switch":   true,
	"instruction_override_direct":  true,
}

// injectionPatterns backs up the detector for the most common phrasings.
var injectionPatterns = []string{
	"ignore previous instructions",
	"ignore all previous",
	"disregard previous instructions",
	"<|im_start|>",
}

// Summarizer produces merge summaries through a chat Client. It satisfies
// notes.Summarizer.
type Summarizer struct {
	Client Client
	// Model is used as-is when set; otherwise the client picks one.
	Model   string
	Timeout time.Duration
	Log     *zap.Logger
}

// NewSummarizer builds a Summarizer from configuration. It returns
// ErrDisabled when the provider is "none".
func NewSummarizer(cfg config.AIConfig, log *zap.Logger) (*Summarizer, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Summarizer{
		Client:  client,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		Log:     log,
	}, nil
}

// Summarize asks the back-end to summarize text under the prompt
// instruction. The whole exchange is bounded by Timeout.
func (s *Summarizer) Summarize(ctx context.Context, text, prompt string) (string, error) {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	model := s.Model
	if model == "" {
		picked, err := s.Client.PickBestModel(ctx)
		if err != nil {
			return "", fmt.Errorf("pick model: %w", err)
		}
		if picked == "" {
			return "", fmt.Errorf("%w from %s", ErrNoModel, s.Client.Provider())
		}
		model = picked
	}

	start := time.Now()
	out, err := s.Client.Generate(ctx, model, prompt, text)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	out = strings.TrimSpace(out)
	log.Debug("summary generated",
		zap.String("provider", s.Client.Provider()),
		zap.String("model", model),
		zap.Int("chars", len(out)),
		zap.Duration("took", time.Since(start)),
	)

	if detectInjection(out) {
		return "", ErrSummaryRejected
	}
	return out, nil
}

// detectInjection reports whether text contains a known injection phrase or
// any window of it carries a blocking detector finding.
func detectInjection(text string) bool {
	lower := strings.ToLower(text)
	for _, pattern := range injectionPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	runes := []rune(text)
	for i := 0; i < len(runes); i += guardWindow {
		end := min(i+guardWindow, len(runes))
		res := promptGuard.Detect(context.Background(), string(runes[i:end]))
		for _, p := range res.DetectedPatterns {
			if blockingPatterns[p.Type] {
				return true
			}
		}
	}
	return false
}
