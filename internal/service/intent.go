package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"yobot/internal/model"
	"yobot/internal/utils"

	"go.uber.org/zap"
)

// ErrMalformedLogits is returned when a model does not produce two finite scores
var ErrMalformedLogits = errors.New("classifier must return two finite logits")

// LogitsModel scores normalized text against the two intent labels.
// Implementations load their weights once and are safe for concurrent use.
type LogitsModel interface {
	Logits(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// IntentClassifier decides whether a message asks for a human agent.
// Any failure yields OTHER so the request path never breaks on inference.
type IntentClassifier struct {
	model   LogitsModel
	metrics *Metrics
	logger  *zap.Logger
}

// NewIntentClassifier wraps a loaded model
func NewIntentClassifier(m LogitsModel, metrics *Metrics, logger *zap.Logger) *IntentClassifier {
	return &IntentClassifier{
		model:   m,
		metrics: metrics,
		logger:  logger.Named("intent"),
	}
}

// Classify normalizes text and returns CONTACT_AGENT or OTHER
func (c *IntentClassifier) Classify(ctx context.Context, text string) model.Intent {
	normalized := utils.Normalize(text)
	intent, err := c.classifyNormalized(ctx, normalized)
	if err != nil {
		c.logger.Warn("classification failed, defaulting to OTHER",
			zap.String("text", normalized),
			zap.Error(err),
		)
		c.metrics.ClassifierFallback(fallbackReason(err))
		intent = model.IntentOther
	}
	c.metrics.Intent(intent)
	return intent
}

func (c *IntentClassifier) classifyNormalized(ctx context.Context, normalized string) (model.Intent, error) {
	if strings.TrimSpace(normalized) == "" {
		return "", errEmptyInput
	}
	if c.model == nil {
		return "", errNoModel
	}

	logits, err := c.model.Logits(ctx, normalized)
	if err != nil {
		return "", fmt.Errorf("%s inference: %w", c.model.Name(), err)
	}
	return Argmax(logits)
}

var (
	errEmptyInput = errors.New("nothing left to classify after normalization")
	errNoModel    = errors.New("no classifier model loaded")
)

// Argmax maps two logits to an intent. Index 0 wins ties.
func Argmax(logits []float32) (model.Intent, error) {
	if len(logits) != len(model.IntentLabels) {
		return "", fmt.Errorf("%w: got %d values", ErrMalformedLogits, len(logits))
	}
	best := 0
	for i, v := range logits {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return "", fmt.Errorf("%w: value %d is %v", ErrMalformedLogits, i, v)
		}
		if v > logits[best] {
			best = i
		}
	}
	return model.IntentLabels[best], nil
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, errEmptyInput):
		return "empty"
	case errors.Is(err, errNoModel):
		return "no_model"
	case errors.Is(err, ErrMalformedLogits):
		return "malformed"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}
