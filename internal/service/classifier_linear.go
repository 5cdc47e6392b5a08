package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"yobot/internal/model"
	"yobot/internal/utils"
)

// LinearModel is a two-class linear head over sentence embeddings.
// The weights artifact is exported by the offline training job:
//
//	{"labels": ["contact agent", "other"], "weights": [[...], [...]], "bias": [b0, b1]}
type LinearModel struct {
	weights   [2][]float32
	bias      [2]float32
	embedder  Embedder
	maxTokens int
}

type linearArtifact struct {
	Labels  []string    `json:"labels"`
	Weights [][]float32 `json:"weights"`
	Bias    []float32   `json:"bias"`
}

// LoadLinearModel reads the weights once; inference reuses them
func LoadLinearModel(path string, embedder Embedder, maxTokens int) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier weights: %w", err)
	}

	var art linearArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("failed to parse classifier weights: %w", err)
	}
	if len(art.Weights) != 2 || len(art.Bias) != 2 {
		return nil, fmt.Errorf("classifier weights must have 2 rows and 2 biases, got %d and %d", len(art.Weights), len(art.Bias))
	}
	if len(art.Weights[0]) == 0 || len(art.Weights[0]) != len(art.Weights[1]) {
		return nil, fmt.Errorf("classifier weight rows must be non-empty and equal length")
	}

	order := [2]int{0, 1}
	if len(art.Labels) == 2 {
		var seen [2]bool
		for i, label := range art.Labels {
			idx, ok := labelIndex(label)
			if !ok {
				return nil, fmt.Errorf("unknown classifier label %q", label)
			}
			if seen[idx] {
				return nil, fmt.Errorf("classifier labels must be distinct, got %v", art.Labels)
			}
			seen[idx] = true
			order[idx] = i
		}
	}

	m := &LinearModel{embedder: embedder, maxTokens: maxTokens}
	for idx, row := range order {
		m.weights[idx] = art.Weights[row]
		m.bias[idx] = art.Bias[row]
	}
	return m, nil
}

// Name identifies the backend in logs
func (m *LinearModel) Name() string { return "linear" }

// Dimension is the embedding size the weights expect
func (m *LinearModel) Dimension() int { return len(m.weights[0]) }

// Logits embeds text and applies the linear head
func (m *LinearModel) Logits(ctx context.Context, text string) ([]float32, error) {
	text = utils.TruncateTokens(text, m.maxTokens)
	vecs, err := m.embedder.CreateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected one embedding, got %d", len(vecs))
	}
	x := vecs[0]
	if len(x) != m.Dimension() {
		return nil, fmt.Errorf("embedding has %d dimensions, weights expect %d", len(x), m.Dimension())
	}

	logits := make([]float32, 2)
	for k := range logits {
		var sum float64
		for i, w := range m.weights[k] {
			sum += float64(w) * float64(x[i])
		}
		logits[k] = float32(sum) + m.bias[k]
	}
	return logits, nil
}

// labelIndex maps artifact label names onto logit positions
func labelIndex(label string) (int, bool) {
	key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(label), " ", "_"))
	for i, l := range model.IntentLabels {
		if string(l) == key {
			return i, true
		}
	}
	return 0, false
}
