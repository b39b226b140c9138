package forecast

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidModel = errors.New("invalid forecast model")

//go:embed model/default.yaml
var defaultModelRaw []byte

type Level string

const (
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

var Levels = [3]Level{LevelLow, LevelMedium, LevelHigh}

// Model is a softmax classifier over the engineered features. The artifact
// format is YAML; JSON artifacts parse as well.
type Model struct {
	Classes  []Level     `yaml:"classes" json:"classes"`
	Features []string    `yaml:"features" json:"features"`
	Weights  [][]float64 `yaml:"weights" json:"weights"`
	Bias     []float64   `yaml:"bias" json:"bias"`
}

func DefaultModel() *Model {
	m, err := ParseModel(defaultModelRaw)
	if err != nil {
		panic(fmt.Sprintf("forecast: embedded model: %v", err))
	}
	return m
}

// LoadModel reads an artifact from path; an empty path selects the embedded
// default model.
func LoadModel(path string) (*Model, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultModel(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read forecast model: %w", err)
	}
	return ParseModel(raw)
}

func ParseModel(raw []byte) (*Model, error) {
	var m Model
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Model) Validate() error {
	if len(m.Classes) != len(Levels) {
		return fmt.Errorf("%w: want %d classes, got %d", ErrInvalidModel, len(Levels), len(m.Classes))
	}
	for i, c := range m.Classes {
		if c != Levels[i] {
			return fmt.Errorf("%w: class #%d is %q, want %q", ErrInvalidModel, i, c, Levels[i])
		}
	}
	if len(m.Features) != len(FeatureNames) {
		return fmt.Errorf("%w: want %d features, got %d", ErrInvalidModel, len(FeatureNames), len(m.Features))
	}
	for i, name := range m.Features {
		if name != FeatureNames[i] {
			return fmt.Errorf("%w: feature #%d is %q, want %q", ErrInvalidModel, i, name, FeatureNames[i])
		}
	}
	if len(m.Weights) != len(m.Classes) || len(m.Bias) != len(m.Classes) {
		return fmt.Errorf("%w: weights/bias do not match classes", ErrInvalidModel)
	}
	for i, row := range m.Weights {
		if len(row) != len(m.Features) {
			return fmt.Errorf("%w: weights row %d has %d values", ErrInvalidModel, i, len(row))
		}
	}
	return nil
}

// Probabilities returns the class distribution for x, ordered as Levels.
func (m *Model) Probabilities(x []float64) [3]float64 {
	var logits [3]float64
	maxLogit := math.Inf(-1)
	for c := range logits {
		z := m.Bias[c]
		for i, w := range m.Weights[c] {
			if i < len(x) {
				z += w * finite(x[i])
			}
		}
		logits[c] = finite(z)
		maxLogit = math.Max(maxLogit, logits[c])
	}

	var probs [3]float64
	sum := 0.0
	for c, z := range logits {
		probs[c] = math.Exp(z - maxLogit)
		sum += probs[c]
	}
	for c := range probs {
		probs[c] /= sum
	}
	return probs
}
