// Package model wraps the externally trained severity model artifact.
// It performs pure inference over a gradient-boosted-trees dump; all
// calibration and reasoning lives elsewhere.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// ErrModelLoad wraps any failure to load the model or encoder artifacts.
// It is fatal at startup: the service must not begin serving predictions.
type ErrModelLoad struct {
	Path string
	Err  error
}

func (e *ErrModelLoad) Error() string {
	return fmt.Sprintf("model load failed (%s): %v", e.Path, e.Err)
}

func (e *ErrModelLoad) Unwrap() error { return e.Err }

// tree is one regression tree in flat-array layout. Left[i] == -1 marks a
// leaf whose margin contribution is Value[i]; internal nodes route on
// x[SplitIndex[i]] < Threshold[i].
type tree struct {
	SplitIndex []int     `json:"split_index"`
	Threshold  []float64 `json:"threshold"`
	Left       []int     `json:"left"`
	Right      []int     `json:"right"`
	Value      []float64 `json:"value"`
}

func (t *tree) validate(numFeatures int) error {
	n := len(t.Left)
	if len(t.Right) != n || len(t.SplitIndex) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("inconsistent node array lengths")
	}
	for i := 0; i < n; i++ {
		if t.Left[i] == -1 {
			continue
		}
		if t.SplitIndex[i] < 0 || t.SplitIndex[i] >= numFeatures {
			return fmt.Errorf("node %d splits on feature %d, model has %d", i, t.SplitIndex[i], numFeatures)
		}
		if t.Left[i] >= n || t.Right[i] >= n || t.Left[i] < 0 || t.Right[i] < 0 {
			return fmt.Errorf("node %d has out-of-range children", i)
		}
	}
	return nil
}

func (t *tree) score(x []float64) float64 {
	i := 0
	for t.Left[i] != -1 {
		if x[t.SplitIndex[i]] < t.Threshold[i] {
			i = t.Left[i]
		} else {
			i = t.Right[i]
		}
	}
	return t.Value[i]
}

// modelDump is the on-disk artifact layout. Trees are stored in boosting
// order, round-robin over the classes (tree i scores class i % num_classes).
type modelDump struct {
	NumFeatures int     `json:"num_features"`
	NumClasses  int     `json:"num_classes"`
	BaseScore   float64 `json:"base_score"`
	Trees       []tree  `json:"trees"`
}

// labelDump is the label-encoder artifact: class labels in index order.
type labelDump struct {
	Classes []string `json:"classes"`
}

// Prediction is one classification result: the argmax class and the full
// probability distribution, summing to 1 within epsilon.
type Prediction struct {
	Class int
	Label string
	Probs []float64
}

// Confidence is the maximum class probability.
func (p Prediction) Confidence() float64 {
	max := 0.0
	for _, v := range p.Probs {
		if v > max {
			max = v
		}
	}
	return max
}

// Classifier performs batch severity inference. Stateless and
// deterministic for a fixed artifact; safe for concurrent use.
type Classifier struct {
	trees       []tree
	numFeatures int
	numClasses  int
	baseScore   float64
	labels      []string
}

// Load reads the model dump and label encoder from disk. Any failure is an
// *ErrModelLoad and must abort startup.
func Load(modelPath, encoderPath string) (*Classifier, error) {
	modelBytes, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, &ErrModelLoad{Path: modelPath, Err: err}
	}
	encoderBytes, err := os.ReadFile(encoderPath)
	if err != nil {
		return nil, &ErrModelLoad{Path: encoderPath, Err: err}
	}
	c, err := LoadBytes(modelBytes, encoderBytes)
	if err != nil {
		return nil, &ErrModelLoad{Path: modelPath, Err: err}
	}
	return c, nil
}

// LoadBytes builds a classifier from in-memory artifacts.
func LoadBytes(modelBytes, encoderBytes []byte) (*Classifier, error) {
	var dump modelDump
	if err := json.Unmarshal(modelBytes, &dump); err != nil {
		return nil, fmt.Errorf("parse model dump: %w", err)
	}
	var labels labelDump
	if err := json.Unmarshal(encoderBytes, &labels); err != nil {
		return nil, fmt.Errorf("parse label encoder: %w", err)
	}

	if dump.NumClasses < 2 {
		return nil, fmt.Errorf("model declares %d classes, need at least 2", dump.NumClasses)
	}
	if dump.NumFeatures < 1 {
		return nil, fmt.Errorf("model declares %d features", dump.NumFeatures)
	}
	if len(labels.Classes) != dump.NumClasses {
		return nil, fmt.Errorf("label encoder has %d classes, model has %d", len(labels.Classes), dump.NumClasses)
	}
	if len(dump.Trees) == 0 || len(dump.Trees)%dump.NumClasses != 0 {
		return nil, fmt.Errorf("tree count %d is not a multiple of %d classes", len(dump.Trees), dump.NumClasses)
	}
	for i := range dump.Trees {
		if err := dump.Trees[i].validate(dump.NumFeatures); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}

	return &Classifier{
		trees:       dump.Trees,
		numFeatures: dump.NumFeatures,
		numClasses:  dump.NumClasses,
		baseScore:   dump.BaseScore,
		labels:      labels.Classes,
	}, nil
}

// NumFeatures reports the fixed feature count the model expects.
func (c *Classifier) NumFeatures() int { return c.numFeatures }

// Classes returns the decoded class labels in index order.
func (c *Classifier) Classes() []string { return append([]string(nil), c.labels...) }

// Predict classifies an entire batch in one call. Ranking throughput
// depends on this being a single vectorized pass, not a per-row loop
// around the transport.
func (c *Classifier) Predict(rows [][]float64) ([]Prediction, error) {
	out := make([]Prediction, len(rows))
	for i, row := range rows {
		if len(row) != c.numFeatures {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), c.numFeatures)
		}
		out[i] = c.predictRow(row)
	}
	return out, nil
}

// PredictOne classifies a single vector.
func (c *Classifier) PredictOne(row []float64) (Prediction, error) {
	if len(row) != c.numFeatures {
		return Prediction{}, fmt.Errorf("vector has %d features, model expects %d", len(row), c.numFeatures)
	}
	return c.predictRow(row), nil
}

func (c *Classifier) predictRow(row []float64) Prediction {
	margins := make([]float64, c.numClasses)
	for i := range margins {
		margins[i] = c.baseScore
	}
	for i := range c.trees {
		margins[i%c.numClasses] += c.trees[i].score(row)
	}

	probs := softmax(margins)
	best := 0
	for k := 1; k < len(probs); k++ {
		if probs[k] > probs[best] {
			best = k
		}
	}
	return Prediction{Class: best, Label: c.labels[best], Probs: probs}
}

func softmax(margins []float64) []float64 {
	max := margins[0]
	for _, m := range margins[1:] {
		if m > max {
			max = m
		}
	}
	var sum float64
	out := make([]float64, len(margins))
	for i, m := range margins {
		out[i] = math.Exp(m - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
