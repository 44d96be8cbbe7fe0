// Package gbm implements gradient-boosted regression trees with a squared-error objective.
//
// Trees are grown greedily with second-order gain and L2-regularised leaf weights,
// the same formulation XGBoost uses for reg:squarederror. The fitted model is a plain
// JSON document so it can be inspected and loaded without this package's training code.
package gbm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FormatVersion is bumped when the serialized layout changes.
const FormatVersion = 1

// minGain is the smallest loss reduction that justifies a split.
const minGain = 1e-9

var (
	ErrEmptyData     = errors.New("no training rows")
	ErrShapeMismatch = errors.New("feature matrix and target differ in shape")
	ErrFeatureCount  = errors.New("wrong number of features")
	ErrInvalidModel  = errors.New("invalid model")
	ErrNonFinite     = errors.New("non-finite training value")
)

// Params holds fixed hyperparameters for fitting.
type Params struct {
	NumTrees       int     `json:"num_trees"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	Lambda         float64 `json:"lambda"`
	MinChildWeight float64 `json:"min_child_weight"`
}

// DefaultParams returns 100 trees of depth 4 with learning rate 0.1.
func DefaultParams() Params {
	return Params{
		NumTrees:       100,
		MaxDepth:       4,
		LearningRate:   0.1,
		Lambda:         1,
		MinChildWeight: 1,
	}
}

// Node is either a split (Feature/Threshold/Left/Right) or a leaf (Value).
// Rows with x[Feature] < Threshold go left.
type Node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// Tree stores nodes in pre-order; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) predict(row []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if row[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the number of split levels on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Leaf {
			return 0
		}
		l, r := walk(n.Left), walk(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

// Model is a fitted ensemble. It is immutable after Fit or Load and safe for concurrent Predict.
type Model struct {
	Version      int       `json:"version"`
	FeatureNames []string  `json:"feature_names"`
	BaseScore    float64   `json:"base_score"`
	Params       Params    `json:"params"`
	Trees        []Tree    `json:"trees"`
	TrainedAt    time.Time `json:"trained_at"`
}

// Fit grows p.NumTrees trees on X (rows × features) against y.
func Fit(X [][]float64, y []float64, featureNames []string, p Params) (*Model, error) {
	if len(X) == 0 {
		return nil, ErrEmptyData
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d targets", ErrShapeMismatch, len(X), len(y))
	}
	nf := len(featureNames)
	for i, row := range X {
		if len(row) != nf {
			return nil, fmt.Errorf("%w: row %d has %d, want %d", ErrFeatureCount, i, len(row), nf)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: row %d feature %s", ErrNonFinite, i, featureNames[j])
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return nil, fmt.Errorf("%w: row %d target", ErrNonFinite, i)
		}
	}

	var sum float64
	for _, v := range y {
		sum += v
	}
	base := sum / float64(len(y))

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = base
	}
	grad := make([]float64, len(y))
	all := make([]int, len(y))
	for i := range all {
		all[i] = i
	}

	m := &Model{
		Version:      FormatVersion,
		FeatureNames: append([]string(nil), featureNames...),
		BaseScore:    base,
		Params:       p,
		Trees:        make([]Tree, 0, p.NumTrees),
		TrainedAt:    time.Now().UTC(),
	}
	for t := 0; t < p.NumTrees; t++ {
		// Squared error: gradient is the residual, hessian is 1 per row.
		for i := range grad {
			grad[i] = pred[i] - y[i]
		}
		b := &builder{X: X, grad: grad, p: p, nf: nf}
		b.build(all, 0)
		tree := Tree{Nodes: b.nodes}
		for i := range pred {
			pred[i] += tree.predict(X[i])
		}
		m.Trees = append(m.Trees, tree)
	}
	return m, nil
}

type builder struct {
	X     [][]float64
	grad  []float64
	p     Params
	nf    int
	nodes []Node
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *builder) build(idx []int, depth int) int {
	var g float64
	for _, i := range idx {
		g += b.grad[i]
	}
	h := float64(len(idx))

	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{})

	if depth < b.p.MaxDepth {
		if s, ok := b.bestSplit(idx, g, h); ok {
			left, right := b.partition(idx, s)
			l := b.build(left, depth+1)
			r := b.build(right, depth+1)
			b.nodes[id] = Node{Feature: s.feature, Threshold: s.threshold, Left: l, Right: r}
			return id
		}
	}
	b.nodes[id] = Node{Leaf: true, Value: -g / (h + b.p.Lambda) * b.p.LearningRate}
	return id
}

func (b *builder) bestSplit(idx []int, g, h float64) (split, bool) {
	lambda := b.p.Lambda
	parent := g * g / (h + lambda)
	best := split{gain: minGain}
	found := false

	sorted := make([]int, len(idx))
	for f := 0; f < b.nf; f++ {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.X[sorted[a]][f] < b.X[sorted[c]][f]
		})

		var gl, hl float64
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			gl += b.grad[i]
			hl++
			v, next := b.X[i][f], b.X[sorted[k+1]][f]
			if v == next {
				continue
			}
			hr := h - hl
			if hl < b.p.MinChildWeight || hr < b.p.MinChildWeight {
				continue
			}
			gr := g - gl
			gain := 0.5 * (gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - parent)
			if gain > best.gain {
				best = split{feature: f, threshold: v + (next-v)/2, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

func (b *builder) partition(idx []int, s split) (left, right []int) {
	for _, i := range idx {
		if b.X[i][s.feature] < s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// Predict returns the ensemble output for one row in FeatureNames order.
func (m *Model) Predict(row []float64) (float64, error) {
	if len(row) != len(m.FeatureNames) {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(row), len(m.FeatureNames))
	}
	out := m.BaseScore
	for i := range m.Trees {
		out += m.Trees[i].predict(row)
	}
	return out, nil
}

// Marshal serializes the model to indented JSON.
func (m *Model) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Unmarshal parses and validates a serialized model.
func Unmarshal(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// validate rejects artifacts whose trees could index out of range or loop.
func (m *Model) validate() error {
	if m.Version != FormatVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrInvalidModel, m.Version, FormatVersion)
	}
	if len(m.FeatureNames) == 0 {
		return fmt.Errorf("%w: no feature names", ErrInvalidModel)
	}
	if len(m.Trees) == 0 {
		return fmt.Errorf("%w: no trees", ErrInvalidModel)
	}
	for ti, t := range m.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d is empty", ErrInvalidModel, ti)
		}
		for ni, n := range t.Nodes {
			if n.Leaf {
				if math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
					return fmt.Errorf("%w: tree %d node %d has non-finite value", ErrInvalidModel, ti, ni)
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= len(m.FeatureNames) {
				return fmt.Errorf("%w: tree %d node %d feature %d out of range", ErrInvalidModel, ti, ni, n.Feature)
			}
			// Children always follow their parent in pre-order, which also rules out cycles.
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("%w: tree %d node %d has bad children", ErrInvalidModel, ti, ni)
			}
		}
	}
	return nil
}

// SaveFile writes the model to path, creating parent directories.
func (m *Model) SaveFile(path string) error {
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("serialize model: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create model directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return nil
}

// LoadFile reads and validates a model written by SaveFile.
func LoadFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return Unmarshal(data)
}
