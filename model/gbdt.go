package model

import (
	"context"
	"encoding/json"
	"fmt"
)

// TypeGradientBoosting 梯度提升树产物类型
const TypeGradientBoosting = "gradient_boosting"

// leaf 子节点下标为 -1 表示叶子（与 sklearn tree_.children_left 一致）
const leaf = -1

// Tree 是扁平数组表示的一棵回归树，下标 i 对应节点 i，根节点为 0。
// 非叶子节点：x[Feature[i]] <= Threshold[i] 走 Left[i]，否则走 Right[i]。
type Tree struct {
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	Value     []float64 `json:"value"`
}

// validate 检查数组长度一致、子节点下标合法且严格递增（保证无环、遍历必然终止）。
func (t *Tree) validate(width int) error {
	n := len(t.Value)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(t.Feature) != n || len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n {
		return fmt.Errorf("node arrays have different lengths")
	}
	for i := 0; i < n; i++ {
		l, r := t.Left[i], t.Right[i]
		if l == leaf && r == leaf {
			continue
		}
		if l <= i || r <= i || l >= n || r >= n {
			return fmt.Errorf("node %d: bad children (%d, %d)", i, l, r)
		}
		if f := t.Feature[i]; f < 0 || f >= width {
			return fmt.Errorf("node %d: feature index %d out of range [0, %d)", i, f, width)
		}
		if !isFinite(t.Threshold[i]) {
			return fmt.Errorf("node %d: threshold is not finite", i)
		}
	}
	return nil
}

func (t *Tree) predict(row []float64) float64 {
	i := 0
	for t.Left[i] != leaf {
		if row[t.Feature[i]] <= t.Threshold[i] {
			i = t.Left[i]
		} else {
			i = t.Right[i]
		}
	}
	return t.Value[i]
}

// GradientBoosting 是二分类梯度提升树（对数几率空间累加）：
//
//	z = BaseScore + LearningRate * sum(tree_k(x))
//	P = sigmoid(z)
//
// 实现 Importancer：优先使用产物中的 feature_importances，否则按分裂次数归一化。
type GradientBoosting struct {
	name         string
	version      string
	width        int
	BaseScore    float64
	LearningRate float64
	Trees        []Tree
	Threshold    float64
	importances  []float64
}

type gbdtArtifact struct {
	BaseScore          float64   `json:"base_score"`
	LearningRate       float64   `json:"learning_rate"`
	Trees              []Tree    `json:"trees"`
	FeatureImportances []float64 `json:"feature_importances"`
}

func buildGradientBoosting(h *Header, data []byte, features []string) (Classifier, error) {
	var raw gbdtArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("gradient_boosting: %w", err)
	}
	threshold, err := h.threshold()
	if err != nil {
		return nil, err
	}
	m, err := NewGradientBoosting(len(features), raw.BaseScore, raw.LearningRate, raw.Trees)
	if err != nil {
		return nil, err
	}
	m.name = h.displayName("Gradient Boosting")
	m.version = h.Version
	m.Threshold = threshold

	if len(raw.FeatureImportances) > 0 {
		if len(raw.FeatureImportances) != len(features) {
			return nil, fmt.Errorf("gradient_boosting: %d importances for %d features",
				len(raw.FeatureImportances), len(features))
		}
		for i, v := range raw.FeatureImportances {
			if !isFinite(v) || v < 0 {
				return nil, fmt.Errorf("gradient_boosting: importance %d is invalid (%v)", i, v)
			}
		}
		m.importances = raw.FeatureImportances
	}
	return m, nil
}

// NewGradientBoosting 校验树结构并构造模型；learningRate 为 0 时按 1 处理。
func NewGradientBoosting(width int, baseScore, learningRate float64, trees []Tree) (*GradientBoosting, error) {
	if width <= 0 {
		return nil, fmt.Errorf("gradient_boosting: width must be positive")
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("gradient_boosting: no trees")
	}
	if learningRate == 0 {
		learningRate = 1
	}
	if !isFinite(baseScore) || !isFinite(learningRate) || learningRate < 0 {
		return nil, fmt.Errorf("gradient_boosting: invalid base_score/learning_rate")
	}
	for k := range trees {
		if err := trees[k].validate(width); err != nil {
			return nil, fmt.Errorf("gradient_boosting: tree %d: %w", k, err)
		}
	}
	m := &GradientBoosting{
		name:         "Gradient Boosting",
		width:        width,
		BaseScore:    baseScore,
		LearningRate: learningRate,
		Trees:        trees,
		Threshold:    DefaultThreshold,
	}
	m.importances = m.splitImportances()
	return m, nil
}

// splitImportances 按分裂次数统计并归一化到和为 1（没有分裂时全 0）。
func (m *GradientBoosting) splitImportances() []float64 {
	counts := make([]float64, m.width)
	total := 0.0
	for _, t := range m.Trees {
		for i := range t.Value {
			if t.Left[i] != leaf {
				counts[t.Feature[i]]++
				total++
			}
		}
	}
	if total > 0 {
		for i := range counts {
			counts[i] /= total
		}
	}
	return counts
}

func (m *GradientBoosting) Name() string    { return m.name }
func (m *GradientBoosting) Version() string { return m.version }
func (m *GradientBoosting) Width() int      { return m.width }

func (m *GradientBoosting) PredictProba(_ context.Context, rows [][]float64) ([]float64, error) {
	if err := checkRows(rows, m.width); err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, row := range rows {
		sum := 0.0
		for k := range m.Trees {
			sum += m.Trees[k].predict(row)
		}
		out[i] = sigmoid(m.BaseScore + m.LearningRate*sum)
	}
	return out, nil
}

func (m *GradientBoosting) PredictLabel(ctx context.Context, rows [][]float64) ([]int, error) {
	probs, err := m.PredictProba(ctx, rows)
	if err != nil {
		return nil, err
	}
	return labels(probs, m.Threshold), nil
}

// FeatureImportances 返回按 schema 槽位排列的重要性副本
func (m *GradientBoosting) FeatureImportances() []float64 {
	out := make([]float64, len(m.importances))
	copy(out, m.importances)
	return out
}
