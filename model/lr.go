package model

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
)

// TypeLogisticRegression 逻辑回归产物类型
const TypeLogisticRegression = "logistic_regression"

// LogisticRegression 实现了逻辑回归 (Logistic Regression) 二分类模型。
//
// 预测原理：
// 1. 线性加权求和: z = Intercept + sum(Coefficients_i * x_i)
// 2. Sigmoid 变换: P = 1 / (1 + exp(-z))
//
// 系数按 schema 槽位排列。逻辑回归不暴露特征重要性（没有 feature_importances_）。
type LogisticRegression struct {
	name         string
	version      string
	Intercept    float64   // 偏置项 (Bias / Intercept)
	Coefficients []float64 // 特征权重，按 schema 顺序
	Threshold    float64
}

// lrArtifact 支持两种写法：有序的 coefficients，或按特征名的 weights（+ bias）。
type lrArtifact struct {
	Intercept    float64            `json:"intercept"`
	Coefficients []float64          `json:"coefficients"`
	Bias         float64            `json:"bias"`
	Weights      map[string]float64 `json:"weights"`
}

func buildLogisticRegression(h *Header, data []byte, features []string) (Classifier, error) {
	var raw lrArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("logistic_regression: %w", err)
	}
	threshold, err := h.threshold()
	if err != nil {
		return nil, err
	}

	m := &LogisticRegression{
		name:      h.displayName("Logistic Regression"),
		version:   h.Version,
		Intercept: raw.Intercept,
		Threshold: threshold,
	}
	switch {
	case len(raw.Coefficients) > 0:
		if len(raw.Coefficients) != len(features) {
			return nil, fmt.Errorf("logistic_regression: %d coefficients for %d features",
				len(raw.Coefficients), len(features))
		}
		m.Coefficients = raw.Coefficients
	case len(raw.Weights) > 0:
		m.Intercept = raw.Bias
		m.Coefficients = make([]float64, len(features))
		known := make(map[string]bool, len(features))
		for i, name := range features {
			m.Coefficients[i] = raw.Weights[name]
			known[name] = true
		}
		for name := range raw.Weights {
			if !known[name] {
				return nil, fmt.Errorf("logistic_regression: weight for unknown feature %q", name)
			}
		}
	default:
		return nil, fmt.Errorf("logistic_regression: no coefficients")
	}

	if !isFinite(m.Intercept) {
		return nil, fmt.Errorf("logistic_regression: intercept is not finite")
	}
	for i, w := range m.Coefficients {
		if !isFinite(w) {
			return nil, fmt.Errorf("logistic_regression: coefficient %d is not finite", i)
		}
	}
	return m, nil
}

// NewLogisticRegression 直接用系数构造（测试 / 内嵌模型）
func NewLogisticRegression(intercept float64, coefficients []float64) *LogisticRegression {
	return &LogisticRegression{
		name:         "Logistic Regression",
		Intercept:    intercept,
		Coefficients: coefficients,
		Threshold:    DefaultThreshold,
	}
}

func (m *LogisticRegression) Name() string    { return m.name }
func (m *LogisticRegression) Version() string { return m.version }
func (m *LogisticRegression) Width() int      { return len(m.Coefficients) }

func (m *LogisticRegression) PredictProba(_ context.Context, rows [][]float64) ([]float64, error) {
	if err := checkRows(rows, m.Width()); err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, row := range rows {
		z := m.Intercept
		for j, x := range row {
			z += m.Coefficients[j] * x
		}
		out[i] = sigmoid(z)
	}
	return out, nil
}

func (m *LogisticRegression) PredictLabel(ctx context.Context, rows [][]float64) ([]int, error) {
	probs, err := m.PredictProba(ctx, rows)
	if err != nil {
		return nil, err
	}
	return labels(probs, m.Threshold), nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
