// Package inference 把编码后的特征行交给分类器，并把分类器的任何失败统一为 InferenceError。
package inference

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rushteam/retainiq/core"
	"github.com/rushteam/retainiq/feature"
	"github.com/rushteam/retainiq/model"
)

// DefaultTopK 默认展示的重要特征数量
const DefaultTopK = 10

// InferenceError 携带期望宽度与实际宽度，便于定位 schema 漂移。
// 通过 Unwrap 暴露 DomainError（INFERENCE_ERROR），调用方用 core.IsInferenceError 判断。
type InferenceError struct {
	Expected int
	Actual   int
	Reason   string
	Cause    error
}

func (e *InferenceError) Error() string {
	msg := fmt.Sprintf("inference failed (expected %d features, got %d): %s", e.Expected, e.Actual, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *InferenceError) Unwrap() error {
	return core.WrapDomainError(core.ModuleInference, core.ErrorCodeInference, e.Reason, e.Cause)
}

// Invoker 绑定一个分类器与其 schema。无可变状态，可并发使用。
type Invoker struct {
	classifier model.Classifier
	schema     *feature.Schema
}

// NewInvoker 创建 Invoker，分类器宽度必须与 schema 一致。
func NewInvoker(classifier model.Classifier, schema *feature.Schema) (*Invoker, error) {
	if classifier == nil || schema == nil {
		return nil, core.NewDomainError(core.ModuleInference, core.ErrorCodeStartup, "invoker: classifier and schema are required")
	}
	if classifier.Width() != schema.Len() {
		return nil, core.NewDomainError(core.ModuleInference, core.ErrorCodeSchemaMismatch,
			fmt.Sprintf("invoker: classifier width %d != schema width %d", classifier.Width(), schema.Len()))
	}
	return &Invoker{classifier: classifier, schema: schema}, nil
}

// Classifier 底层分类器
func (iv *Invoker) Classifier() model.Classifier { return iv.classifier }

// Invoke 对单行特征做推理，返回概率、离散标签与风险等级。
// 不做重试：任何失败都以 InferenceError 返回。
func (iv *Invoker) Invoke(ctx context.Context, v *feature.Vector) (*core.PredictionResult, error) {
	expected := iv.schema.Len()
	if v == nil {
		return nil, &InferenceError{Expected: expected, Reason: "nil feature vector"}
	}
	if v.Len() != expected {
		return nil, &InferenceError{Expected: expected, Actual: v.Len(), Reason: "feature width mismatch"}
	}
	row := v.Values()
	names := v.Names()
	for i, x := range row {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, &InferenceError{Expected: expected, Actual: len(row),
				Reason: fmt.Sprintf("feature %q is not finite", names[i])}
		}
	}
	rows := [][]float64{row}

	probs, err := iv.classifier.PredictProba(ctx, rows)
	if err != nil {
		return nil, &InferenceError{Expected: expected, Actual: len(row), Reason: "predict_proba", Cause: err}
	}
	if len(probs) != 1 {
		return nil, &InferenceError{Expected: expected, Actual: len(row),
			Reason: fmt.Sprintf("classifier returned %d probabilities for 1 row", len(probs))}
	}
	p := probs[0]
	if math.IsNaN(p) || p < 0 || p > 1 {
		return nil, &InferenceError{Expected: expected, Actual: len(row),
			Reason: fmt.Sprintf("probability %v out of [0, 1]", p)}
	}

	lbls, err := iv.classifier.PredictLabel(ctx, rows)
	if err != nil {
		return nil, &InferenceError{Expected: expected, Actual: len(row), Reason: "predict", Cause: err}
	}
	if len(lbls) != 1 {
		return nil, &InferenceError{Expected: expected, Actual: len(row),
			Reason: fmt.Sprintf("classifier returned %d labels for 1 row", len(lbls))}
	}

	return &core.PredictionResult{
		Probability:  p,
		Label:        lbls[0],
		Tier:         core.ClassifyRisk(p),
		ModelName:    iv.classifier.Name(),
		ModelVersion: iv.classifier.Version(),
	}, nil
}

// TopFeatures 返回重要性最高的 k 个特征（降序，同分按 schema 顺序）。
// 分类器不支持重要性时返回 false；k <= 0 时使用 DefaultTopK。
func (iv *Invoker) TopFeatures(k int) ([]core.FeatureImportance, bool) {
	imp, ok := iv.classifier.(model.Importancer)
	if !ok {
		return nil, false
	}
	scores := imp.FeatureImportances()
	names := iv.schema.Names()
	if len(scores) != len(names) {
		return nil, false
	}
	if k <= 0 {
		k = DefaultTopK
	}

	out := make([]core.FeatureImportance, len(names))
	for i, name := range names {
		out[i] = core.FeatureImportance{Name: name, Score: scores[i]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, true
}
