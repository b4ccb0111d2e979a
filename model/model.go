package model

import "context"

// Classifier 是二分类模型的最小抽象：输入按 schema 排列的特征行，输出正类（流失）概率与离散标签。
// 具体实现可以是本地模型（LR/GBDT）或远程 RPC 模型服务。
//
// 实现必须可被多个 goroutine 并发调用。
type Classifier interface {
	// Name 模型展示名，例如 "Logistic Regression"
	Name() string
	// Version 模型版本（来自模型产物，可为空）
	Version() string
	// Width 期望的输入行宽度
	Width() int
	// PredictProba 返回每一行的正类概率
	PredictProba(ctx context.Context, rows [][]float64) ([]float64, error)
	// PredictLabel 返回每一行的离散预测（1 = 流失）
	PredictLabel(ctx context.Context, rows [][]float64) ([]int, error)
}

// Importancer 是可选能力：模型暴露按输入槽位排列的全局特征重要性。
// 对应 sklearn 中带 feature_importances_ 的模型（树模型）。
type Importancer interface {
	FeatureImportances() []float64
}
