package core

// RiskTier 是由流失概率分桶得到的风险等级。
type RiskTier string

const (
	RiskLow    RiskTier = "LOW"
	RiskMedium RiskTier = "MEDIUM"
	RiskHigh   RiskTier = "HIGH"
)

// 分桶阈值：下界归属更高一档（0.60 为 HIGH，0.35 为 MEDIUM）。
const (
	HighRiskThreshold   = 0.60
	MediumRiskThreshold = 0.35
)

// ClassifyRisk 将概率映射为风险等级，对 [0,1] 上的任意输入都有定义。
func ClassifyRisk(p float64) RiskTier {
	switch {
	case p >= HighRiskThreshold:
		return RiskHigh
	case p >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Standardization 标记数值特征的标准化方式。
type Standardization string

const (
	// StandardizationArtifact 使用训练时拟合的 scaler 产物（校准）
	StandardizationArtifact Standardization = "artifact"
	// StandardizationFallback 使用静态均值/标准差表（近似）
	StandardizationFallback Standardization = "fallback"
	// StandardizationNone 模型按原始数值训练，不做标准化
	StandardizationNone Standardization = "none"
)

// Calibrated 只有 fallback 是近似结果
func (s Standardization) Calibrated() bool {
	return s != StandardizationFallback
}

// FeatureImportance 是一个 (特征名, 重要性) 对。
type FeatureImportance struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// PredictionResult 是一次预测的输出，请求级生命周期。
type PredictionResult struct {
	Probability     float64             `json:"probability"` // 流失（正类）概率
	Label           int                 `json:"label"`       // 分类器给出的离散预测（1 = 流失）
	Tier            RiskTier            `json:"tier"`
	Standardization Standardization     `json:"standardization"`
	Calibrated      bool                `json:"calibrated"`
	ModelName       string              `json:"model_name"`
	ModelVersion    string              `json:"model_version,omitempty"`
	TopFeatures     []FeatureImportance `json:"top_features,omitempty"`
	Factors         []string            `json:"factors,omitempty"`
	Recommendation  string              `json:"recommendation,omitempty"`
}

// RetentionProbability 返回留存概率 1 - p
func (r *PredictionResult) RetentionProbability() float64 {
	return 1 - r.Probability
}

// LabelText 返回离散预测的展示文本
func (r *PredictionResult) LabelText() string {
	if r.Label == 1 {
		return "Will Churn"
	}
	return "Will Not Churn"
}
