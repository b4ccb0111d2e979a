package feature

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rushteam/retainiq/core"
)

// 数值特征名（与训练数据列名一致）
const (
	FieldTenure         = "tenure"
	FieldMonthlyCharges = "MonthlyCharges"
	FieldTotalCharges   = "TotalCharges"
)

// NumericFields 所有数值特征名
var NumericFields = []string{FieldTenure, FieldMonthlyCharges, FieldTotalCharges}

// Standardizer 对数值特征做 Z-score 标准化：z = (x - μ) / σ
type Standardizer interface {
	// Mode 标准化方式（artifact / fallback / none）
	Mode() core.Standardization
	// Standardize 标准化单个值（指定特征名）
	Standardize(name string, value float64) float64
}

// ScalerParams 标准化参数
type ScalerParams struct {
	// Mean 均值
	Mean float64 `json:"mean"`
	// Std 标准差
	Std float64 `json:"std"`
}

// FeatureScaler 特征标准化器，对应 feature_scaler.json
// 每个特征对应一个 ScalerParams，包含 mean 和 std
//
//	{"tenure": {"mean": 32.37, "std": 24.56}, "MonthlyCharges": {...}, "TotalCharges": {...}}
type FeatureScaler map[string]ScalerParams

// ParseScaler 解析 feature_scaler.json 内容
func ParseScaler(data []byte) (FeatureScaler, error) {
	var scaler FeatureScaler
	if err := json.Unmarshal(data, &scaler); err != nil {
		return nil, fmt.Errorf("解析特征标准化器失败: %w", err)
	}
	return scaler, nil
}

func (s FeatureScaler) Mode() core.Standardization { return core.StandardizationArtifact }

// Standardize 特征不在 scaler 中或 std <= 0 时返回原值。
func (s FeatureScaler) Standardize(name string, value float64) float64 {
	if params, ok := s[name]; ok && params.Std > 0 {
		return (value - params.Mean) / params.Std
	}
	return value
}

// Params 返回特征的标准化参数
func (s FeatureScaler) Params(name string) (ScalerParams, bool) {
	params, ok := s[name]
	return params, ok && params.Std > 0
}

// Validate 检查 schema 中出现的每个数值特征都有合法参数（std > 0 且有限）。
func (s FeatureScaler) Validate(schema *Schema) error {
	for _, name := range NumericFields {
		if !schema.Has(name) {
			continue
		}
		params, ok := s[name]
		if !ok {
			return fmt.Errorf("feature scaler: missing params for %q", name)
		}
		if !isFinite(params.Mean) || !isFinite(params.Std) || params.Std <= 0 {
			return fmt.Errorf("feature scaler: invalid params for %q (mean=%v, std=%v)", name, params.Mean, params.Std)
		}
	}
	return nil
}

// fallbackTable 是缺少 scaler 产物时使用的静态均值/标准差（训练集统计的近似值）。
var fallbackTable = map[string]ScalerParams{
	FieldTenure:         {Mean: 32.49, Std: 24.57},
	FieldMonthlyCharges: {Mean: 64.93, Std: 30.14},
	FieldTotalCharges:   {Mean: 2299.33, Std: 2279.00},
}

type fallbackScaler struct {
	FeatureScaler
}

func (fallbackScaler) Mode() core.Standardization { return core.StandardizationFallback }

// FallbackScaler 返回静态表标准化器，结果标记为近似（未校准）。
func FallbackScaler() Standardizer {
	table := make(FeatureScaler, len(fallbackTable))
	for k, v := range fallbackTable {
		table[k] = v
	}
	return fallbackScaler{FeatureScaler: table}
}

type identity struct{}

func (identity) Mode() core.Standardization { return core.StandardizationNone }
func (identity) Standardize(_ string, v float64) float64 { return v }

// IdentityStandardizer 原始数值，不做标准化（模型按原始值训练）。
func IdentityStandardizer() Standardizer {
	return identity{}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
