package model

import (
	"encoding/json"
	"fmt"
)

// DefaultThreshold 概率 >= 阈值时离散预测为 1
const DefaultThreshold = 0.5

// Header 是 model.json 的公共字段：
//
//	{
//	  "type": "gradient_boosting",
//	  "name": "Gradient Boosting",
//	  "version": "2024.06",
//	  "feature_names": ["SeniorCitizen", "tenure", ...],
//	  "threshold": 0.5,
//	  ...类型相关字段
//	}
type Header struct {
	Type         string   `json:"type"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	FeatureNames []string `json:"feature_names"`
	Threshold    *float64 `json:"threshold"`
}

// ParseHeader 解析 model.json 的公共字段
func ParseHeader(data []byte) (*Header, error) {
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("解析模型产物失败: %w", err)
	}
	if h.Type == "" {
		return nil, fmt.Errorf("model artifact: missing type")
	}
	return &h, nil
}

// threshold 返回有效阈值，必须落在 (0, 1) 内。
func (h *Header) threshold() (float64, error) {
	if h.Threshold == nil {
		return DefaultThreshold, nil
	}
	t := *h.Threshold
	if !(t > 0 && t < 1) {
		return 0, fmt.Errorf("model artifact: threshold %v out of (0, 1)", t)
	}
	return t, nil
}

func (h *Header) displayName(def string) string {
	if h.Name != "" {
		return h.Name
	}
	return def
}

// checkRows 校验每一行宽度
func checkRows(rows [][]float64, width int) error {
	for i, row := range rows {
		if len(row) != width {
			return fmt.Errorf("row %d: width %d, expected %d", i, len(row), width)
		}
	}
	return nil
}

func labels(probs []float64, threshold float64) []int {
	out := make([]int, len(probs))
	for i, p := range probs {
		if p >= threshold {
			out[i] = 1
		}
	}
	return out
}
