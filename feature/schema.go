package feature

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rushteam/retainiq/core"
)

// FeatureMetadata 特征元数据，对应训练侧导出的 feature_meta.json
//
//	{
//	  "feature_columns": ["SeniorCitizen", "tenure", "MonthlyCharges", ...],
//	  "feature_count": 23,
//	  "label_column": "Churn",
//	  "model_version": "2024.06",
//	  "normalized": true
//	}
type FeatureMetadata struct {
	// FeatureColumns 特征列名列表（按顺序）
	FeatureColumns []string `json:"feature_columns"`
	// FeatureCount 特征数量（可选，非 0 时必须与 FeatureColumns 一致）
	FeatureCount int `json:"feature_count"`
	// LabelColumn 标签列名
	LabelColumn string `json:"label_column"`
	// ModelVersion 模型版本
	ModelVersion string `json:"model_version"`
	// Normalized 模型训练时数值特征是否做了标准化
	Normalized bool `json:"normalized"`
	// CreatedAt 创建时间
	CreatedAt string `json:"created_at"`
}

// Schema 是经过校验的特征 schema：有序、非空、名字唯一。
// 构造后只读，可在多个请求间共享。
type Schema struct {
	columns    []string
	index      map[string]int
	version    string
	normalized bool
}

func schemaMismatch(format string, args ...any) error {
	return core.NewDomainError(core.ModuleFeature, core.ErrorCodeSchemaMismatch, fmt.Sprintf(format, args...))
}

// NewSchema 校验并创建 schema。空列表、空白名字、重复名字都返回 SCHEMA_MISMATCH。
func NewSchema(columns []string) (*Schema, error) {
	if len(columns) == 0 {
		return nil, schemaMismatch("feature schema is empty")
	}
	s := &Schema{
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, name := range columns {
		if strings.TrimSpace(name) == "" {
			return nil, schemaMismatch("feature schema: blank name at position %d", i)
		}
		if prev, dup := s.index[name]; dup {
			return nil, schemaMismatch("feature schema: duplicate name %q at positions %d and %d", name, prev, i)
		}
		s.columns[i] = name
		s.index[name] = i
	}
	return s, nil
}

// Schema 校验元数据并构建 Schema
func (m *FeatureMetadata) Schema() (*Schema, error) {
	if m == nil {
		return nil, schemaMismatch("feature metadata is nil")
	}
	if m.FeatureCount != 0 && m.FeatureCount != len(m.FeatureColumns) {
		return nil, schemaMismatch("feature metadata: feature_count=%d but %d feature_columns",
			m.FeatureCount, len(m.FeatureColumns))
	}
	s, err := NewSchema(m.FeatureColumns)
	if err != nil {
		return nil, err
	}
	s.version = m.ModelVersion
	s.normalized = m.Normalized
	return s, nil
}

// ParseSchema 解析 feature_meta.json 内容
func ParseSchema(data []byte) (*Schema, error) {
	var meta FeatureMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, core.WrapDomainError(core.ModuleFeature, core.ErrorCodeSchemaMismatch,
			"解析特征元数据失败", err)
	}
	return meta.Schema()
}

// Len 特征数量
func (s *Schema) Len() int { return len(s.columns) }

// Names 返回特征名副本（按顺序）
func (s *Schema) Names() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Index 返回特征名的位置
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Has 判断 schema 中是否存在该特征
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Version 模型版本
func (s *Schema) Version() string { return s.version }

// Normalized 数值特征是否需要标准化
func (s *Schema) Normalized() bool { return s.normalized }

// Equal 判断两个特征名列表是否完全一致（顺序敏感）
func (s *Schema) Equal(names []string) bool {
	if len(names) != len(s.columns) {
		return false
	}
	for i, n := range names {
		if s.columns[i] != n {
			return false
		}
	}
	return true
}
