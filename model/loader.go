package model

import (
	"context"
	"fmt"

	"github.com/rushteam/retainiq/artifact"
	"github.com/rushteam/retainiq/core"
	"github.com/rushteam/retainiq/feature"
)

// Load 读取并构建模型产物。
// 产物声明了 feature_names 时必须与 schema 完全一致（顺序敏感），否则返回 SCHEMA_MISMATCH。
func Load(ctx context.Context, fetcher artifact.Fetcher, source string, schema *feature.Schema) (Classifier, error) {
	if schema == nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeSchemaMismatch, "model: schema is nil")
	}
	data, err := fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	m, _, err := Parse(data, schema)
	return m, err
}

// Parse 从 model.json 内容构建模型，同时返回解析出的头部。
func Parse(data []byte, schema *feature.Schema) (Classifier, *Header, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, nil, err
	}
	if len(h.FeatureNames) > 0 && !schema.Equal(h.FeatureNames) {
		return nil, nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeSchemaMismatch,
			fmt.Sprintf("model %q was trained on %d features that differ from the %d-feature schema",
				h.Type, len(h.FeatureNames), schema.Len()))
	}
	m, err := Build(h, data, schema.Names())
	if err != nil {
		return nil, nil, err
	}
	if m.Width() != schema.Len() {
		return nil, nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeSchemaMismatch,
			fmt.Sprintf("model width %d != schema width %d", m.Width(), schema.Len()))
	}
	return m, h, nil
}
