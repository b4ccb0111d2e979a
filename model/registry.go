package model

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/retainiq/core"
)

// Builder 根据 model.json 构建 Classifier。features 为 schema 特征名（按顺序），宽度即 len(features)。
// 内置类型在 init 中注册；自定义模型在入口处调用 Register 即可被产物驱动。
type Builder func(header *Header, data []byte, features []string) (Classifier, error)

var (
	builders   = make(map[string]Builder)
	buildersMu sync.RWMutex
)

// Register 注册一种模型类型的构建逻辑，例如 Register("logistic_regression", buildLR)
func Register(typeName string, builder Builder) {
	if typeName == "" || builder == nil {
		return
	}
	buildersMu.Lock()
	defer buildersMu.Unlock()
	builders[typeName] = builder
}

// SupportedTypes 返回当前已注册的模型类型（排序），用于错误提示。
func SupportedTypes() []string {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	types := make([]string, 0, len(builders))
	for t := range builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Build 按产物类型构建模型；未注册类型返回 NOT_SUPPORTED（包含已支持列表）。
func Build(header *Header, data []byte, features []string) (Classifier, error) {
	buildersMu.RLock()
	b, ok := builders[header.Type]
	buildersMu.RUnlock()
	if !ok {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeNotSupported,
			fmt.Sprintf("unsupported model type %q (supported: %v)", header.Type, SupportedTypes()))
	}
	return b(header, data, features)
}

func init() {
	Register(TypeLogisticRegression, buildLogisticRegression)
	Register(TypeGradientBoosting, buildGradientBoosting)
	Register(TypeRPC, buildRPC)
}
