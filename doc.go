// Package retainiq 是一个客户流失预测服务（Customer Churn Prediction）。
//
// 设计要点：
// - Schema-first: 特征向量严格按 feature_meta.json 的列顺序编码，schema 之外的名字绝不写入
// - Artifacts 可热替换: schema / scaler / model 作为一个 Bundle 原子切换
// - 模型可扩展: 按 model.json 的 type 注册构造器（本地 LR / GBDT 或远程 RPC 模型）
package retainiq

import (
	"github.com/rushteam/retainiq/core"
	"github.com/rushteam/retainiq/predictor"
)

// 轻量 facade：便于用户直接 import "retainiq" 使用核心抽象。
type CustomerProfile = core.CustomerProfile
type PredictionResult = core.PredictionResult
type RiskTier = core.RiskTier
type Predictor = predictor.Predictor
type Options = predictor.Options

const (
	RiskHigh   = core.RiskHigh
	RiskMedium = core.RiskMedium
	RiskLow    = core.RiskLow
)

// NewCustomerProfile 返回看板默认值填充的画像
func NewCustomerProfile() *CustomerProfile { return core.NewCustomerProfile() }
