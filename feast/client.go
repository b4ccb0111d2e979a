// Package feast 从 Feast Feature Store 在线读取客户画像。
package feast

import (
	"context"
	"time"
)

// Client 是 Feast Feature Store 在线特征的客户端接口。
//
// 只包含在线预测需要的能力；历史特征与物化由训练侧负责。
//
// 参考：https://github.com/feast-dev/feast
type Client interface {
	// GetOnlineFeatures 获取在线特征（用于实时预测）
	//
	// 参数：
	//   - features: 特征引用列表，例如 ["telco_customer:tenure", "telco_customer:Contract"]
	//   - entityRows: 实体行，例如 [{"customer_id": "7590-VHVEG"}]
	GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error)

	// Close 关闭客户端连接
	Close() error
}

// GetOnlineFeaturesRequest 获取在线特征请求
type GetOnlineFeaturesRequest struct {
	// Features 特征引用列表
	Features []string

	// EntityRows 实体行
	EntityRows []map[string]interface{}

	// Project 项目名称（可选，默认使用客户端配置）
	Project string
}

// GetOnlineFeaturesResponse 获取在线特征响应
type GetOnlineFeaturesResponse struct {
	// FeatureVectors 特征向量列表，每个元素对应一个实体行
	FeatureVectors []FeatureVector
}

// FeatureVector 特征向量
type FeatureVector struct {
	// Values 特征值，key 为特征引用；空值（实体不存在）不出现在 map 中
	Values map[string]interface{}

	// EntityRow 对应的实体行
	EntityRow map[string]interface{}
}

// ClientOption Feast 客户端配置选项
type ClientOption func(*ClientConfig)

// ClientConfig Feast 客户端配置
type ClientConfig struct {
	// Endpoint 服务端点
	Endpoint string

	// Project 项目名称
	Project string

	// Timeout 单次请求超时
	Timeout time.Duration

	// Auth 认证信息
	Auth *AuthConfig
}

// AuthConfig 认证配置
type AuthConfig struct {
	// Type 认证类型：目前支持 static（gRPC 静态 Token）
	Type string

	// Token 静态 Token
	Token string

	// TLS 是否启用 TLS
	TLS bool
}

// WithTimeout 配置选项：设置超时时间
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithAuth 配置选项：设置认证信息
func WithAuth(auth *AuthConfig) ClientOption {
	return func(c *ClientConfig) {
		c.Auth = auth
	}
}
