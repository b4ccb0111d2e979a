package feast

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/feast-dev/feast/sdk/go/protos/feast/types"
)

// DefaultGRPCPort Feast Serving 默认 gRPC 端口
const DefaultGRPCPort = 6565

// GrpcClient 是基于官方 Feast Go SDK 的 gRPC 客户端实现。
//
// 工程特征：
//   - 实时性：优秀（gRPC 低延迟）
//   - 性能：高（二进制协议、连接复用）
type GrpcClient struct {
	// client 官方 SDK 的 gRPC 客户端
	client *feastsdk.GrpcClient

	// Project 项目名称
	Project string

	// Endpoint 服务端点（用于信息展示）
	Endpoint string

	timeout time.Duration
}

// NewGrpcClient 创建一个基于官方 SDK 的 Feast gRPC 客户端。
//
// 参数：
//   - endpoint: "localhost:6565" 或 "grpc://localhost:6565"，不带端口时使用 6565
//   - project: 项目名称
func NewGrpcClient(endpoint, project string, opts ...ClientOption) (*GrpcClient, error) {
	host, port := parseEndpoint(endpoint)
	if host == "" {
		return nil, fmt.Errorf("feast endpoint is required")
	}
	if port == 0 {
		port = DefaultGRPCPort
	}

	config := &ClientConfig{
		Endpoint: fmt.Sprintf("%s:%d", host, port),
		Project:  project,
		Timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(config)
	}

	var (
		client *feastsdk.GrpcClient
		err    error
	)
	if config.Auth != nil && config.Auth.Type == "static" && config.Auth.Token != "" {
		// 使用静态 Token 认证
		security := feastsdk.SecurityConfig{
			EnableTLS:  config.Auth.TLS,
			Credential: feastsdk.NewStaticCredential(config.Auth.Token),
		}
		client, err = feastsdk.NewSecureGrpcClient(host, port, security)
	} else {
		client, err = feastsdk.NewGrpcClient(host, port)
	}
	if err != nil {
		return nil, fmt.Errorf("创建 Feast gRPC 客户端失败: %w", err)
	}

	return &GrpcClient{
		client:   client,
		Project:  project,
		Endpoint: config.Endpoint,
		timeout:  config.Timeout,
	}, nil
}

// GetOnlineFeatures 获取在线特征（实现 Client 接口）
func (c *GrpcClient) GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	// 1. 验证请求
	if len(req.Features) == 0 {
		return nil, fmt.Errorf("features are required")
	}
	if len(req.EntityRows) == 0 {
		return nil, fmt.Errorf("entity rows are required")
	}
	project := req.Project
	if project == "" {
		project = c.Project
	}
	if project == "" {
		return nil, fmt.Errorf("project is required")
	}

	// 2. 转换实体行为 SDK 格式（Row 是 map[string]*types.Value）
	entityRows := make([]feastsdk.Row, len(req.EntityRows))
	for i, row := range req.EntityRows {
		entityRow := make(feastsdk.Row, len(row))
		for k, v := range row {
			entityRow[k] = convertToSDKValue(v)
		}
		entityRows[i] = entityRow
	}

	// 3. 调用官方 SDK
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	sdkResp, err := c.client.GetOnlineFeatures(ctx, &feastsdk.OnlineFeaturesRequest{
		Features: req.Features,
		Entities: entityRows,
		Project:  project,
	})
	if err != nil {
		return nil, fmt.Errorf("feast get online features failed: %w", err)
	}

	// 4. 转换 SDK 响应为领域模型
	rows := sdkResp.Rows()
	if len(rows) != len(req.EntityRows) {
		return nil, fmt.Errorf("response row count mismatch: expected %d, got %d", len(req.EntityRows), len(rows))
	}
	featureVectors := make([]FeatureVector, len(rows))
	for i, row := range rows {
		values := make(map[string]interface{}, len(req.Features))
		for _, name := range req.Features {
			if v := convertFromSDKValue(row[name]); v != nil {
				values[name] = v
			}
		}
		featureVectors[i] = FeatureVector{
			Values:    values,
			EntityRow: req.EntityRows[i],
		}
	}
	return &GetOnlineFeaturesResponse{FeatureVectors: featureVectors}, nil
}

// Close 关闭客户端连接（实现 Client 接口）
// 连接由 SDK 内部的 gRPC 库管理。
func (c *GrpcClient) Close() error {
	c.client = nil
	return nil
}

// convertToSDKValue 将实体键转换为 SDK 值类型
func convertToSDKValue(v interface{}) *types.Value {
	switch val := v.(type) {
	case string:
		return feastsdk.StrVal(val)
	case int:
		return feastsdk.Int64Val(int64(val))
	case int64:
		return feastsdk.Int64Val(val)
	case int32:
		return feastsdk.Int64Val(int64(val))
	case float64:
		return feastsdk.DoubleVal(val)
	case float32:
		return feastsdk.FloatVal(val)
	case bool:
		return feastsdk.BoolVal(val)
	case []byte:
		return feastsdk.BytesVal(val)
	default:
		return feastsdk.StrVal(fmt.Sprintf("%v", val))
	}
}

// convertFromSDKValue 从 SDK 值类型转换为 Go 值；空值（实体不存在 / 字段为 null）返回 nil。
// 数值统一为 float64，布尔保持 bool，字符串保持 string。
func convertFromSDKValue(val *types.Value) interface{} {
	if val == nil {
		return nil
	}
	switch v := val.GetVal().(type) {
	case *types.Value_StringVal:
		return v.StringVal
	case *types.Value_Int64Val:
		return float64(v.Int64Val)
	case *types.Value_Int32Val:
		return float64(v.Int32Val)
	case *types.Value_DoubleVal:
		return v.DoubleVal
	case *types.Value_FloatVal:
		return float64(v.FloatVal)
	case *types.Value_BoolVal:
		return v.BoolVal
	case *types.Value_BytesVal:
		return string(v.BytesVal)
	default:
		return nil
	}
}

// parseEndpoint 解析端点地址，返回 host 和 port
func parseEndpoint(endpoint string) (string, int) {
	endpoint = strings.TrimPrefix(endpoint, "grpc://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimSuffix(endpoint, "/")

	parts := strings.Split(endpoint, ":")
	if len(parts) == 2 {
		if port, err := strconv.Atoi(parts[1]); err == nil {
			return parts[0], port
		}
	}
	return endpoint, 0
}

// 确保 GrpcClient 实现了 Client 接口
var _ Client = (*GrpcClient)(nil)
