package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TypeRPC 远程模型服务产物类型
const TypeRPC = "rpc"

// RPCModel 是通过 HTTP 调用外部模型服务的 Classifier 实现。
// 适用于 TensorFlow Serving、TorchServe、Python sklearn 服务等。
//
// 请求格式（JSON）：
//
//	{"instances": [[0, 1.2, ...], ...]}
//
// 响应格式（JSON）：
//
//	{"probabilities": [0.85, ...], "labels": [1, ...]}
//
// labels 可省略，此时按阈值从概率推导。
type RPCModel struct {
	name      string
	version   string
	width     int
	Endpoint  string // 例如 "http://localhost:8080/predict"
	Timeout   time.Duration
	Threshold float64
	Client    *http.Client
}

type rpcArtifact struct {
	Endpoint string `json:"endpoint"`
	// Timeout 毫秒
	Timeout int `json:"timeout"`
}

func buildRPC(h *Header, data []byte, features []string) (Classifier, error) {
	var raw rpcArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("rpc: %w", err)
	}
	if raw.Endpoint == "" {
		return nil, fmt.Errorf("rpc: endpoint is required")
	}
	threshold, err := h.threshold()
	if err != nil {
		return nil, err
	}
	m := NewRPCModel(h.displayName("Remote Model"), raw.Endpoint, len(features),
		time.Duration(raw.Timeout)*time.Millisecond)
	m.version = h.Version
	m.Threshold = threshold
	return m, nil
}

func NewRPCModel(name, endpoint string, width int, timeout time.Duration) *RPCModel {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RPCModel{
		name:      name,
		width:     width,
		Endpoint:  endpoint,
		Timeout:   timeout,
		Threshold: DefaultThreshold,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (m *RPCModel) Name() string    { return m.name }
func (m *RPCModel) Version() string { return m.version }
func (m *RPCModel) Width() int      { return m.width }

func (m *RPCModel) PredictProba(ctx context.Context, rows [][]float64) ([]float64, error) {
	probs, _, err := m.call(ctx, rows)
	return probs, err
}

func (m *RPCModel) PredictLabel(ctx context.Context, rows [][]float64) ([]int, error) {
	probs, lbls, err := m.call(ctx, rows)
	if err != nil {
		return nil, err
	}
	if lbls == nil {
		lbls = labels(probs, m.Threshold)
	}
	return lbls, nil
}

// call 调用远程模型服务进行批量预测。
func (m *RPCModel) call(ctx context.Context, rows [][]float64) ([]float64, []int, error) {
	if err := checkRows(rows, m.width); err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return []float64{}, []int{}, nil
	}
	// 零值 RPCModel 可能被并发调用，这里不回写 m.Client
	client := m.Client
	if client == nil {
		client = &http.Client{Timeout: m.Timeout}
	}

	// 构建请求
	jsonData, err := json.Marshal(map[string]any{"instances": rows})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// 发送请求
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("rpc error: status=%d, read body failed: %w", resp.StatusCode, err)
		}
		return nil, nil, fmt.Errorf("rpc error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	// 解析响应
	var result struct {
		Probabilities []float64 `json:"probabilities"`
		Labels        []int     `json:"labels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Probabilities) != len(rows) {
		return nil, nil, fmt.Errorf("response probabilities count mismatch: expected %d, got %d",
			len(rows), len(result.Probabilities))
	}
	if result.Labels != nil && len(result.Labels) != len(rows) {
		return nil, nil, fmt.Errorf("response labels count mismatch: expected %d, got %d",
			len(rows), len(result.Labels))
	}
	return result.Probabilities, result.Labels, nil
}
