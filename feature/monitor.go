package feature

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/retainiq/core"
)

// DefaultMonitorSamples 每个数值特征保留的最近样本数
const DefaultMonitorSamples = 1000

// NumericStats 数值特征在最近样本窗口上的统计。
// Shift 为窗口均值相对参考均值偏移了多少个参考标准差（无参考时为 0）。
type NumericStats struct {
	Name      string        `json:"name"`
	Count     int64         `json:"count"`
	Mean      float64       `json:"mean"`
	Std       float64       `json:"std"`
	Min       float64       `json:"min"`
	Max       float64       `json:"max"`
	P50       float64       `json:"p50"`
	P95       float64       `json:"p95"`
	P99       float64       `json:"p99"`
	Reference *ScalerParams `json:"reference,omitempty"`
	Shift     float64       `json:"shift"`
}

// MonitorSnapshot 监控快照
type MonitorSnapshot struct {
	Observed int64          `json:"observed"`
	Since    time.Time      `json:"since"`
	Numerics []NumericStats `json:"numerics"`
	// Categories 类别组 -> 取值 -> 次数
	Categories map[string]map[string]int64 `json:"categories"`
	// Baseline 类别组 -> 落到基准类别（无独立槽位、编码为全 0）的次数
	Baseline map[string]int64 `json:"baseline"`
}

// Monitor 记录进入编码器的原始画像分布，用于观察输入相对训练分布的漂移。
// 可被多个 goroutine 并发使用。
type Monitor struct {
	mu         sync.Mutex
	encoder    *Encoder
	maxSamples int
	observed   int64
	since      time.Time
	counts     map[string]int64
	samples    map[string][]float64
	categories map[string]map[string]int64
	baseline   map[string]int64
}

// NewMonitor 为编码器创建监控；maxSamples <= 0 时使用 DefaultMonitorSamples。
func NewMonitor(enc *Encoder, maxSamples int) *Monitor {
	if maxSamples <= 0 {
		maxSamples = DefaultMonitorSamples
	}
	return &Monitor{
		encoder:    enc,
		maxSamples: maxSamples,
		since:      time.Now(),
		counts:     make(map[string]int64),
		samples:    make(map[string][]float64),
		categories: make(map[string]map[string]int64),
		baseline:   make(map[string]int64),
	}
}

// Observe 记录一次画像（应在校验通过后调用）
func (m *Monitor) Observe(p *core.CustomerProfile) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.observed++
	for _, b := range m.encoder.numerics {
		m.counts[b.name]++
		values := m.samples[b.name]
		if len(values) >= m.maxSamples {
			// 移除最旧的样本
			values = values[1:]
		}
		m.samples[b.name] = append(values, b.get(p))
	}

	for _, g := range categoryGroups {
		v := g.get(p)
		if m.categories[g.Name] == nil {
			m.categories[g.Name] = make(map[string]int64)
		}
		m.categories[g.Name][v]++
		if !m.encoder.bound(g.Name, v) {
			m.baseline[g.Name]++
		}
	}
}

// Snapshot 计算当前统计（副本）
func (m *Monitor) Snapshot() MonitorSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := MonitorSnapshot{
		Observed:   m.observed,
		Since:      m.since,
		Categories: make(map[string]map[string]int64, len(m.categories)),
		Baseline:   make(map[string]int64, len(m.baseline)),
	}
	for _, b := range m.encoder.numerics {
		st := computeStats(m.samples[b.name])
		st.Name = b.name
		st.Count = m.counts[b.name]
		if ref, ok := m.encoder.reference(b.name); ok {
			st.Reference = &ref
			if st.Count > 0 {
				st.Shift = (st.Mean - ref.Mean) / ref.Std
			}
		}
		s.Numerics = append(s.Numerics, st)
	}
	for g, values := range m.categories {
		c := make(map[string]int64, len(values))
		for v, n := range values {
			c[v] = n
		}
		s.Categories[g] = c
	}
	for g, n := range m.baseline {
		s.Baseline[g] = n
	}
	return s
}

func computeStats(values []float64) NumericStats {
	if len(values) == 0 {
		return NumericStats{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	st := NumericStats{Min: sorted[0], Max: sorted[len(sorted)-1]}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	st.Mean = sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - st.Mean) * (v - st.Mean)
	}
	st.Std = math.Sqrt(variance / float64(len(values)))

	st.P50 = percentile(sorted, 0.5)
	st.P95 = percentile(sorted, 0.95)
	st.P99 = percentile(sorted, 0.99)
	return st
}

// percentile 线性插值分位数，sorted 需已排序
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
