package feature

// Vector 是按 schema 顺序排列的特征向量（单行表格输入）。
// 长度与 schema 一致，构造后只读。
type Vector struct {
	names  []string
	values []float64
}

// NewVector 按给定名字和值构造向量（主要用于测试和远程输入）。
func NewVector(names []string, values []float64) *Vector {
	return &Vector{names: names, values: values}
}

// Len 向量长度
func (v *Vector) Len() int { return len(v.values) }

// Names 特征名（按顺序）
func (v *Vector) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Values 特征值副本（按顺序）
func (v *Vector) Values() []float64 {
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}

// Get 按特征名取值
func (v *Vector) Get(name string) (float64, bool) {
	for i, n := range v.names {
		if n == name {
			if i < len(v.values) {
				return v.values[i], true
			}
			return 0, false
		}
	}
	return 0, false
}

// Map 转为 map 形式（调试 / 展示）
func (v *Vector) Map() map[string]float64 {
	m := make(map[string]float64, len(v.names))
	for i, n := range v.names {
		if i < len(v.values) {
			m[n] = v.values[i]
		}
	}
	return m
}

// NonZero 返回非零特征名（调试用）
func (v *Vector) NonZero() []string {
	var out []string
	for i, val := range v.values {
		if val != 0 && i < len(v.names) {
			out = append(out, v.names[i])
		}
	}
	return out
}
