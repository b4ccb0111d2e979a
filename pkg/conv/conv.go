// Package conv 提供类型转换工具，用于把特征库 / 表单中的松散取值转换为领域类型。
package conv

import (
	"strconv"
	"strings"
)

// ToFloat64 将 any 转为 float64。
// 支持 float64、float32、int、int64、int32；bool 视为 1.0/0.0。
func ToFloat64(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case bool:
		if val {
			return 1.0, true
		}
		return 0.0, true
	default:
		return 0, false
	}
}

// ParseFloat64 同 ToFloat64，另外接受数字字符串；空白字符串视为 0
// （原始数据中新入网用户的 TotalCharges 为空格）。
func ParseFloat64(v any) (float64, bool) {
	if s, ok := ToString(v); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return ToFloat64(v)
}

// ToString 将 any 转为 string。
// 仅支持 string 类型，否则返回 ("", false)。
func ToString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
