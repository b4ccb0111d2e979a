package feature

import (
	"github.com/rushteam/retainiq/core"
)

// 类别特征组名（One-Hot 槽位名为 "<Group>_<Value>"）
const (
	GroupInternetService = "InternetService"
	GroupContract        = "Contract"
	GroupPaymentMethod   = "PaymentMethod"
)

// boolField 描述一个布尔属性可能对应的 schema 槽位。
// Candidates 按优先级排列：直接列名（如 "PaperlessBilling"）或
// pandas get_dummies(drop_first=True) 导出的列名（如 "PaperlessBilling_Yes"）。
type boolField struct {
	Name       string
	Candidates []string
	get        func(p *core.CustomerProfile) bool
}

func yesNoField(name string, get func(p *core.CustomerProfile) bool) boolField {
	return boolField{Name: name, Candidates: []string{name, name + "_Yes"}, get: get}
}

var boolFields = []boolField{
	yesNoField("SeniorCitizen", func(p *core.CustomerProfile) bool { return p.SeniorCitizen }),
	yesNoField("Partner", func(p *core.CustomerProfile) bool { return p.Partner }),
	yesNoField("Dependents", func(p *core.CustomerProfile) bool { return p.Dependents }),
	yesNoField("PhoneService", func(p *core.CustomerProfile) bool { return p.PhoneService }),
	yesNoField("MultipleLines", func(p *core.CustomerProfile) bool { return p.MultipleLines }),
	yesNoField("OnlineSecurity", func(p *core.CustomerProfile) bool { return p.OnlineSecurity }),
	yesNoField("OnlineBackup", func(p *core.CustomerProfile) bool { return p.OnlineBackup }),
	yesNoField("DeviceProtection", func(p *core.CustomerProfile) bool { return p.DeviceProtection }),
	yesNoField("TechSupport", func(p *core.CustomerProfile) bool { return p.TechSupport }),
	yesNoField("StreamingTV", func(p *core.CustomerProfile) bool { return p.StreamingTV }),
	yesNoField("StreamingMovies", func(p *core.CustomerProfile) bool { return p.StreamingMovies }),
	yesNoField("PaperlessBilling", func(p *core.CustomerProfile) bool { return p.PaperlessBilling }),
	{
		Name:       "gender",
		Candidates: []string{"gender_Male", "gender"},
		get:        func(p *core.CustomerProfile) bool { return p.GenderMale },
	},
}

type categoryGroup struct {
	Name   string
	Values []string
	get    func(p *core.CustomerProfile) string
}

var categoryGroups = []categoryGroup{
	{
		Name:   GroupInternetService,
		Values: core.InternetService("").Values(),
		get:    func(p *core.CustomerProfile) string { return string(p.InternetService) },
	},
	{
		Name:   GroupContract,
		Values: core.Contract("").Values(),
		get:    func(p *core.CustomerProfile) string { return string(p.Contract) },
	},
	{
		Name:   GroupPaymentMethod,
		Values: core.PaymentMethod("").Values(),
		get:    func(p *core.CustomerProfile) string { return string(p.PaymentMethod) },
	},
}

type numericField struct {
	Name string
	get  func(p *core.CustomerProfile) float64
}

var numericFields = []numericField{
	{Name: FieldTenure, get: func(p *core.CustomerProfile) float64 { return p.Tenure }},
	{Name: FieldMonthlyCharges, get: func(p *core.CustomerProfile) float64 { return p.MonthlyCharges }},
	{Name: FieldTotalCharges, get: func(p *core.CustomerProfile) float64 { return p.TotalCharges }},
}

// OneHotSlot 返回类别取值对应的 One-Hot 槽位名，例如 "Contract_Two year"。
func OneHotSlot(group, value string) string {
	return group + "_" + value
}

// Coverage 描述 schema 覆盖了哪些画像字段，用于表单选项与模型信息展示。
type Coverage struct {
	// Booleans 布尔字段 -> 槽位名
	Booleans map[string]string `json:"booleans"`
	// Categories 类别组 -> 有独立槽位的取值（其余取值编码为全 0，即基准类别）
	Categories map[string][]string `json:"categories"`
	// Numerics schema 中出现的数值特征
	Numerics []string `json:"numerics"`
}

type boolBinding struct {
	slot int
	get  func(p *core.CustomerProfile) bool
}

type categoryBinding struct {
	group string
	slots map[string]int // value -> slot
	get   func(p *core.CustomerProfile) string
}

type numericBinding struct {
	name string
	slot int
	get  func(p *core.CustomerProfile) float64
}

// Encoder 把 CustomerProfile 编码为按 schema 排列的特征向量。
//
// 槽位在构造时一次性解析（schema 是版本化的契约），Encode 只做填充：
//   - 布尔字段：true -> 1，false -> 0
//   - 类别字段：基准类别 One-Hot，"<Group>_<Value>" 存在且匹配时为 1；
//     schema 中没有的槽位直接丢弃，绝不写入 schema 之外的名字
//   - 数值字段：按 Standardizer 标准化（或保持原值）
//   - 其余槽位为 0
//
// Encoder 无内部可变状态，可被多个 goroutine 并发使用。
type Encoder struct {
	schema       *Schema
	standardizer Standardizer
	bools        []boolBinding
	categories   []categoryBinding
	numerics     []numericBinding
	coverage     Coverage
}

// NewEncoder 基于 schema 创建编码器。standardizer 为 nil 时数值保持原值。
func NewEncoder(schema *Schema, standardizer Standardizer) (*Encoder, error) {
	if schema == nil || schema.Len() == 0 {
		return nil, schemaMismatch("encoder: feature schema is empty")
	}
	if standardizer == nil {
		standardizer = IdentityStandardizer()
	}

	e := &Encoder{
		schema:       schema,
		standardizer: standardizer,
		coverage: Coverage{
			Booleans:   make(map[string]string),
			Categories: make(map[string][]string),
		},
	}

	for _, f := range boolFields {
		for _, name := range f.Candidates {
			if slot, ok := schema.Index(name); ok {
				e.bools = append(e.bools, boolBinding{slot: slot, get: f.get})
				e.coverage.Booleans[f.Name] = name
				break
			}
		}
	}

	for _, g := range categoryGroups {
		b := categoryBinding{group: g.Name, slots: make(map[string]int), get: g.get}
		for _, v := range g.Values {
			if slot, ok := schema.Index(OneHotSlot(g.Name, v)); ok {
				b.slots[v] = slot
				e.coverage.Categories[g.Name] = append(e.coverage.Categories[g.Name], v)
			}
		}
		if len(b.slots) > 0 {
			e.categories = append(e.categories, b)
		}
	}

	for _, f := range numericFields {
		if slot, ok := schema.Index(f.Name); ok {
			e.numerics = append(e.numerics, numericBinding{name: f.Name, slot: slot, get: f.get})
			e.coverage.Numerics = append(e.coverage.Numerics, f.Name)
		}
	}

	return e, nil
}

// Encode 编码单个画像。同一画像、同一 schema 多次编码结果完全一致。
func (e *Encoder) Encode(p *core.CustomerProfile) (*Vector, error) {
	if p == nil {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput, "encoder: nil profile")
	}

	values := make([]float64, e.schema.Len())
	for _, b := range e.bools {
		if b.get(p) {
			values[b.slot] = 1
		}
	}
	for _, b := range e.categories {
		if slot, ok := b.slots[b.get(p)]; ok {
			values[slot] = 1
		}
	}
	for _, b := range e.numerics {
		values[b.slot] = e.standardizer.Standardize(b.name, b.get(p))
	}

	return &Vector{names: e.schema.columns, values: values}, nil
}

// Schema 编码器使用的 schema
func (e *Encoder) Schema() *Schema { return e.schema }

// Standardization 数值特征标准化方式
func (e *Encoder) Standardization() core.Standardization { return e.standardizer.Mode() }

// Coverage 返回 schema 对画像字段的覆盖情况（副本）
func (e *Encoder) Coverage() Coverage {
	c := Coverage{
		Booleans:   make(map[string]string, len(e.coverage.Booleans)),
		Categories: make(map[string][]string, len(e.coverage.Categories)),
		Numerics:   append([]string(nil), e.coverage.Numerics...),
	}
	for k, v := range e.coverage.Booleans {
		c.Booleans[k] = v
	}
	for k, v := range e.coverage.Categories {
		c.Categories[k] = append([]string(nil), v...)
	}
	return c
}

// bound 判断类别取值是否有独立槽位
func (e *Encoder) bound(group, value string) bool {
	for _, b := range e.categories {
		if b.group == group {
			_, ok := b.slots[value]
			return ok
		}
	}
	return false
}

// reference 数值特征的标准化参考参数（不做标准化时没有）
func (e *Encoder) reference(name string) (ScalerParams, bool) {
	if s, ok := e.standardizer.(interface {
		Params(name string) (ScalerParams, bool)
	}); ok {
		return s.Params(name)
	}
	return ScalerParams{}, false
}

// EncodeWithNames 对一次性的特征名列表编码：先校验 schema（SCHEMA_MISMATCH），再编码。
// 服务路径上应复用 Encoder，避免每个请求重复解析槽位。
func EncodeWithNames(p *core.CustomerProfile, names []string, standardizer Standardizer) (*Vector, error) {
	schema, err := NewSchema(names)
	if err != nil {
		return nil, err
	}
	enc, err := NewEncoder(schema, standardizer)
	if err != nil {
		return nil, err
	}
	return enc.Encode(p)
}
