package core

import (
	"fmt"
	"math"
	"strings"
)

// CustomerProfile 是一次流失预测请求的输入：表单控件或在线特征库中的客户属性。
//
// 每次预测新建，构造后只读，不做持久化。
//   - 布尔字段：是否老年、是否有伴侣、是否开通各项服务等
//   - 数值字段：在网时长（月）、月费、累计费用
//   - 类别字段：网络类型、合约类型、付款方式
type CustomerProfile struct {
	// 布尔属性
	SeniorCitizen    bool `json:"senior_citizen"`
	Partner          bool `json:"partner"`
	Dependents       bool `json:"dependents"`
	PhoneService     bool `json:"phone_service"`
	MultipleLines    bool `json:"multiple_lines"`
	OnlineSecurity   bool `json:"online_security"`
	OnlineBackup     bool `json:"online_backup"`
	DeviceProtection bool `json:"device_protection"`
	TechSupport      bool `json:"tech_support"`
	StreamingTV      bool `json:"streaming_tv"`
	StreamingMovies  bool `json:"streaming_movies"`
	PaperlessBilling bool `json:"paperless_billing"`
	GenderMale       bool `json:"gender_male"`

	// 数值属性
	Tenure         float64 `json:"tenure"`          // 在网时长（月），[0, 72]
	MonthlyCharges float64 `json:"monthly_charges"` // 月费，[0, 200]
	TotalCharges   float64 `json:"total_charges"`   // 累计费用，[0, 10000]

	// 类别属性
	InternetService InternetService `json:"internet_service"`
	Contract        Contract        `json:"contract"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
}

// 数值字段的取值范围（与表单控件一致）
const (
	MaxTenure         = 72.0
	MaxMonthlyCharges = 200.0
	MaxTotalCharges   = 10000.0
)

// InternetService 网络服务类型
type InternetService string

const (
	InternetDSL        InternetService = "DSL"
	InternetFiberOptic InternetService = "Fiber optic"
	InternetNone       InternetService = "No"
)

// Values 返回所有合法取值（表单选项顺序）
func (InternetService) Values() []string {
	return []string{string(InternetDSL), string(InternetFiberOptic), string(InternetNone)}
}

// Contract 合约类型
type Contract string

const (
	ContractMonthToMonth Contract = "Month-to-month"
	ContractOneYear      Contract = "One year"
	ContractTwoYear      Contract = "Two year"
)

func (Contract) Values() []string {
	return []string{string(ContractMonthToMonth), string(ContractOneYear), string(ContractTwoYear)}
}

// PaymentMethod 付款方式
type PaymentMethod string

const (
	PaymentElectronicCheck PaymentMethod = "Electronic check"
	PaymentMailedCheck     PaymentMethod = "Mailed check"
	PaymentBankTransfer    PaymentMethod = "Bank transfer (automatic)"
	PaymentCreditCard      PaymentMethod = "Credit card (automatic)"
)

func (PaymentMethod) Values() []string {
	return []string{
		string(PaymentElectronicCheck),
		string(PaymentMailedCheck),
		string(PaymentBankTransfer),
		string(PaymentCreditCard),
	}
}

// NewCustomerProfile 返回带默认类别取值的画像（与表单默认值一致）。
func NewCustomerProfile() *CustomerProfile {
	return &CustomerProfile{
		Tenure:          12,
		MonthlyCharges:  70,
		TotalCharges:    2000,
		InternetService: InternetNone,
		Contract:        ContractMonthToMonth,
		PaymentMethod:   PaymentElectronicCheck,
	}
}

// Validate 校验数值范围与枚举取值。
func (p *CustomerProfile) Validate() error {
	if p == nil {
		return NewDomainError(ModuleProfile, ErrorCodeInvalidInput, "profile: nil")
	}
	if err := checkRange("tenure", p.Tenure, MaxTenure); err != nil {
		return err
	}
	if err := checkRange("monthly_charges", p.MonthlyCharges, MaxMonthlyCharges); err != nil {
		return err
	}
	if err := checkRange("total_charges", p.TotalCharges, MaxTotalCharges); err != nil {
		return err
	}
	if !contains(InternetService("").Values(), string(p.InternetService)) {
		return invalid("internet_service", string(p.InternetService))
	}
	if !contains(Contract("").Values(), string(p.Contract)) {
		return invalid("contract", string(p.Contract))
	}
	if !contains(PaymentMethod("").Values(), string(p.PaymentMethod)) {
		return invalid("payment_method", string(p.PaymentMethod))
	}
	return nil
}

// Attributes 以 snake_case key 导出画像，供规则表达式与报告使用。
func (p *CustomerProfile) Attributes() map[string]any {
	return map[string]any{
		"senior_citizen":    p.SeniorCitizen,
		"partner":           p.Partner,
		"dependents":        p.Dependents,
		"phone_service":     p.PhoneService,
		"multiple_lines":    p.MultipleLines,
		"online_security":   p.OnlineSecurity,
		"online_backup":     p.OnlineBackup,
		"device_protection": p.DeviceProtection,
		"tech_support":      p.TechSupport,
		"streaming_tv":      p.StreamingTV,
		"streaming_movies":  p.StreamingMovies,
		"paperless_billing": p.PaperlessBilling,
		"gender_male":       p.GenderMale,
		"tenure":            p.Tenure,
		"monthly_charges":   p.MonthlyCharges,
		"total_charges":     p.TotalCharges,
		"internet_service":  string(p.InternetService),
		"contract":          string(p.Contract),
		"payment_method":    string(p.PaymentMethod),
	}
}

// ParseYesNo 解析表单/特征库中的布尔取值："Yes"/"No"、"true"/"false"、"1"/"0"。
func ParseYesNo(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "on":
		return true, nil
	case "no", "false", "0", "", "off":
		return false, nil
	}
	return false, NewDomainError(ModuleProfile, ErrorCodeInvalidInput, fmt.Sprintf("profile: invalid boolean %q", s))
}

// YesNo 将布尔值格式化为报告中的 "Yes"/"No"
func YesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func checkRange(field string, v, max float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > max {
		return NewDomainError(ModuleProfile, ErrorCodeInvalidInput,
			fmt.Sprintf("profile: %s=%v out of range [0, %v]", field, v, max))
	}
	return nil
}

func invalid(field, value string) error {
	return NewDomainError(ModuleProfile, ErrorCodeInvalidInput,
		fmt.Sprintf("profile: invalid %s %q", field, value))
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
