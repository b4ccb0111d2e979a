package feast

import (
	"context"
	"fmt"
	"strings"

	"github.com/rushteam/retainiq/core"
	"github.com/rushteam/retainiq/pkg/conv"
)

// 默认的特征视图与实体键
const (
	DefaultFeatureView = "telco_customer"
	DefaultEntityKey   = "customer_id"
)

// 特征视图中的字段名（与 Telco 原始数据列名一致）
const (
	fieldGender           = "gender"
	fieldSeniorCitizen    = "SeniorCitizen"
	fieldPartner          = "Partner"
	fieldDependents       = "Dependents"
	fieldTenure           = "tenure"
	fieldPhoneService     = "PhoneService"
	fieldMultipleLines    = "MultipleLines"
	fieldInternetService  = "InternetService"
	fieldOnlineSecurity   = "OnlineSecurity"
	fieldOnlineBackup     = "OnlineBackup"
	fieldDeviceProtection = "DeviceProtection"
	fieldTechSupport      = "TechSupport"
	fieldStreamingTV      = "StreamingTV"
	fieldStreamingMovies  = "StreamingMovies"
	fieldContract         = "Contract"
	fieldPaperlessBilling = "PaperlessBilling"
	fieldPaymentMethod    = "PaymentMethod"
	fieldMonthlyCharges   = "MonthlyCharges"
	fieldTotalCharges     = "TotalCharges"
)

var profileFields = []string{
	fieldGender, fieldSeniorCitizen, fieldPartner, fieldDependents, fieldTenure,
	fieldPhoneService, fieldMultipleLines, fieldInternetService, fieldOnlineSecurity,
	fieldOnlineBackup, fieldDeviceProtection, fieldTechSupport, fieldStreamingTV,
	fieldStreamingMovies, fieldContract, fieldPaperlessBilling, fieldPaymentMethod,
	fieldMonthlyCharges, fieldTotalCharges,
}

// ProfileSource 从 Feast 在线存储读取客户画像，实现 core.ProfileSource。
type ProfileSource struct {
	client      Client
	project     string
	featureView string
	entityKey   string
}

// NewProfileSource 创建画像数据源；featureView 为空时使用 telco_customer。
func NewProfileSource(client Client, project, featureView string) *ProfileSource {
	if featureView == "" {
		featureView = DefaultFeatureView
	}
	return &ProfileSource{
		client:      client,
		project:     project,
		featureView: featureView,
		entityKey:   DefaultEntityKey,
	}
}

func (s *ProfileSource) Name() string { return "feast" }

func (s *ProfileSource) ref(field string) string {
	return s.featureView + ":" + field
}

// Lookup 按客户 ID 读取画像。实体不存在（所有字段为空）时返回 NOT_FOUND。
func (s *ProfileSource) Lookup(ctx context.Context, customerID string) (*core.CustomerProfile, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, core.NewDomainError(core.ModuleProfile, core.ErrorCodeInvalidInput, "customer id is required")
	}
	refs := make([]string, len(profileFields))
	for i, f := range profileFields {
		refs[i] = s.ref(f)
	}
	resp, err := s.client.GetOnlineFeatures(ctx, &GetOnlineFeaturesRequest{
		Features:   refs,
		EntityRows: []map[string]interface{}{{s.entityKey: customerID}},
		Project:    s.project,
	})
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleProfile, core.ErrorCodeUnavailable, "feast lookup", err)
	}
	if len(resp.FeatureVectors) == 0 || len(resp.FeatureVectors[0].Values) == 0 {
		return nil, core.NewDomainError(core.ModuleProfile, core.ErrorCodeNotFound,
			fmt.Sprintf("customer %q not found", customerID))
	}

	values := make(map[string]interface{}, len(profileFields))
	for _, f := range profileFields {
		if v, ok := resp.FeatureVectors[0].Values[s.ref(f)]; ok {
			values[f] = v
		}
	}
	p, err := ProfileFromValues(values)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// requiredFields 没有可用的默认值，缺失时拒绝打分
var requiredFields = []string{
	fieldTenure, fieldMonthlyCharges, fieldInternetService, fieldContract, fieldPaymentMethod,
}

// ProfileFromValues 把特征值（key 为字段名）映射为画像。
// tenure、MonthlyCharges 和三个类别字段必须存在，缺失时返回 INVALID_INPUT 并列出字段名。
// TotalCharges 缺失按 0 处理（新客户在 Telco 数据里该列为空），布尔字段缺失按 false 处理，
// gender 缺失按 Female 处理。
// 布尔字段接受 bool、0/1、"Yes"/"No" 以及 "No internet service" 这类取值。
func ProfileFromValues(values map[string]interface{}) (*core.CustomerProfile, error) {
	var missing []string
	for _, f := range requiredFields {
		if absent(values, f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, core.NewDomainError(core.ModuleProfile, core.ErrorCodeInvalidInput,
			fmt.Sprintf("feast profile is missing required fields: %s", strings.Join(missing, ", ")))
	}

	p := &core.CustomerProfile{}

	bools := []struct {
		field string
		dst   *bool
	}{
		{fieldSeniorCitizen, &p.SeniorCitizen},
		{fieldPartner, &p.Partner},
		{fieldDependents, &p.Dependents},
		{fieldPhoneService, &p.PhoneService},
		{fieldMultipleLines, &p.MultipleLines},
		{fieldOnlineSecurity, &p.OnlineSecurity},
		{fieldOnlineBackup, &p.OnlineBackup},
		{fieldDeviceProtection, &p.DeviceProtection},
		{fieldTechSupport, &p.TechSupport},
		{fieldStreamingTV, &p.StreamingTV},
		{fieldStreamingMovies, &p.StreamingMovies},
		{fieldPaperlessBilling, &p.PaperlessBilling},
	}
	for _, b := range bools {
		v, ok := values[b.field]
		if !ok || v == nil {
			continue
		}
		parsed, err := toBool(v)
		if err != nil {
			return nil, invalidField(b.field, v)
		}
		*b.dst = parsed
	}

	if v, ok := values[fieldGender]; ok && v != nil {
		s, _ := conv.ToString(v)
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "male":
			p.GenderMale = true
		case "female":
			p.GenderMale = false
		default:
			return nil, invalidField(fieldGender, v)
		}
	}

	numerics := []struct {
		field string
		dst   *float64
	}{
		{fieldTenure, &p.Tenure},
		{fieldMonthlyCharges, &p.MonthlyCharges},
		{fieldTotalCharges, &p.TotalCharges},
	}
	for _, n := range numerics {
		v, ok := values[n.field]
		if !ok || v == nil {
			continue
		}
		f, ok := conv.ParseFloat64(v)
		if !ok {
			return nil, invalidField(n.field, v)
		}
		*n.dst = f
	}

	if s, ok := stringField(values, fieldInternetService); ok {
		p.InternetService = core.InternetService(s)
	}
	if s, ok := stringField(values, fieldContract); ok {
		p.Contract = core.Contract(s)
	}
	if s, ok := stringField(values, fieldPaymentMethod); ok {
		p.PaymentMethod = core.PaymentMethod(s)
	}
	return p, nil
}

func toBool(v interface{}) (bool, error) {
	if s, ok := conv.ToString(v); ok {
		// "No phone service" / "No internet service"
		if strings.HasPrefix(s, "No ") {
			return false, nil
		}
		return core.ParseYesNo(s)
	}
	if b, ok := v.(bool); ok {
		return b, nil
	}
	if f, ok := conv.ToFloat64(v); ok {
		return f != 0, nil
	}
	return false, fmt.Errorf("unsupported bool value %v", v)
}

// absent 字段不存在、为 null 或为空白字符串
func absent(values map[string]interface{}, field string) bool {
	v, ok := values[field]
	if !ok || v == nil {
		return true
	}
	if s, ok := conv.ToString(v); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func stringField(values map[string]interface{}, field string) (string, bool) {
	v, ok := values[field]
	if !ok {
		return "", false
	}
	s, ok := conv.ToString(v)
	return strings.TrimSpace(s), ok
}

func invalidField(field string, v interface{}) error {
	return core.NewDomainError(core.ModuleProfile, core.ErrorCodeInvalidInput,
		fmt.Sprintf("feast field %s: unsupported value %v", field, v))
}

var _ core.ProfileSource = (*ProfileSource)(nil)
