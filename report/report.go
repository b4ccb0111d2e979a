// Package report 生成面向客服/留存团队的文本报告与建议。
package report

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"text/template"

	"github.com/rushteam/retainiq/core"
)

// Recommendation 返回风险等级对应的处置建议（看板展示用）
func Recommendation(tier core.RiskTier) string {
	switch tier {
	case core.RiskHigh:
		return "Offer retention discount, escalate to retention team, conduct satisfaction survey"
	case core.RiskMedium:
		return "Check-in call, offer loyalty rewards, review service quality"
	default:
		return "Maintain current service level, consider upselling opportunities"
	}
}

// reportAdvice 报告中的简短建议
func reportAdvice(tier core.RiskTier) string {
	switch tier {
	case core.RiskHigh:
		return "Offer retention discount and escalate to retention team"
	case core.RiskMedium:
		return "Conduct satisfaction survey and offer loyalty rewards"
	default:
		return "Maintain current service and consider upselling opportunities"
	}
}

// TierText 风险等级展示文本：High / Medium / Low
func TierText(tier core.RiskTier) string {
	switch tier {
	case core.RiskHigh:
		return "High"
	case core.RiskMedium:
		return "Medium"
	default:
		return "Low"
	}
}

var reportTmpl = template.Must(template.New("report").Parse(`Customer Churn Prediction Report

Probability of Churn: {{.Probability}}
Risk Level: {{.Tier}}
Prediction: {{.Label}}
Model: {{.Model}}
{{- if not .Calibrated}}
Standardization: approximate (fallback scaler)
{{- end}}

Customer Details:
- Tenure: {{.Tenure}} months
- Monthly Charges: ${{.MonthlyCharges}}
- Total Charges: ${{.TotalCharges}}
- Contract Type: {{.Contract}}
- Internet Service: {{.InternetService}}
- Paperless Billing: {{.PaperlessBilling}}

Key Factors:
{{- range .Factors}}
- {{.}}
{{- else}}
- No high-risk factors identified
{{- end}}

Recommendations:
{{.Advice}}
`))

type reportData struct {
	Probability      string
	Tier             string
	Label            string
	Model            string
	Calibrated       bool
	Tenure           string
	MonthlyCharges   string
	TotalCharges     string
	Contract         string
	InternetService  string
	PaperlessBilling string
	Factors          []string
	Advice           string
}

// Render 生成可下载的纯文本报告
func Render(p *core.CustomerProfile, r *core.PredictionResult) (string, error) {
	if p == nil || r == nil {
		return "", core.NewDomainError(core.ModuleProfile, core.ErrorCodeInvalidInput, "report: profile and result are required")
	}
	model := r.ModelName
	if r.ModelVersion != "" {
		model += " (" + r.ModelVersion + ")"
	}
	data := reportData{
		Probability:      Percent(r.Probability),
		Tier:             TierText(r.Tier),
		Label:            r.LabelText(),
		Model:            model,
		Calibrated:       r.Calibrated,
		Tenure:           strconv.FormatFloat(p.Tenure, 'f', -1, 64),
		MonthlyCharges:   fmt.Sprintf("%.2f", p.MonthlyCharges),
		TotalCharges:     fmt.Sprintf("%.2f", p.TotalCharges),
		Contract:         string(p.Contract),
		InternetService:  string(p.InternetService),
		PaperlessBilling: core.YesNo(p.PaperlessBilling),
		Factors:          r.Factors,
		Advice:           reportAdvice(r.Tier),
	}
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

// FileName 报告文件名：churn_prediction_<tenure>_<monthly>.txt
func FileName(p *core.CustomerProfile) string {
	return fmt.Sprintf("churn_prediction_%s_%s.txt", formatNumber(p.Tenure), formatNumber(p.MonthlyCharges))
}

// Percent 以一位小数的百分比展示概率，如 0.7312 -> "73.1%"
func Percent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

// formatNumber 整数值不带小数点（"12"），其余保留原始精度（"70.35"）
func formatNumber(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
