package report

import (
	"strings"
	"testing"

	"github.com/rushteam/retainiq/core"
)

func TestRecommendation(t *testing.T) {
	tests := []struct {
		tier core.RiskTier
		want string
	}{
		{core.RiskHigh, "escalate to retention team"},
		{core.RiskMedium, "Check-in call"},
		{core.RiskLow, "upselling"},
	}
	for _, tt := range tests {
		if got := Recommendation(tt.tier); !strings.Contains(got, tt.want) {
			t.Errorf("Recommendation(%s) = %q, want it to contain %q", tt.tier, got, tt.want)
		}
	}
}

func TestRender(t *testing.T) {
	p := core.NewCustomerProfile()
	p.Tenure = 2
	p.MonthlyCharges = 95
	p.TotalCharges = 190
	p.PaperlessBilling = true
	r := &core.PredictionResult{
		Probability:     0.7312,
		Label:           1,
		Tier:            core.RiskHigh,
		Standardization: core.StandardizationFallback,
		Calibrated:      false,
		ModelName:       "Logistic Regression",
		ModelVersion:    "2024.06",
		Factors:         []string{"Short tenure (< 6 months)", "High monthly charges"},
	}

	out, err := Render(p, r)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Customer Churn Prediction Report",
		"Probability of Churn: 73.1%",
		"Risk Level: High",
		"Prediction: Will Churn",
		"Model: Logistic Regression (2024.06)",
		"approximate (fallback scaler)",
		"- Tenure: 2 months",
		"- Monthly Charges: $95.00",
		"- Paperless Billing: Yes",
		"- Short tenure (< 6 months)",
		"Offer retention discount and escalate to retention team",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	r.Calibrated = true
	r.Factors = nil
	r.Tier = core.RiskLow
	out, _ = Render(p, r)
	if strings.Contains(out, "approximate") {
		t.Error("calibrated report must not be flagged approximate")
	}
	if !strings.Contains(out, "- No high-risk factors identified") {
		t.Errorf("missing empty factor line:\n%s", out)
	}
}

func TestFileName(t *testing.T) {
	p := core.NewCustomerProfile()
	p.Tenure = 12
	p.MonthlyCharges = 70.35
	if got, want := FileName(p), "churn_prediction_12_70.35.txt"; got != want {
		t.Errorf("FileName() = %q, want %q", got, want)
	}
}
