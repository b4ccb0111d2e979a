package feature

import (
	"math"
	"testing"

	"github.com/rushteam/retainiq/core"
)

func TestEncoder_Booleans(t *testing.T) {
	enc, err := NewEncoder(mustSchema(churnColumns), nil)
	if err != nil {
		t.Fatal(err)
	}
	p := core.NewCustomerProfile()
	p.SeniorCitizen = true
	p.Partner = true
	p.GenderMale = true
	p.PaperlessBilling = false

	v, err := enc.Encode(p)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		want float64
	}{
		{"SeniorCitizen", 1},
		{"Partner_Yes", 1},
		{"gender_Male", 1},
		{"PaperlessBilling_Yes", 0},
		{"Dependents_Yes", 0},
	}
	for _, tt := range tests {
		got, ok := v.Get(tt.name)
		if !ok || got != tt.want {
			t.Errorf("%s = %v (ok=%v), want %v", tt.name, got, ok, tt.want)
		}
	}
}

func TestEncoder_BooleanDirectColumnPreferred(t *testing.T) {
	schema := mustSchema([]string{"PaperlessBilling", "PaperlessBilling_Yes", "tenure"})
	enc, err := NewEncoder(schema, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := core.NewCustomerProfile()
	p.PaperlessBilling = true
	v, _ := enc.Encode(p)

	if got, _ := v.Get("PaperlessBilling"); got != 1 {
		t.Errorf("PaperlessBilling = %v, want 1", got)
	}
	if got, _ := v.Get("PaperlessBilling_Yes"); got != 0 {
		t.Errorf("PaperlessBilling_Yes = %v, want 0 (only first candidate is bound)", got)
	}
	if got := enc.Coverage().Booleans["PaperlessBilling"]; got != "PaperlessBilling" {
		t.Errorf("coverage slot = %q", got)
	}
}

func TestEncoder_OneHotExclusive(t *testing.T) {
	enc, err := NewEncoder(mustSchema(churnColumns), nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		contract core.Contract
		wantHot string // "" 表示基准类别，组内全 0
	}{
		{"month-to-month is baseline", core.ContractMonthToMonth, ""},
		{"one year", core.ContractOneYear, "Contract_One year"},
		{"two year", core.ContractTwoYear, "Contract_Two year"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := core.NewCustomerProfile()
			p.Contract = tt.contract
			v, err := enc.Encode(p)
			if err != nil {
				t.Fatal(err)
			}
			hot := 0
			for _, slot := range []string{"Contract_One year", "Contract_Two year"} {
				got, _ := v.Get(slot)
				if got == 1 {
					hot++
					if slot != tt.wantHot {
						t.Errorf("unexpected hot slot %q", slot)
					}
				}
			}
			want := 0
			if tt.wantHot != "" {
				want = 1
			}
			if hot != want {
				t.Errorf("hot slots = %d, want %d", hot, want)
			}
		})
	}
}

func TestEncoder_MissingSlotDropped(t *testing.T) {
	// schema 没有 "PaymentMethod_Bank transfer (automatic)"：该取值编码为全 0
	enc, err := NewEncoder(mustSchema(churnColumns), nil)
	if err != nil {
		t.Fatal(err)
	}
	p := core.NewCustomerProfile()
	p.PaymentMethod = core.PaymentBankTransfer
	v, err := enc.Encode(p)
	if err != nil {
		t.Fatal(err)
	}
	if v.Len() != len(churnColumns) {
		t.Fatalf("len = %d, want %d", v.Len(), len(churnColumns))
	}
	for _, name := range v.Names() {
		if name == OneHotSlot(GroupPaymentMethod, string(core.PaymentBankTransfer)) {
			t.Fatalf("vector contains name outside schema: %q", name)
		}
	}
	for _, slot := range []string{
		"PaymentMethod_Credit card (automatic)",
		"PaymentMethod_Electronic check",
		"PaymentMethod_Mailed check",
	} {
		if got, _ := v.Get(slot); got != 0 {
			t.Errorf("%s = %v, want 0", slot, got)
		}
	}
}

func TestEncoder_LengthAndOrderFollowSchema(t *testing.T) {
	cols := []string{"Contract_Two year", "tenure", "Unknown_Column", "SeniorCitizen"}
	enc, err := NewEncoder(mustSchema(cols), nil)
	if err != nil {
		t.Fatal(err)
	}
	p := core.NewCustomerProfile()
	p.Contract = core.ContractTwoYear
	p.SeniorCitizen = true
	p.Tenure = 40

	v, err := enc.Encode(p)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 40, 0, 1}
	got := v.Values()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("values[%d] (%s) = %v, want %v", i, cols[i], got[i], want[i])
		}
	}
}

func TestEncoder_Idempotent(t *testing.T) {
	enc, err := NewEncoder(mustSchema(churnColumns), FallbackScaler())
	if err != nil {
		t.Fatal(err)
	}
	p := highRiskProfile()
	a, _ := enc.Encode(p)
	b, _ := enc.Encode(p)
	av, bv := a.Values(), b.Values()
	for i := range av {
		if av[i] != bv[i] {
			t.Fatalf("values[%d] differ: %v vs %v", i, av[i], bv[i])
		}
	}
}

func TestEncoder_FallbackStandardization(t *testing.T) {
	enc, err := NewEncoder(mustSchema(churnColumns), FallbackScaler())
	if err != nil {
		t.Fatal(err)
	}
	if enc.Standardization() != core.StandardizationFallback {
		t.Errorf("Standardization() = %v", enc.Standardization())
	}
	v, err := enc.Encode(highRiskProfile())
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		want float64
	}{
		{FieldTenure, (2 - 32.49) / 24.57},
		{FieldMonthlyCharges, (95 - 64.93) / 30.14},
		{FieldTotalCharges, (190 - 2299.33) / 2279.00},
	}
	for _, tt := range tests {
		got, _ := v.Get(tt.name)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEncoder_RawNumerics(t *testing.T) {
	enc, err := NewEncoder(mustSchema(churnColumns), IdentityStandardizer())
	if err != nil {
		t.Fatal(err)
	}
	v, _ := enc.Encode(highRiskProfile())
	if got, _ := v.Get(FieldMonthlyCharges); got != 95 {
		t.Errorf("MonthlyCharges = %v, want raw 95", got)
	}
	if enc.Standardization() != core.StandardizationNone {
		t.Errorf("Standardization() = %v", enc.Standardization())
	}
}

func TestEncoder_Errors(t *testing.T) {
	if _, err := NewEncoder(nil, nil); !core.IsSchemaMismatch(err) {
		t.Errorf("nil schema error = %v, want SCHEMA_MISMATCH", err)
	}
	if _, err := EncodeWithNames(core.NewCustomerProfile(), nil, nil); !core.IsSchemaMismatch(err) {
		t.Errorf("empty names error = %v, want SCHEMA_MISMATCH", err)
	}
	if _, err := EncodeWithNames(core.NewCustomerProfile(), []string{"tenure", "tenure"}, nil); !core.IsSchemaMismatch(err) {
		t.Errorf("duplicate names error = %v, want SCHEMA_MISMATCH", err)
	}
	enc, _ := NewEncoder(mustSchema(churnColumns), nil)
	if _, err := enc.Encode(nil); !core.IsInvalidInput(err) {
		t.Errorf("nil profile error = %v, want INVALID_INPUT", err)
	}
}

func TestEncoder_Coverage(t *testing.T) {
	enc, err := NewEncoder(mustSchema(churnColumns), nil)
	if err != nil {
		t.Fatal(err)
	}
	c := enc.Coverage()
	if got := c.Categories[GroupInternetService]; len(got) != 2 {
		t.Errorf("InternetService coverage = %v, want 2 values", got)
	}
	if got := c.Categories[GroupPaymentMethod]; len(got) != 3 {
		t.Errorf("PaymentMethod coverage = %v, want 3 values", got)
	}
	if len(c.Numerics) != 3 {
		t.Errorf("numerics = %v", c.Numerics)
	}
	// 副本修改不影响编码器
	c.Booleans["Partner"] = "x"
	if enc.Coverage().Booleans["Partner"] != "Partner_Yes" {
		t.Error("Coverage() must return a copy")
	}
}
