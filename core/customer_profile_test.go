package core

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestCustomerProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *CustomerProfile)
		wantErr bool
	}{
		{name: "defaults", mutate: func(p *CustomerProfile) {}},
		{name: "upper bounds", mutate: func(p *CustomerProfile) {
			p.Tenure, p.MonthlyCharges, p.TotalCharges = 72, 200, 10000
		}},
		{name: "negative tenure", mutate: func(p *CustomerProfile) { p.Tenure = -1 }, wantErr: true},
		{name: "tenure too large", mutate: func(p *CustomerProfile) { p.Tenure = 73 }, wantErr: true},
		{name: "monthly NaN", mutate: func(p *CustomerProfile) { p.MonthlyCharges = math.NaN() }, wantErr: true},
		{name: "total too large", mutate: func(p *CustomerProfile) { p.TotalCharges = 10000.5 }, wantErr: true},
		{name: "unknown internet", mutate: func(p *CustomerProfile) { p.InternetService = "Cable" }, wantErr: true},
		{name: "empty contract", mutate: func(p *CustomerProfile) { p.Contract = "" }, wantErr: true},
		{name: "lowercase payment", mutate: func(p *CustomerProfile) { p.PaymentMethod = "mailed check" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewCustomerProfile()
			tt.mutate(p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsInvalidInput(err) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestParseYesNo(t *testing.T) {
	for _, s := range []string{"Yes", "yes", "true", "1", "on"} {
		if v, err := ParseYesNo(s); err != nil || !v {
			t.Errorf("ParseYesNo(%q) = %v, %v", s, v, err)
		}
	}
	for _, s := range []string{"No", "false", "0", ""} {
		if v, err := ParseYesNo(s); err != nil || v {
			t.Errorf("ParseYesNo(%q) = %v, %v", s, v, err)
		}
	}
	if _, err := ParseYesNo("maybe"); !IsInvalidInput(err) {
		t.Errorf("ParseYesNo(maybe) error = %v", err)
	}
}

func TestDomainError_Wrapping(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("load: %w", WrapDomainError(ModuleArtifact, ErrorCodeStartup, "model missing", cause))
	if !IsStartupError(err) {
		t.Fatal("expected startup error through %w chain")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable with errors.Is")
	}
	if !GetDomainError(err).Fatal() {
		t.Error("startup errors are fatal")
	}
	if NewDomainError(ModuleInference, ErrorCodeInference, "x").Fatal() {
		t.Error("inference errors are per request")
	}
}
