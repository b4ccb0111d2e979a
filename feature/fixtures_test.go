package feature

import "github.com/rushteam/retainiq/core"

// churnColumns 是 get_dummies(drop_first=True) 导出的典型列顺序
var churnColumns = []string{
	"SeniorCitizen", "tenure", "MonthlyCharges", "TotalCharges",
	"gender_Male", "Partner_Yes", "Dependents_Yes", "PhoneService_Yes",
	"MultipleLines_Yes", "OnlineSecurity_Yes", "OnlineBackup_Yes",
	"DeviceProtection_Yes", "TechSupport_Yes", "StreamingTV_Yes",
	"StreamingMovies_Yes", "PaperlessBilling_Yes",
	"InternetService_Fiber optic", "InternetService_No",
	"Contract_One year", "Contract_Two year",
	"PaymentMethod_Credit card (automatic)", "PaymentMethod_Electronic check",
	"PaymentMethod_Mailed check",
}

func mustSchema(cols []string) *Schema {
	s, err := NewSchema(cols)
	if err != nil {
		panic(err)
	}
	return s
}

func highRiskProfile() *core.CustomerProfile {
	p := core.NewCustomerProfile()
	p.SeniorCitizen = true
	p.Tenure = 2
	p.MonthlyCharges = 95
	p.TotalCharges = 190
	p.InternetService = core.InternetFiberOptic
	p.Contract = core.ContractMonthToMonth
	p.PaymentMethod = core.PaymentElectronicCheck
	p.PaperlessBilling = true
	p.PhoneService = true
	return p
}
