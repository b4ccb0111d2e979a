package server

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/rushteam/retainiq/core"
	"github.com/rushteam/retainiq/feature"
	"github.com/rushteam/retainiq/predictor"
	"github.com/rushteam/retainiq/report"
)

//go:embed templates/*.html
var templateFS embed.FS

var dashboardTemplate = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"percent":  report.Percent,
	"tierText": report.TierText,
	"lower":    func(t core.RiskTier) string { return strings.ToLower(string(t)) },
	"inc":      func(i int) int { return i + 1 },
	"yesno":    core.YesNo,
	"score":    func(f float64) string { return strconv.FormatFloat(f, 'f', 4, 64) },
}).ParseFS(templateFS, "templates/dashboard.html"))

// selectOption 下拉选项；Baseline 表示该取值在 schema 中没有独立槽位（编码为全 0）
type selectOption struct {
	Value    string
	Selected bool
	Baseline bool
}

type boolInput struct {
	Name    string
	Label   string
	Checked bool
}

type dashboardView struct {
	Info            predictor.Info
	Profile         *core.CustomerProfile
	Booleans        []boolInput
	GenderMale      bool
	InternetService []selectOption
	Contract        []selectOption
	PaymentMethod   []selectOption
	Result          *core.PredictionResult
	Error           string
	RequestID       string
}

func options(values []string, selected string, covered []string) []selectOption {
	bound := make(map[string]bool, len(covered))
	for _, v := range covered {
		bound[v] = true
	}
	out := make([]selectOption, len(values))
	for i, v := range values {
		out[i] = selectOption{Value: v, Selected: v == selected, Baseline: !bound[v]}
	}
	return out
}

func (s *Server) view(r *http.Request, p *core.CustomerProfile) *dashboardView {
	info := s.predictor.Info()
	cov := info.Coverage
	return &dashboardView{
		Info:    info,
		Profile: p,
		Booleans: []boolInput{
			{"senior_citizen", "Senior Citizen", p.SeniorCitizen},
			{"partner", "Partner", p.Partner},
			{"dependents", "Dependents", p.Dependents},
			{"phone_service", "Phone Service", p.PhoneService},
			{"multiple_lines", "Multiple Lines", p.MultipleLines},
			{"online_security", "Online Security", p.OnlineSecurity},
			{"online_backup", "Online Backup", p.OnlineBackup},
			{"device_protection", "Device Protection", p.DeviceProtection},
			{"tech_support", "Tech Support", p.TechSupport},
			{"streaming_tv", "Streaming TV", p.StreamingTV},
			{"streaming_movies", "Streaming Movies", p.StreamingMovies},
			{"paperless_billing", "Paperless Billing", p.PaperlessBilling},
		},
		GenderMale:      p.GenderMale,
		InternetService: options(core.InternetService("").Values(), string(p.InternetService), cov.Categories[feature.GroupInternetService]),
		Contract:        options(core.Contract("").Values(), string(p.Contract), cov.Categories[feature.GroupContract]),
		PaymentMethod:   options(core.PaymentMethod("").Values(), string(p.PaymentMethod), cov.Categories[feature.GroupPaymentMethod]),
		RequestID:       RequestIDFrom(r.Context()),
	}
}

func (s *Server) render(w http.ResponseWriter, status int, v *dashboardView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.Execute(w, v); err != nil {
		s.logger.Error("render dashboard", "error", err)
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, s.view(r, core.NewCustomerProfile()))
}

func (s *Server) handleDashboardPredict(w http.ResponseWriter, r *http.Request) {
	p, err := parseProfileForm(w, r)
	if err != nil {
		v := s.view(r, core.NewCustomerProfile())
		v.Error = err.Error()
		s.render(w, http.StatusBadRequest, v)
		return
	}
	v := s.view(r, p)
	res, err := s.predictor.Predict(r.Context(), p)
	if err != nil {
		status, _ := statusOf(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("dashboard prediction failed", "error", err, "request_id", v.RequestID)
			v.Error = "Prediction error. Common issues: feature name mismatches or missing features."
		} else {
			v.Error = err.Error()
		}
		s.render(w, status, v)
		return
	}
	v.Result = res
	s.render(w, http.StatusOK, v)
}

func (s *Server) handleDashboardReport(w http.ResponseWriter, r *http.Request) {
	p, err := parseProfileForm(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeReport(w, r, p)
}

// parseProfileForm 解析看板表单：复选框为布尔字段，gender 为 Male/Female。
func parseProfileForm(w http.ResponseWriter, r *http.Request) (*core.CustomerProfile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return nil, core.WrapDomainError(core.ModuleProfile, core.ErrorCodeInvalidInput, "invalid form", err)
	}
	p := core.NewCustomerProfile()

	bools := map[string]*bool{
		"senior_citizen":    &p.SeniorCitizen,
		"partner":           &p.Partner,
		"dependents":        &p.Dependents,
		"phone_service":     &p.PhoneService,
		"multiple_lines":    &p.MultipleLines,
		"online_security":   &p.OnlineSecurity,
		"online_backup":     &p.OnlineBackup,
		"device_protection": &p.DeviceProtection,
		"tech_support":      &p.TechSupport,
		"streaming_tv":      &p.StreamingTV,
		"streaming_movies":  &p.StreamingMovies,
		"paperless_billing": &p.PaperlessBilling,
	}
	for name, dst := range bools {
		b, err := core.ParseYesNo(r.PostForm.Get(name))
		if err != nil {
			return nil, err
		}
		*dst = b
	}

	switch strings.ToLower(r.PostForm.Get("gender")) {
	case "male":
		p.GenderMale = true
	case "female", "":
		p.GenderMale = false
	default:
		return nil, core.NewDomainError(core.ModuleProfile, core.ErrorCodeInvalidInput, "invalid gender")
	}

	numerics := map[string]*float64{
		"tenure":          &p.Tenure,
		"monthly_charges": &p.MonthlyCharges,
		"total_charges":   &p.TotalCharges,
	}
	for name, dst := range numerics {
		raw := strings.TrimSpace(r.PostForm.Get(name))
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, core.NewDomainError(core.ModuleProfile, core.ErrorCodeInvalidInput, "invalid "+name)
		}
		*dst = f
	}

	if v := r.PostForm.Get("internet_service"); v != "" {
		p.InternetService = core.InternetService(v)
	}
	if v := r.PostForm.Get("contract"); v != "" {
		p.Contract = core.Contract(v)
	}
	if v := r.PostForm.Get("payment_method"); v != "" {
		p.PaymentMethod = core.PaymentMethod(v)
	}
	return p, nil
}
