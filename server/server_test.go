package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rushteam/retainiq/artifact"
	"github.com/rushteam/retainiq/core"
	"github.com/rushteam/retainiq/feature"
	"github.com/rushteam/retainiq/inference"
	"github.com/rushteam/retainiq/predictor"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, opts ...Option) http.Handler {
	t.Helper()
	p, err := predictor.Load(context.Background(), predictor.Options{
		Fetcher:      artifact.NewRouter(time.Second, nil),
		SchemaSource: "../predictor/testdata/feature_meta.json",
		ModelSource:  "../predictor/testdata/model_gbdt.json",
		ScalerSource: "../predictor/testdata/feature_scaler.json",
		Logger:       discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return New(p, append([]Option{WithLogger(discard())}, opts...)...).Routes()
}

const highRiskJSON = `{
	"senior_citizen": true,
	"phone_service": true,
	"paperless_billing": true,
	"tenure": 2,
	"monthly_charges": 95,
	"total_charges": 190,
	"internet_service": "Fiber optic",
	"contract": "Month-to-month",
	"payment_method": "Electronic check"
}`

func TestPredictAPI(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict?debug=1", strings.NewReader(highRiskJSON))
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("request id header = %q", got)
	}
	var body struct {
		Probability          float64  `json:"probability"`
		RetentionProbability float64  `json:"retention_probability"`
		Tier                 string   `json:"tier"`
		Prediction           string   `json:"prediction"`
		Calibrated           bool     `json:"calibrated"`
		Factors              []string `json:"factors"`
		TopFeatures          []struct {
			Name  string  `json:"name"`
			Score float64 `json:"score"`
		} `json:"top_features"`
		NonZeroFeatures []string `json:"non_zero_features"`
		RequestID       string   `json:"request_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Tier != "HIGH" || body.Prediction != "Will Churn" || !body.Calibrated {
		t.Errorf("body = %+v", body)
	}
	if body.Probability+body.RetentionProbability < 0.999999 {
		t.Errorf("probabilities = %v + %v", body.Probability, body.RetentionProbability)
	}
	if len(body.Factors) != 5 || len(body.TopFeatures) != 10 || len(body.NonZeroFeatures) == 0 {
		t.Errorf("factors=%d top=%d nonzero=%d", len(body.Factors), len(body.TopFeatures), len(body.NonZeroFeatures))
	}
	if body.RequestID != "req-123" {
		t.Errorf("request_id = %q", body.RequestID)
	}
}

func TestPredictAPI_InvalidInput(t *testing.T) {
	h := newTestServer(t)
	const base = `"tenure": 3, "monthly_charges": 50, "internet_service": "DSL", "payment_method": "Mailed check"`
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"malformed json", `{"tenure": `, ""},
		{"unknown field", `{` + base + `, "contract": "One year", "favourite_color": "red"}`, ""},
		{"out of range", `{"tenure": 500, "monthly_charges": 50, "internet_service": "DSL", "contract": "One year", "payment_method": "Mailed check"}`, "tenure"},
		{"bad category", `{` + base + `, "contract": "Weekly"}`, "contract"},
		{"empty object", `{}`, "tenure, monthly_charges, internet_service, contract, payment_method"},
		{"missing contract", `{` + base + `}`, "contract"},
		{"null tenure", `{"tenure": null, "monthly_charges": 50, "internet_service": "DSL", "contract": "One year", "payment_method": "Mailed check"}`, "tenure"},
		{"not an object", `[1, 2]`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
			}
			var body errorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Error.Code != core.ErrorCodeInvalidInput || body.Error.RequestID == "" {
				t.Errorf("error body = %+v", body)
			}
			if tt.message != "" && !strings.Contains(body.Error.Message, tt.message) {
				t.Errorf("message %q should name %q", body.Error.Message, tt.message)
			}
		})
	}
}

func TestPredictAPI_OptionalFields(t *testing.T) {
	// 新客户：total_charges 与布尔字段省略时按 0 / false 处理
	h := newTestServer(t)
	body := `{"tenure": 0, "monthly_charges": 29.85, "internet_service": "DSL", "contract": "Month-to-month", "payment_method": "Electronic check"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestReportAPI(t *testing.T) {
	h := newTestServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/report", strings.NewReader(highRiskJSON)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "churn_prediction_2_95.txt") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(rec.Body.String(), "Customer Churn Prediction Report") {
		t.Errorf("body = %s", rec.Body)
	}
}

type stubProfiles struct{}

func (stubProfiles) Name() string { return "stub" }

func (stubProfiles) Lookup(_ context.Context, id string) (*core.CustomerProfile, error) {
	if id != "7590-VHVEG" {
		return nil, core.NewDomainError(core.ModuleProfile, core.ErrorCodeNotFound, "customer not found")
	}
	p := core.NewCustomerProfile()
	p.Tenure = 60
	p.Contract = core.ContractTwoYear
	return p, nil
}

func TestCustomerChurn(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		path   string
		status int
	}{
		{"not configured", nil, "/api/v1/customers/7590-VHVEG/churn", http.StatusNotImplemented},
		{"found", []Option{WithProfileSource(stubProfiles{})}, "/api/v1/customers/7590-VHVEG/churn", http.StatusOK},
		{"unknown", []Option{WithProfileSource(stubProfiles{})}, "/api/v1/customers/nobody/churn", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, tt.opts...)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d, body = %s", rec.Code, tt.status, rec.Body)
			}
		})
	}
}

func TestModelAndProbes(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/model", nil))
	var info predictor.Info
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.FeatureCount != 23 || info.ModelType != "gradient_boosting" || !info.Importances {
		t.Errorf("info = %+v", info)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(highRiskJSON)))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	var stats feature.MonitorSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Observed != 1 || len(stats.Numerics) != 3 {
		t.Errorf("stats = %+v", stats)
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}
}

func TestDashboard(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Predict Churn Risk") {
		t.Fatalf("GET / status = %d", rec.Code)
	}
	// Bank transfer 没有独立槽位
	if !strings.Contains(rec.Body.String(), "Bank transfer (automatic) (baseline)") {
		t.Error("baseline option not marked")
	}

	form := url.Values{
		"gender":            {"Male"},
		"senior_citizen":    {"yes"},
		"paperless_billing": {"yes"},
		"tenure":            {"2"},
		"monthly_charges":   {"95"},
		"total_charges":     {"190"},
		"internet_service":  {"Fiber optic"},
		"contract":          {"Month-to-month"},
		"payment_method":    {"Electronic check"},
	}
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /predict status = %d, body = %s", rec.Code, rec.Body)
	}
	for _, want := range []string{"High risk of churn", "Short tenure (&lt; 6 months)", "Will Churn"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("dashboard missing %q", want)
		}
	}

	form.Set("tenure", "abc")
	req = httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid form status = %d", rec.Code)
	}
}

// failingPredictor 模拟 schema 漂移导致的推理失败
type failingPredictor struct{ err error }

func (f failingPredictor) Predict(context.Context, *core.CustomerProfile) (*core.PredictionResult, error) {
	return nil, f.err
}
func (f failingPredictor) Encode(*core.CustomerProfile) (*feature.Vector, error) { return nil, f.err }

func (f failingPredictor) Info() predictor.Info { return predictor.Info{} }
func (f failingPredictor) Stats() (feature.MonitorSnapshot, error) {
	return feature.MonitorSnapshot{}, f.err
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"inference", &inference.InferenceError{Expected: 23, Actual: 22, Reason: "feature width mismatch"},
			http.StatusInternalServerError, core.ErrorCodeInference},
		{"schema", core.NewDomainError(core.ModuleFeature, core.ErrorCodeSchemaMismatch, "empty"),
			http.StatusInternalServerError, core.ErrorCodeSchemaMismatch},
		{"not supported", core.NewDomainError(core.ModuleModel, core.ErrorCodeNotSupported, "nope"),
			http.StatusNotImplemented, core.ErrorCodeNotSupported},
		{"plain", errors.New("boom"), http.StatusInternalServerError, core.ErrorCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(failingPredictor{err: tt.err}, WithLogger(discard())).Routes()
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(highRiskJSON)))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var body errorBody
			json.NewDecoder(rec.Body).Decode(&body)
			if body.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.code)
			}
			if tt.status == http.StatusInternalServerError && strings.Contains(body.Error.Message, "width") {
				t.Error("internal details must not leak")
			}
		})
	}
}

func TestErrorLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	err := &inference.InferenceError{Expected: 23, Actual: 22, Reason: "feature width mismatch"}
	h := New(failingPredictor{err: err}, WithLogger(logger)).Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(highRiskJSON)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}

	var errorLines []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if strings.Contains(line, `"level":"ERROR"`) {
			errorLines = append(errorLines, line)
		}
	}
	if len(errorLines) != 1 {
		t.Fatalf("error records = %d, want 1:\n%s", len(errorLines), buf.String())
	}
	if !strings.Contains(errorLines[0], `"expected_features":23`) || !strings.Contains(errorLines[0], `"request_id"`) {
		t.Errorf("error record = %s", errorLines[0])
	}
}
