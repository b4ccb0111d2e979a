package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rushteam/retainiq/core"
	"github.com/rushteam/retainiq/report"
)

// maxBodyBytes 请求体上限
const maxBodyBytes = 64 << 10

type predictResponse struct {
	*core.PredictionResult
	RetentionProbability float64               `json:"retention_probability"`
	Prediction           string                `json:"prediction"`
	Profile              *core.CustomerProfile `json:"profile,omitempty"`
	NonZeroFeatures      []string              `json:"non_zero_features,omitempty"`
	RequestID            string                `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// requiredProfileFields 请求体中必须显式给出的字段；其余布尔字段缺省为 false，total_charges 缺省为 0
var requiredProfileFields = []string{"tenure", "monthly_charges", "internet_service", "contract", "payment_method"}

// decodeProfile 以零值画像为底解析 JSON，未知字段与缺失的必填字段视为非法输入。
func decodeProfile(w http.ResponseWriter, r *http.Request) (*core.CustomerProfile, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleProfile, core.ErrorCodeInvalidInput, "invalid request body", err)
	}
	p := &core.CustomerProfile{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, core.WrapDomainError(core.ModuleProfile, core.ErrorCodeInvalidInput, "invalid request body", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, core.WrapDomainError(core.ModuleProfile, core.ErrorCodeInvalidInput, "invalid request body", err)
	}
	var missing []string
	for _, name := range requiredProfileFields {
		raw, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, core.NewDomainError(core.ModuleProfile, core.ErrorCodeInvalidInput,
			"missing required fields: "+strings.Join(missing, ", "))
	}
	return p, nil
}

func (s *Server) respondPrediction(w http.ResponseWriter, r *http.Request, p *core.CustomerProfile, res *core.PredictionResult, withProfile bool) {
	resp := predictResponse{
		PredictionResult:     res,
		RetentionProbability: res.RetentionProbability(),
		Prediction:           res.LabelText(),
		RequestID:            RequestIDFrom(r.Context()),
	}
	if withProfile {
		resp.Profile = p
	}
	if r.URL.Query().Get("debug") == "1" {
		if v, err := s.predictor.Encode(p); err == nil {
			resp.NonZeroFeatures = v.NonZero()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	p, err := decodeProfile(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.predictor.Predict(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondPrediction(w, r, p, res, false)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	p, err := decodeProfile(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeReport(w, r, p)
}

func (s *Server) writeReport(w http.ResponseWriter, r *http.Request, p *core.CustomerProfile) {
	res, err := s.predictor.Predict(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	text, err := report.Render(p, res)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(p)))
	w.Write([]byte(text))
}

func (s *Server) handleCustomerChurn(w http.ResponseWriter, r *http.Request) {
	if s.profiles == nil {
		s.writeError(w, r, core.NewDomainError(core.ModuleProfile, core.ErrorCodeNotSupported,
			"customer lookup is not configured"))
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	p, err := s.profiles.Lookup(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.predictor.Predict(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondPrediction(w, r, p, res, true)
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.predictor.Info())
}

// handleStats 输入分布与训练参考的对比
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.predictor.Stats()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.predictor == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	info := s.predictor.Info()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"model":           info.ModelName,
		"standardization": info.Standardization,
	})
}
