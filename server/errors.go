package server

import (
	"errors"
	"net/http"

	"github.com/rushteam/retainiq/core"
	"github.com/rushteam/retainiq/inference"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// statusOf 错误码 -> HTTP 状态码
func statusOf(err error) (int, string) {
	de := core.GetDomainError(err)
	if de == nil {
		return http.StatusInternalServerError, core.ErrorCodeInternalError
	}
	switch de.Code {
	case core.ErrorCodeInvalidInput:
		return http.StatusBadRequest, de.Code
	case core.ErrorCodeNotFound:
		return http.StatusNotFound, de.Code
	case core.ErrorCodeNotSupported:
		return http.StatusNotImplemented, de.Code
	case core.ErrorCodeUnavailable:
		return http.StatusServiceUnavailable, de.Code
	default:
		return http.StatusInternalServerError, de.Code
	}
}

// writeError 按错误码写 JSON 错误；推理/schema 错误属于特征工程缺陷，按 error 级别记录。
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	rid := RequestIDFrom(r.Context())

	attrs := []any{"error", err, "code", code, "request_id", rid}
	var ie *inference.InferenceError
	if errors.As(err, &ie) {
		attrs = append(attrs, "expected_features", ie.Expected, "actual_features", ie.Actual)
	}
	switch {
	case code == core.ErrorCodeInference || code == core.ErrorCodeSchemaMismatch:
		s.logger.Error("feature engineering defect", attrs...)
	case status >= http.StatusInternalServerError:
		s.logger.Error("request failed", attrs...)
	default:
		s.logger.Warn("request rejected", attrs...)
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		// 内部细节只进日志
		msg = "prediction failed"
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg, RequestID: rid}})
}
