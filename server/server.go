// Package server 提供流失预测的 HTTP 接口与看板页面。
package server

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rushteam/retainiq/core"
	"github.com/rushteam/retainiq/feature"
	"github.com/rushteam/retainiq/predictor"
)

// Predictor 是 HTTP 层依赖的预测能力，由 *predictor.Predictor 实现。
type Predictor interface {
	Predict(ctx context.Context, profile *core.CustomerProfile) (*core.PredictionResult, error)
	Encode(profile *core.CustomerProfile) (*feature.Vector, error)
	Info() predictor.Info
	Stats() (feature.MonitorSnapshot, error)
}

// Server 持有路由依赖。Profiles 为 nil 时客户查询接口返回 501。
type Server struct {
	predictor Predictor
	profiles  core.ProfileSource
	logger    *slog.Logger
	tmpl      *template.Template
}

// Option 服务配置选项
type Option func(*Server)

// WithProfileSource 启用按客户 ID 查询画像
func WithProfileSource(src core.ProfileSource) Option {
	return func(s *Server) { s.profiles = src }
}

// WithLogger 设置日志
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New 创建 Server
func New(p Predictor, opts ...Option) *Server {
	s := &Server{
		predictor: p,
		logger:    slog.Default(),
		tmpl:      dashboardTemplate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes 返回挂载了中间件的路由
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	// 看板
	r.Get("/", s.handleDashboard)
	r.Post("/predict", s.handleDashboardPredict)
	r.Post("/report", s.handleDashboardReport)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/predict", s.handlePredict)
		r.Post("/report", s.handleReport)
		r.Get("/customers/{id}/churn", s.handleCustomerChurn)
		r.Get("/model", s.handleModel)
		r.Get("/stats", s.handleStats)
	})
	return r
}
