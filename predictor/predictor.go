// Package predictor 组装 schema、标准化器、编码器与分类器，对外提供单个画像的流失预测。
//
// 产物在 Load 时一次性加载并组成不可变的 Bundle；Reload 构建新的 Bundle 成功后原子替换，
// 正在处理的请求继续使用各自拿到的快照。
package predictor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/retainiq/artifact"
	"github.com/rushteam/retainiq/core"
	"github.com/rushteam/retainiq/feature"
	"github.com/rushteam/retainiq/inference"
	"github.com/rushteam/retainiq/model"
	"github.com/rushteam/retainiq/pkg/dsl"
	"github.com/rushteam/retainiq/report"
)

// Options 产物来源与运行参数
type Options struct {
	Fetcher artifact.Fetcher
	// SchemaSource feature_meta.json 位置（必需）
	SchemaSource string
	// ModelSource model.json 位置（必需）
	ModelSource string
	// ScalerSource feature_scaler.json 位置（可选，缺失时降级为静态表）
	ScalerSource string
	// Rules 风险因子规则，nil 时使用 dsl.DefaultRules()
	Rules []dsl.Rule
	// TopK 展示的重要特征数量，<= 0 时使用 inference.DefaultTopK
	TopK   int
	Logger *slog.Logger
}

// Bundle 一次加载得到的全部产物，构造后只读
type Bundle struct {
	Schema    *feature.Schema
	Encoder   *feature.Encoder
	Invoker   *inference.Invoker
	Rules     *dsl.RuleSet
	ModelType string
	LoadedAt  time.Time
	// Monitor 本 Bundle 生效以来的输入分布，可为 nil
	Monitor *feature.Monitor
}

// Degraded 是否使用了静态表标准化（结果为近似值）
func (b *Bundle) Degraded() bool {
	return b.Encoder.Standardization() == core.StandardizationFallback
}

// Predictor 线程安全的预测器
type Predictor struct {
	opts   Options
	logger *slog.Logger
	bundle atomic.Pointer[Bundle]
}

// Load 加载产物并返回可服务的 Predictor。
// schema 或模型不可用时返回 STARTUP_ERROR，进程不应进入服务状态。
func Load(ctx context.Context, opts Options) (*Predictor, error) {
	if opts.Fetcher == nil {
		return nil, startupError("artifact fetcher is required", nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Rules == nil {
		opts.Rules = dsl.DefaultRules()
	}
	if opts.TopK <= 0 {
		opts.TopK = inference.DefaultTopK
	}
	p := &Predictor{opts: opts, logger: opts.Logger.With("component", "predictor")}
	b, err := p.build(ctx)
	if err != nil {
		return nil, err
	}
	p.bundle.Store(b)
	return p, nil
}

// New 用已构建的 Bundle 创建 Predictor（测试 / 内嵌使用），不支持 Reload。
func New(b *Bundle, logger *slog.Logger) *Predictor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Predictor{opts: Options{TopK: inference.DefaultTopK}, logger: logger}
	p.bundle.Store(b)
	return p
}

// Reload 重新加载产物，成功后原子替换；失败时保留当前 Bundle。
func (p *Predictor) Reload(ctx context.Context) error {
	if p.opts.Fetcher == nil {
		return core.NewDomainError(core.ModuleArtifact, core.ErrorCodeNotSupported, "predictor was not built from artifacts")
	}
	b, err := p.build(ctx)
	if err != nil {
		p.logger.Error("reload failed, keeping current artifacts", "error", err)
		return err
	}
	p.bundle.Store(b)
	p.logger.Info("artifacts reloaded",
		"model", b.Invoker.Classifier().Name(),
		"version", b.Invoker.Classifier().Version(),
		"features", b.Schema.Len(),
		"standardization", b.Encoder.Standardization())
	return nil
}

// Bundle 当前快照
func (p *Predictor) Bundle() *Bundle { return p.bundle.Load() }

// build 并发拉取三个产物，再按 schema -> scaler -> model 的顺序组装。
func (p *Predictor) build(ctx context.Context) (*Bundle, error) {
	rules, err := dsl.Compile(p.opts.Rules)
	if err != nil {
		return nil, err
	}

	var schemaData, modelData, scalerData []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := p.opts.Fetcher.Fetch(gctx, p.opts.SchemaSource)
		if err != nil {
			return startupError("load feature schema "+p.opts.SchemaSource, err)
		}
		schemaData = data
		return nil
	})
	g.Go(func() error {
		data, err := p.opts.Fetcher.Fetch(gctx, p.opts.ModelSource)
		if err != nil {
			return startupError("load model "+p.opts.ModelSource, err)
		}
		modelData = data
		return nil
	})
	g.Go(func() error {
		data, err := p.opts.Fetcher.Fetch(gctx, p.opts.ScalerSource)
		if err != nil {
			if core.IsNotFound(err) {
				return nil
			}
			return startupError("load feature scaler "+p.opts.ScalerSource, err)
		}
		scalerData = data
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	schema, err := feature.ParseSchema(schemaData)
	if err != nil {
		return nil, startupError("feature schema", err)
	}

	standardizer, err := p.standardizer(schema, scalerData)
	if err != nil {
		return nil, err
	}
	encoder, err := feature.NewEncoder(schema, standardizer)
	if err != nil {
		return nil, startupError("feature encoder", err)
	}

	classifier, header, err := model.Parse(modelData, schema)
	if err != nil {
		return nil, startupError("model", err)
	}
	invoker, err := inference.NewInvoker(classifier, schema)
	if err != nil {
		return nil, startupError("inference", err)
	}

	p.logger.Info("artifacts loaded",
		"model", classifier.Name(),
		"type", header.Type,
		"version", classifier.Version(),
		"schema_version", schema.Version(),
		"features", schema.Len(),
		"standardization", standardizer.Mode())

	return &Bundle{
		Schema:    schema,
		Encoder:   encoder,
		Invoker:   invoker,
		Rules:     rules,
		Monitor:   feature.NewMonitor(encoder, 0),
		ModelType: header.Type,
		LoadedAt:  time.Now(),
	}, nil
}

// standardizer 由 schema 的 normalized 标记决定标准化契约，两种契约不会混用：
//   - normalized=true：使用 scaler 产物；缺失时降级为静态表（近似结果）
//   - normalized=false：原始数值；若仍配置了 scaler 产物则忽略
func (p *Predictor) standardizer(schema *feature.Schema, scalerData []byte) (feature.Standardizer, error) {
	if !schema.Normalized() {
		if scalerData != nil {
			p.logger.Warn("feature scaler ignored: model was trained on raw numerics")
		}
		return feature.IdentityStandardizer(), nil
	}
	if scalerData == nil {
		p.logger.Warn("feature scaler not found, using approximate fallback statistics",
			"source", p.opts.ScalerSource)
		return feature.FallbackScaler(), nil
	}
	scaler, err := feature.ParseScaler(scalerData)
	if err != nil {
		return nil, startupError("feature scaler", err)
	}
	if err := scaler.Validate(schema); err != nil {
		return nil, startupError("feature scaler", err)
	}
	return scaler, nil
}

// Predict 对单个画像做预测。整个请求只读取一次 Bundle 快照。
func (p *Predictor) Predict(ctx context.Context, profile *core.CustomerProfile) (*core.PredictionResult, error) {
	b := p.bundle.Load()
	if profile == nil {
		return nil, core.NewDomainError(core.ModuleProfile, core.ErrorCodeInvalidInput, "profile is required")
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if b.Monitor != nil {
		b.Monitor.Observe(profile)
	}

	vector, err := b.Encoder.Encode(profile)
	if err != nil {
		return nil, err
	}
	res, err := b.Invoker.Invoke(ctx, vector)
	if err != nil {
		return nil, err
	}

	res.Standardization = b.Encoder.Standardization()
	res.Calibrated = res.Standardization.Calibrated()
	if res.ModelVersion == "" {
		res.ModelVersion = b.Schema.Version()
	}
	if top, ok := b.Invoker.TopFeatures(p.opts.TopK); ok {
		res.TopFeatures = top
	}
	factors, err := b.Rules.Evaluate(profile)
	if err != nil {
		p.logger.Warn("risk rule evaluation failed", "error", err)
	}
	res.Factors = factors
	res.Recommendation = report.Recommendation(res.Tier)

	p.logger.Debug("prediction",
		"probability", res.Probability,
		"tier", res.Tier,
		"standardization", res.Standardization)
	return res, nil
}

// Encode 返回画像的特征向量（调试展示用）
func (p *Predictor) Encode(profile *core.CustomerProfile) (*feature.Vector, error) {
	if profile == nil {
		return nil, core.NewDomainError(core.ModuleProfile, core.ErrorCodeInvalidInput, "profile is required")
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return p.bundle.Load().Encoder.Encode(profile)
}

// Info 当前模型信息
type Info struct {
	ModelName       string               `json:"model_name"`
	ModelType       string               `json:"model_type"`
	ModelVersion    string               `json:"model_version,omitempty"`
	SchemaVersion   string               `json:"schema_version,omitempty"`
	FeatureCount    int                  `json:"feature_count"`
	Features        []string             `json:"features"`
	Standardization core.Standardization `json:"standardization"`
	Calibrated      bool                 `json:"calibrated"`
	Importances     bool                 `json:"importances"`
	Coverage        feature.Coverage     `json:"coverage"`
	RiskRules       int                  `json:"risk_rules"`
	LoadedAt        time.Time            `json:"loaded_at"`
}

// Info 返回当前 Bundle 的模型信息
func (p *Predictor) Info() Info {
	b := p.bundle.Load()
	c := b.Invoker.Classifier()
	_, importances := c.(model.Importancer)
	rules := 0
	if b.Rules != nil {
		rules = b.Rules.Len()
	}
	return Info{
		ModelName:       c.Name(),
		ModelType:       b.ModelType,
		ModelVersion:    c.Version(),
		SchemaVersion:   b.Schema.Version(),
		FeatureCount:    b.Schema.Len(),
		Features:        b.Schema.Names(),
		Standardization: b.Encoder.Standardization(),
		Calibrated:      b.Encoder.Standardization().Calibrated(),
		Importances:     importances,
		Coverage:        b.Encoder.Coverage(),
		RiskRules:       rules,
		LoadedAt:        b.LoadedAt,
	}
}

// Stats 当前 Bundle 的输入分布统计；Bundle 未启用监控时返回 NOT_SUPPORTED。
func (p *Predictor) Stats() (feature.MonitorSnapshot, error) {
	b := p.bundle.Load()
	if b.Monitor == nil {
		return feature.MonitorSnapshot{}, core.NewDomainError(core.ModuleFeature, core.ErrorCodeNotSupported, "input monitoring is disabled")
	}
	return b.Monitor.Snapshot(), nil
}

func startupError(msg string, cause error) error {
	if de := core.GetDomainError(cause); de != nil && de.Code == core.ErrorCodeStartup {
		return cause
	}
	if cause == nil {
		return core.NewDomainError(core.ModuleArtifact, core.ErrorCodeStartup, msg)
	}
	return core.WrapDomainError(core.ModuleArtifact, core.ErrorCodeStartup, msg, cause)
}
