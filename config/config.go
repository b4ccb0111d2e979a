// Package config 加载服务配置：默认值 -> YAML 文件 -> RETAINIQ_* 环境变量。
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/retainiq/pkg/dsl"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "RETAINIQ_"

// Config 服务配置（支持 YAML）
type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Log         LogConfig       `yaml:"log"`
	Artifacts   ArtifactsConfig `yaml:"artifacts"`
	Redis       RedisConfig     `yaml:"redis"`
	Feast       FeastConfig     `yaml:"feast"`
	Inference   InferenceConfig `yaml:"inference"`
	RiskFactors []dsl.Rule      `yaml:"risk_factors"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	// Level debug / info / warn / error
	Level string `yaml:"level"`
}

// ArtifactsConfig 产物位置：本地路径、http(s):// 或 store://<key>
type ArtifactsConfig struct {
	Schema      string        `yaml:"schema"`
	Model       string        `yaml:"model"`
	Scaler      string        `yaml:"scaler"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// RedisConfig Addr 为空时不连接 Redis
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// FeastConfig Endpoint 为空时不启用客户画像查询
type FeastConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Project     string        `yaml:"project"`
	FeatureView string        `yaml:"feature_view"`
	Token       string        `yaml:"token"`
	Timeout     time.Duration `yaml:"timeout"`
	// CacheTTL 画像缓存时间，0 表示不缓存
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	CacheSize int           `yaml:"cache_size"`
}

type InferenceConfig struct {
	TopK int `yaml:"top_k"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Artifacts: ArtifactsConfig{
			Schema:      "artifacts/feature_meta.json",
			Model:       "artifacts/model.json",
			Scaler:      "artifacts/feature_scaler.json",
			HTTPTimeout: 10 * time.Second,
		},
		Feast: FeastConfig{
			FeatureView: "telco_customer",
			Timeout:     2 * time.Second,
			CacheSize:   1024,
		},
		Inference: InferenceConfig{TopK: 10},
	}
}

// Load 从 YAML 文件加载配置。path 为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if len(cfg.RiskFactors) == 0 {
		cfg.RiskFactors = dsl.DefaultRules()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 用环境变量覆盖配置，例如 RETAINIQ_SERVER_ADDR、RETAINIQ_ARTIFACTS_MODEL。
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SERVER_ADDR":        &c.Server.Addr,
		"LOG_LEVEL":          &c.Log.Level,
		"ARTIFACTS_SCHEMA":   &c.Artifacts.Schema,
		"ARTIFACTS_MODEL":    &c.Artifacts.Model,
		"ARTIFACTS_SCALER":   &c.Artifacts.Scaler,
		"REDIS_ADDR":         &c.Redis.Addr,
		"REDIS_PASSWORD":     &c.Redis.Password,
		"FEAST_ENDPOINT":     &c.Feast.Endpoint,
		"FEAST_PROJECT":      &c.Feast.Project,
		"FEAST_FEATURE_VIEW": &c.Feast.FeatureView,
		"FEAST_TOKEN":        &c.Feast.Token,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"REDIS_DB":         &c.Redis.DB,
		"INFERENCE_TOP_K":  &c.Inference.TopK,
		"FEAST_CACHE_SIZE": &c.Feast.CacheSize,
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"SERVER_READ_TIMEOUT":     &c.Server.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":    &c.Server.WriteTimeout,
		"SERVER_SHUTDOWN_TIMEOUT": &c.Server.ShutdownTimeout,
		"ARTIFACTS_HTTP_TIMEOUT":  &c.Artifacts.HTTPTimeout,
		"FEAST_TIMEOUT":           &c.Feast.Timeout,
		"FEAST_CACHE_TTL":         &c.Feast.CacheTTL,
	}
	for key, dst := range durations {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate 校验必填项与取值范围
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Artifacts.Schema == "" {
		return fmt.Errorf("artifacts.schema is required")
	}
	if c.Artifacts.Model == "" {
		return fmt.Errorf("artifacts.model is required")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Inference.TopK < 0 {
		return fmt.Errorf("inference.top_k must be >= 0, got %d", c.Inference.TopK)
	}
	if c.Feast.Endpoint != "" && c.Feast.Project == "" {
		return fmt.Errorf("feast.project is required when feast.endpoint is set")
	}
	for _, src := range []string{c.Artifacts.Schema, c.Artifacts.Model, c.Artifacts.Scaler} {
		if strings.HasPrefix(src, "store://") && c.Redis.Addr == "" {
			return fmt.Errorf("artifact %q needs redis.addr", src)
		}
	}
	return nil
}

// ParseLevel 解析日志级别
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
