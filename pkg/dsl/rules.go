// Package dsl 提供基于 CEL (Common Expression Language) 的风险因子规则。
package dsl

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/retainiq/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// getCELEnv 获取或创建 CEL 环境。表达式只能访问 profile 变量。
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("profile", cel.MapType(cel.StringType, cel.DynType)),
		)
	})
	return celEnv, celEnvErr
}

// Rule 一条风险因子规则：Expr 为真时输出 Text。
type Rule struct {
	Expr string `yaml:"expr" json:"expr"`
	Text string `yaml:"text" json:"text"`
}

// DefaultRules 内置的风险因子规则，按展示顺序排列。
//
// 表达式语法（CEL 标准语法），profile 的键与 CustomerProfile 的 JSON 字段一致：
//   - 数值：profile.tenure < 6.0 / profile.monthly_charges > 80.0
//   - 类别：profile.contract == "Month-to-month"
//   - 布尔：profile.paperless_billing
//   - 逻辑：profile.senior_citizen && !profile.partner
func DefaultRules() []Rule {
	return []Rule{
		{Expr: `profile.tenure < 6.0`, Text: "Short tenure (< 6 months)"},
		{Expr: `profile.monthly_charges > 80.0`, Text: "High monthly charges"},
		{Expr: `profile.internet_service == "Fiber optic"`, Text: "Fiber optic internet service (competitive market)"},
		{Expr: `profile.paperless_billing`, Text: "Paperless billing"},
		{Expr: `profile.contract == "Month-to-month"`, Text: "Month-to-month contract (higher churn risk)"},
	}
}

type compiledRule struct {
	Rule
	prg cel.Program
}

// RuleSet 是编译好的规则集合。表达式只编译一次，Evaluate 可并发调用。
type RuleSet struct {
	rules []compiledRule
}

// Compile 编译规则；任一表达式编译失败或返回类型不是 bool 时整体失败（STARTUP_ERROR）。
func Compile(rules []Rule) (*RuleSet, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleProfile, core.ErrorCodeStartup, "cel env", err)
	}
	rs := &RuleSet{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		if r.Expr == "" || r.Text == "" {
			return nil, core.NewDomainError(core.ModuleProfile, core.ErrorCodeStartup,
				fmt.Sprintf("risk rule %d: expr and text are required", i))
		}
		ast, issues := env.Compile(r.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, core.WrapDomainError(core.ModuleProfile, core.ErrorCodeStartup,
				fmt.Sprintf("risk rule %q: compile error", r.Expr), issues.Err())
		}
		if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
			return nil, core.NewDomainError(core.ModuleProfile, core.ErrorCodeStartup,
				fmt.Sprintf("risk rule %q: must return bool, got %v", r.Expr, out))
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleProfile, core.ErrorCodeStartup,
				fmt.Sprintf("risk rule %q: program error", r.Expr), err)
		}
		rs.rules = append(rs.rules, compiledRule{Rule: r, prg: prg})
	}
	return rs, nil
}

// MustCompile 同 Compile，失败时 panic（用于内置规则）
func MustCompile(rules []Rule) *RuleSet {
	rs, err := Compile(rules)
	if err != nil {
		panic(err)
	}
	return rs
}

// Len 规则数量
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Evaluate 按规则顺序返回命中的因子文本。
// 单条规则执行失败（如访问不存在的键）不影响其他规则，失败原因合并后返回。
func (rs *RuleSet) Evaluate(p *core.CustomerProfile) ([]string, error) {
	if rs == nil || p == nil {
		return nil, nil
	}
	input := map[string]any{"profile": p.Attributes()}

	var (
		factors []string
		errs    []error
	)
	for _, r := range rs.rules {
		out, _, err := r.prg.Eval(input)
		if err != nil {
			errs = append(errs, fmt.Errorf("eval %q: %w", r.Expr, err))
			continue
		}
		hit, ok := out.Value().(bool)
		if !ok {
			errs = append(errs, fmt.Errorf("eval %q: expression must return boolean, got %T", r.Expr, out.Value()))
			continue
		}
		if hit {
			factors = append(factors, r.Text)
		}
	}
	return factors, errors.Join(errs...)
}
