package inference

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rushteam/retainiq/core"
	"github.com/rushteam/retainiq/feature"
	"github.com/rushteam/retainiq/model"
)

// stubClassifier 返回固定概率/标签，可注入错误
type stubClassifier struct {
	width   int
	proba   float64
	label   int
	err     error
	nProbas int
}

func (s *stubClassifier) Name() string    { return "stub" }
func (s *stubClassifier) Version() string { return "t1" }
func (s *stubClassifier) Width() int      { return s.width }

func (s *stubClassifier) PredictProba(_ context.Context, rows [][]float64) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	n := len(rows)
	if s.nProbas > 0 {
		n = s.nProbas
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = s.proba
	}
	return out, nil
}

func (s *stubClassifier) PredictLabel(_ context.Context, rows [][]float64) ([]int, error) {
	out := make([]int, len(rows))
	for i := range out {
		out[i] = s.label
	}
	return out, nil
}

func mustSchema(t *testing.T, names ...string) *feature.Schema {
	t.Helper()
	s, err := feature.NewSchema(names)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestInvoker_Invoke(t *testing.T) {
	schema := mustSchema(t, "a", "b")
	iv, err := NewInvoker(&stubClassifier{width: 2, proba: 0.72, label: 1}, schema)
	if err != nil {
		t.Fatal(err)
	}
	res, err := iv.Invoke(context.Background(), feature.NewVector(schema.Names(), []float64{1, 0}))
	if err != nil {
		t.Fatal(err)
	}
	if res.Probability != 0.72 || res.Label != 1 || res.Tier != core.RiskHigh {
		t.Errorf("result = %+v", res)
	}
	if res.ModelName != "stub" || res.ModelVersion != "t1" {
		t.Errorf("model = %q %q", res.ModelName, res.ModelVersion)
	}
}

func TestInvoker_Errors(t *testing.T) {
	schema := mustSchema(t, "a", "b")
	ctx := context.Background()

	tests := []struct {
		name       string
		classifier *stubClassifier
		vector     *feature.Vector
		wantActual int
	}{
		{
			name:       "width mismatch",
			classifier: &stubClassifier{width: 2, proba: 0.1},
			vector:     feature.NewVector([]string{"a"}, []float64{1}),
			wantActual: 1,
		},
		{
			name:       "nan value",
			classifier: &stubClassifier{width: 2, proba: 0.1},
			vector:     feature.NewVector([]string{"a", "b"}, []float64{math.NaN(), 0}),
			wantActual: 2,
		},
		{
			name:       "classifier failure",
			classifier: &stubClassifier{width: 2, err: errors.New("boom")},
			vector:     feature.NewVector([]string{"a", "b"}, []float64{0, 0}),
			wantActual: 2,
		},
		{
			name:       "probability out of range",
			classifier: &stubClassifier{width: 2, proba: 1.2},
			vector:     feature.NewVector([]string{"a", "b"}, []float64{0, 0}),
			wantActual: 2,
		},
		{
			name:       "wrong row count",
			classifier: &stubClassifier{width: 2, proba: 0.3, nProbas: 2},
			vector:     feature.NewVector([]string{"a", "b"}, []float64{0, 0}),
			wantActual: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv, err := NewInvoker(tt.classifier, schema)
			if err != nil {
				t.Fatal(err)
			}
			_, err = iv.Invoke(ctx, tt.vector)
			if !core.IsInferenceError(err) {
				t.Fatalf("error = %v, want INFERENCE_ERROR", err)
			}
			var ie *InferenceError
			if !errors.As(err, &ie) {
				t.Fatal("error must be *InferenceError")
			}
			if ie.Expected != 2 || ie.Actual != tt.wantActual {
				t.Errorf("expected=%d actual=%d, want 2/%d", ie.Expected, ie.Actual, tt.wantActual)
			}
		})
	}
}

func TestNewInvoker_WidthMismatch(t *testing.T) {
	_, err := NewInvoker(&stubClassifier{width: 3}, mustSchema(t, "a", "b"))
	if !core.IsSchemaMismatch(err) {
		t.Errorf("error = %v, want SCHEMA_MISMATCH", err)
	}
}

func TestInvoker_TopFeatures(t *testing.T) {
	schema := mustSchema(t, "a", "b", "c")

	lr := model.NewLogisticRegression(0, []float64{1, 1, 1})
	iv, _ := NewInvoker(lr, schema)
	if _, ok := iv.TopFeatures(0); ok {
		t.Error("logistic regression has no importances")
	}

	stump := func(f int) model.Tree {
		return model.Tree{
			Feature:   []int{f, -2, -2},
			Threshold: []float64{0.5, -2, -2},
			Left:      []int{1, -1, -1},
			Right:     []int{2, -1, -1},
			Value:     []float64{0, -1, 1},
		}
	}
	gb, err := model.NewGradientBoosting(3, 0, 0.1, []model.Tree{stump(2), stump(2), stump(0)})
	if err != nil {
		t.Fatal(err)
	}
	iv, _ = NewInvoker(gb, schema)
	top, ok := iv.TopFeatures(2)
	if !ok {
		t.Fatal("gradient boosting exposes importances")
	}
	if len(top) != 2 || top[0].Name != "c" || top[1].Name != "a" {
		t.Errorf("top = %+v", top)
	}
	all, _ := iv.TopFeatures(0)
	if len(all) != 3 {
		t.Errorf("default k should cap at schema width, got %d", len(all))
	}
}
