package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestRPCModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Instances [][]float64 `json:"instances"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		probs := make([]float64, len(req.Instances))
		for i, row := range req.Instances {
			probs[i] = row[0]
		}
		resp := map[string]any{"probabilities": probs}
		if r.URL.Path == "/with-labels" {
			resp["labels"] = []int{0, 0}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	ctx := context.Background()
	rows := [][]float64{{0.8, 0}, {0.2, 0}}

	m := NewRPCModel("remote", srv.URL+"/predict", 2, time.Second)
	probs, err := m.PredictProba(ctx, rows)
	if err != nil {
		t.Fatal(err)
	}
	if probs[0] != 0.8 || probs[1] != 0.2 {
		t.Errorf("probs = %v", probs)
	}
	lbls, err := m.PredictLabel(ctx, rows)
	if err != nil {
		t.Fatal(err)
	}
	if lbls[0] != 1 || lbls[1] != 0 {
		t.Errorf("threshold labels = %v", lbls)
	}

	withLabels := NewRPCModel("remote", srv.URL+"/with-labels", 2, time.Second)
	lbls, err = withLabels.PredictLabel(ctx, rows)
	if err != nil {
		t.Fatal(err)
	}
	if lbls[0] != 0 {
		t.Errorf("server labels should win, got %v", lbls)
	}

	if _, err := m.PredictProba(ctx, [][]float64{{1}}); err == nil {
		t.Error("expected width error")
	}
}

func TestRPCModel_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewRPCModel("remote", srv.URL, 1, time.Second)
	if _, err := m.PredictProba(context.Background(), [][]float64{{1}}); err == nil {
		t.Error("expected error")
	}
}

func TestRPCModel_ZeroClientConcurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"probabilities": []float64{0.3}})
	}))
	defer srv.Close()

	// 未经 NewRPCModel 构造，Client 为 nil
	m := &RPCModel{width: 1, Endpoint: srv.URL, Timeout: time.Second, Threshold: DefaultThreshold}
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.PredictLabel(context.Background(), [][]float64{{1}}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if m.Client != nil {
		t.Error("call must not mutate the shared model")
	}
}

func TestBuildRPC(t *testing.T) {
	data := []byte(`{"type":"rpc","endpoint":"http://model:8080/predict","timeout":250,"threshold":0.4}`)
	h, _ := ParseHeader(data)
	c, err := Build(h, data, []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	m := c.(*RPCModel)
	if m.Width() != 3 || m.Timeout != 250*time.Millisecond || m.Threshold != 0.4 {
		t.Errorf("model = %+v", m)
	}

	missing := []byte(`{"type":"rpc"}`)
	if _, err := Build(h, missing, []string{"a"}); err == nil {
		t.Error("missing endpoint should fail")
	}
}
