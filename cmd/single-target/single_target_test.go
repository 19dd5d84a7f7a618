package singletarget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stimtools/stimopt/pkg/engine"
	"github.com/stimtools/stimopt/pkg/opt"
)

type captureEngine struct {
	spec  *opt.Optimization
	block bool
}

func (e *captureEngine) Name() string { return "capture" }

func (e *captureEngine) ValidateConnection(ctx context.Context) error { return nil }

func (e *captureEngine) Optimize(ctx context.Context, spec *opt.Optimization) (*engine.Result, error) {
	e.spec = spec
	if e.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &engine.Result{RunName: spec.Name, Engine: e.Name()}, nil
}

func TestRunUsesDefaults(t *testing.T) {
	p := New()
	if err := p.Configure(map[string]interface{}{
		"leadfield": "leadfield.hdf5",
	}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	eng := &captureEngine{}
	if err := p.Run(context.Background(), eng); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if eng.spec == nil {
		t.Fatal("engine never received a spec")
	}

	spec := eng.spec
	if spec.Name != "single_target" {
		t.Errorf("Name = %q, want single_target", spec.Name)
	}
	if spec.Leadfield != "leadfield.hdf5" {
		t.Errorf("Leadfield = %q", spec.Leadfield)
	}
	if spec.MaxTotalCurrent != 2e-3 {
		t.Errorf("MaxTotalCurrent = %g, want 2e-3", spec.MaxTotalCurrent)
	}
	if spec.MaxIndividualCurrent != 1e-3 {
		t.Errorf("MaxIndividualCurrent = %g, want 1e-3", spec.MaxIndividualCurrent)
	}
	if spec.MaxActiveElectrodes != 8 {
		t.Errorf("MaxActiveElectrodes = %d, want 8", spec.MaxActiveElectrodes)
	}
	if len(spec.Targets) != 1 {
		t.Fatalf("Targets length = %d, want 1", len(spec.Targets))
	}

	target := spec.Targets[0]
	want := []float64{-55.4, -20.7, 73.4}
	for i, c := range want {
		if target.Position[i] != c {
			t.Errorf("Position[%d] = %g, want %g", i, target.Position[i], c)
		}
	}
	if target.Intensity != 0.2 {
		t.Errorf("Intensity = %g, want 0.2", target.Intensity)
	}
}

func TestRunWithOverrides(t *testing.T) {
	p := New()
	if err := p.Configure(map[string]interface{}{
		"leadfield":              "lf://ernie",
		"run_name":               "pilot/run_01",
		"max_total_current":      "0.004",
		"max_individual_current": 0.002,
		"max_active_electrodes":  4,
		"target_position":        "10,-5,60",
		"target_intensity":       0.25,
	}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	eng := &captureEngine{}
	if err := p.Run(context.Background(), eng); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	spec := eng.spec
	if spec.Name != "pilot/run_01" {
		t.Errorf("Name = %q", spec.Name)
	}
	if spec.MaxTotalCurrent != 0.004 {
		t.Errorf("MaxTotalCurrent = %g, want 0.004", spec.MaxTotalCurrent)
	}
	if spec.Targets[0].Position[0] != 10 {
		t.Errorf("Position = %v", spec.Targets[0].Position)
	}
	if spec.Targets[0].Intensity != 0.25 {
		t.Errorf("Intensity = %g, want 0.25", spec.Targets[0].Intensity)
	}
}

func TestConfigureRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]interface{}
	}{
		{
			name:   "missing leadfield",
			params: map[string]interface{}{},
		},
		{
			name: "individual current exceeds total",
			params: map[string]interface{}{
				"leadfield":              "leadfield.hdf5",
				"max_total_current":      1e-3,
				"max_individual_current": 2e-3,
			},
		},
		{
			name: "single electrode budget",
			params: map[string]interface{}{
				"leadfield":             "leadfield.hdf5",
				"max_active_electrodes": 1,
			},
		},
		{
			name: "malformed position",
			params: map[string]interface{}{
				"leadfield":       "leadfield.hdf5",
				"target_position": "10,-5",
			},
		},
		{
			name: "zero intensity",
			params: map[string]interface{}{
				"leadfield":        "leadfield.hdf5",
				"target_intensity": 0.0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := New().Configure(tt.params); err == nil {
				t.Error("Configure() should fail")
			}
		})
	}
}

func TestRunRequiresConfigure(t *testing.T) {
	if err := New().Run(context.Background(), &captureEngine{}); err == nil {
		t.Error("Run() without Configure() should fail")
	}
}

func TestStopCancelsRun(t *testing.T) {
	p := New()
	if err := p.Configure(map[string]interface{}{"leadfield": "leadfield.hdf5"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- p.Run(context.Background(), &captureEngine{block: true})
	}()

	// Give the run a moment to reach the engine
	time.Sleep(20 * time.Millisecond)
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after Stop()")
	}

	// Stop is idempotent
	if err := p.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
