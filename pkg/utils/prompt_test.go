package utils

import (
	"reflect"
	"testing"
	"time"

	"github.com/stimtools/stimopt/pkg/protocol"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		param   protocol.Parameter
		want    interface{}
		wantErr bool
	}{
		{
			name:  "integer",
			value: "8",
			param: protocol.Parameter{Name: "max_electrodes", Type: "integer"},
			want:  8,
		},
		{
			name:  "float",
			value: "0.2",
			param: protocol.Parameter{Name: "intensity", Type: "float"},
			want:  0.2,
		},
		{
			name:  "string",
			value: "single_target",
			param: protocol.Parameter{Name: "run_name", Type: "string"},
			want:  "single_target",
		},
		{
			name:  "boolean",
			value: "true",
			param: protocol.Parameter{Name: "verbose", Type: "boolean"},
			want:  true,
		},
		{
			name:  "duration",
			value: "90s",
			param: protocol.Parameter{Name: "timeout", Type: "duration"},
			want:  90 * time.Second,
		},
		{
			name:  "vector3",
			value: "-55.4,-20.7,73.4",
			param: protocol.Parameter{Name: "target_position", Type: "vector3"},
			want:  []float64{-55.4, -20.7, 73.4},
		},
		{
			name:    "vector3 with wrong arity",
			value:   "1,2",
			param:   protocol.Parameter{Name: "target_position", Type: "vector3"},
			wantErr: true,
		},
		{
			name:    "integer garbage",
			value:   "eight",
			param:   protocol.Parameter{Name: "max_electrodes", Type: "integer"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			value:   "x",
			param:   protocol.Parameter{Name: "weird", Type: "matrix"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(tt.value, tt.param)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseValue(%q) should fail", tt.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseValue(%q) error = %v", tt.value, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseValue(%q) = %v (%T), want %v (%T)", tt.value, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestPromptSkipUsesDefaults(t *testing.T) {
	t.Setenv(EnvSkipPrompts, "true")

	params := []protocol.Parameter{
		{Name: "intensity", Type: "float", Default: 0.2},
		{Name: "run_name", Type: "string", Default: "single_target"},
	}

	values, err := PromptForParameters(params)
	if err != nil {
		t.Fatalf("PromptForParameters() error = %v", err)
	}
	if values["intensity"] != 0.2 {
		t.Errorf("intensity = %v, want 0.2", values["intensity"])
	}
	if values["run_name"] != "single_target" {
		t.Errorf("run_name = %v, want single_target", values["run_name"])
	}
}

func TestPromptSkipEnvOverride(t *testing.T) {
	t.Setenv(EnvSkipPrompts, "true")
	t.Setenv("STIMOPT_TARGET_POSITION", "10,-5,60")

	params := []protocol.Parameter{
		{Name: "target_position", Type: "vector3", Default: "-55.4,-20.7,73.4"},
	}

	values, err := PromptForParameters(params)
	if err != nil {
		t.Fatalf("PromptForParameters() error = %v", err)
	}
	want := []float64{10, -5, 60}
	if !reflect.DeepEqual(values["target_position"], want) {
		t.Errorf("target_position = %v, want %v", values["target_position"], want)
	}
}

func TestPromptSkipRequiredMissing(t *testing.T) {
	t.Setenv(EnvSkipPrompts, "true")

	params := []protocol.Parameter{
		{Name: "leadfield", Type: "string", Required: true},
	}

	if _, err := PromptForParameters(params); err == nil {
		t.Error("PromptForParameters() should fail for a missing required parameter")
	}
}
