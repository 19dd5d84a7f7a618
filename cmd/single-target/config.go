package singletarget

import (
	"fmt"
	"strconv"

	"github.com/stimtools/stimopt/pkg/opt"
)

// Config holds the configuration for the single-target protocol
type Config struct {
	Leadfield            string
	RunName              string
	MaxTotalCurrent      float64
	MaxIndividualCurrent float64
	MaxActiveElectrodes  int
	TargetPosition       []float64
	TargetIntensity      float64
}

// ValidateAndParse validates and parses the raw parameters into a Config.
// Missing parameters fall back to the stock motor-cortex setup.
func ValidateAndParse(params map[string]interface{}) (*Config, error) {
	config := &Config{
		RunName:              "single_target",
		MaxTotalCurrent:      opt.DefaultMaxTotalCurrent,
		MaxIndividualCurrent: opt.DefaultMaxIndividualCurrent,
		MaxActiveElectrodes:  8,
		TargetPosition:       []float64{-55.4, -20.7, 73.4},
		TargetIntensity:      opt.DefaultTargetIntensity,
	}

	if v, ok := params["leadfield"]; ok {
		config.Leadfield = fmt.Sprintf("%v", v)
	}
	if config.Leadfield == "" {
		return nil, fmt.Errorf("leadfield is required")
	}

	if v, ok := params["run_name"]; ok {
		if name := fmt.Sprintf("%v", v); name != "" {
			config.RunName = name
		}
	}

	if v, ok := params["max_total_current"]; ok {
		value, err := floatParam(v)
		if err != nil {
			return nil, fmt.Errorf("max_total_current: %w", err)
		}
		config.MaxTotalCurrent = value
	}
	if config.MaxTotalCurrent <= 0 {
		return nil, fmt.Errorf("max_total_current must be positive")
	}

	if v, ok := params["max_individual_current"]; ok {
		value, err := floatParam(v)
		if err != nil {
			return nil, fmt.Errorf("max_individual_current: %w", err)
		}
		config.MaxIndividualCurrent = value
	}
	if config.MaxIndividualCurrent <= 0 {
		return nil, fmt.Errorf("max_individual_current must be positive")
	}
	if config.MaxIndividualCurrent > config.MaxTotalCurrent {
		return nil, fmt.Errorf("max_individual_current must not exceed max_total_current")
	}

	if v, ok := params["max_active_electrodes"]; ok {
		value, err := intParam(v)
		if err != nil {
			return nil, fmt.Errorf("max_active_electrodes: %w", err)
		}
		config.MaxActiveElectrodes = value
	}
	if config.MaxActiveElectrodes < 2 {
		return nil, fmt.Errorf("max_active_electrodes must be at least 2")
	}

	if v, ok := params["target_position"]; ok {
		position, err := vectorParam(v)
		if err != nil {
			return nil, fmt.Errorf("target_position: %w", err)
		}
		config.TargetPosition = position
	}

	if v, ok := params["target_intensity"]; ok {
		value, err := floatParam(v)
		if err != nil {
			return nil, fmt.Errorf("target_intensity: %w", err)
		}
		config.TargetIntensity = value
	}
	if config.TargetIntensity <= 0 {
		return nil, fmt.Errorf("target_intensity must be positive")
	}

	return config, nil
}

// floatParam accepts the types a value can arrive as: typed from prompts,
// string from --param flags or YAML round trips
func floatParam(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case string:
		return strconv.ParseFloat(val, 64)
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func intParam(v interface{}) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case float64:
		return int(val), nil
	case string:
		return strconv.Atoi(val)
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}

func vectorParam(v interface{}) ([]float64, error) {
	switch val := v.(type) {
	case []float64:
		if len(val) != 3 {
			return nil, fmt.Errorf("expected 3 components, got %d", len(val))
		}
		return val, nil
	case []interface{}:
		if len(val) != 3 {
			return nil, fmt.Errorf("expected 3 components, got %d", len(val))
		}
		vec := make([]float64, 3)
		for i, c := range val {
			f, err := floatParam(c)
			if err != nil {
				return nil, err
			}
			vec[i] = f
		}
		return vec, nil
	case string:
		return opt.ParseVector3(val)
	default:
		return nil, fmt.Errorf("expected coordinates, got %T", v)
	}
}
