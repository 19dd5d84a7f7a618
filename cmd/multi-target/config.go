package multitarget

import (
	"fmt"
	"strconv"

	"github.com/stimtools/stimopt/pkg/opt"
)

// TargetConfig describes one optimization target
type TargetConfig struct {
	Position  []float64
	Intensity float64
	Direction []float64
}

// Config holds the configuration for the multi-target protocol
type Config struct {
	Leadfield            string
	RunName              string
	MaxTotalCurrent      float64
	MaxIndividualCurrent float64
	MaxActiveElectrodes  int
	Targets              []TargetConfig
	TargetRadius         float64
	AvoidPosition        []float64
	AvoidRadius          float64
	AvoidWeight          float64
}

// ValidateAndParse validates and parses the raw parameters into a Config.
// The second target and the avoidance region are optional: blank positions
// disable them.
func ValidateAndParse(params map[string]interface{}) (*Config, error) {
	config := &Config{
		RunName:              "multi_target",
		MaxTotalCurrent:      4e-3,
		MaxIndividualCurrent: 2e-3,
		MaxActiveElectrodes:  8,
		TargetRadius:         opt.DefaultTargetRadius,
		AvoidRadius:          10,
		AvoidWeight:          opt.DefaultAvoidWeight,
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
	if v, ok := params["max_individual_current"]; ok {
		value, err := floatParam(v)
		if err != nil {
			return nil, fmt.Errorf("max_individual_current: %w", err)
		}
		config.MaxIndividualCurrent = value
	}
	if config.MaxTotalCurrent <= 0 || config.MaxIndividualCurrent <= 0 {
		return nil, fmt.Errorf("current limits must be positive")
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

	if v, ok := params["target_radius"]; ok {
		value, err := floatParam(v)
		if err != nil {
			return nil, fmt.Errorf("target_radius: %w", err)
		}
		config.TargetRadius = value
	}
	if config.TargetRadius < 0 {
		return nil, fmt.Errorf("target_radius must not be negative")
	}

	first, err := parseTarget(params, "target1", []float64{-50.7, 5.1, 55.5})
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, fmt.Errorf("target1_position is required")
	}
	config.Targets = append(config.Targets, *first)

	second, err := parseTarget(params, "target2", []float64{50.9, 3.0, 53.9})
	if err != nil {
		return nil, err
	}
	if second != nil {
		config.Targets = append(config.Targets, *second)
	}

	if err := parseAvoid(params, config); err != nil {
		return nil, err
	}

	return config, nil
}

// parseTarget reads the <prefix>_position, _intensity and _direction
// parameters. A blank position yields nil, meaning the target is disabled.
func parseTarget(params map[string]interface{}, prefix string, defaultPosition []float64) (*TargetConfig, error) {
	target := &TargetConfig{
		Position:  defaultPosition,
		Intensity: opt.DefaultTargetIntensity,
	}

	if v, ok := params[prefix+"_position"]; ok {
		if isBlank(v) {
			return nil, nil
		}
		position, err := vectorParam(v)
		if err != nil {
			return nil, fmt.Errorf("%s_position: %w", prefix, err)
		}
		target.Position = position
	}

	if v, ok := params[prefix+"_intensity"]; ok {
		value, err := floatParam(v)
		if err != nil {
			return nil, fmt.Errorf("%s_intensity: %w", prefix, err)
		}
		target.Intensity = value
	}
	if target.Intensity <= 0 {
		return nil, fmt.Errorf("%s_intensity must be positive", prefix)
	}

	if v, ok := params[prefix+"_direction"]; ok && !isBlank(v) {
		direction, err := vectorParam(v)
		if err != nil {
			return nil, fmt.Errorf("%s_direction: %w", prefix, err)
		}
		target.Direction = direction
	}

	return target, nil
}

// parseAvoid reads the avoidance region parameters. A blank position means
// no avoidance region.
func parseAvoid(params map[string]interface{}, config *Config) error {
	v, ok := params["avoid_position"]
	if !ok || isBlank(v) {
		return nil
	}

	position, err := vectorParam(v)
	if err != nil {
		return fmt.Errorf("avoid_position: %w", err)
	}
	config.AvoidPosition = position

	if v, ok := params["avoid_radius"]; ok {
		value, err := floatParam(v)
		if err != nil {
			return fmt.Errorf("avoid_radius: %w", err)
		}
		config.AvoidRadius = value
	}
	if config.AvoidRadius < 0 {
		return fmt.Errorf("avoid_radius must not be negative")
	}

	if v, ok := params["avoid_weight"]; ok {
		value, err := floatParam(v)
		if err != nil {
			return fmt.Errorf("avoid_weight: %w", err)
		}
		config.AvoidWeight = value
	}
	if config.AvoidWeight <= 0 {
		return fmt.Errorf("avoid_weight must be positive")
	}

	return nil
}

func isBlank(v interface{}) bool {
	s, ok := v.(string)
	return ok && s == ""
}

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
