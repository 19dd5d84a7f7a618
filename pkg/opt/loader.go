package opt

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables recognized by MergeWithEnvironment. The target
// overrides apply to the first target and exist for the common
// single-target case.
const (
	EnvLeadfield            = "STIMOPT_LEADFIELD"
	EnvName                 = "STIMOPT_NAME"
	EnvMaxTotalCurrent      = "STIMOPT_MAX_TOTAL_CURRENT"
	EnvMaxIndividualCurrent = "STIMOPT_MAX_INDIVIDUAL_CURRENT"
	EnvMaxActiveElectrodes  = "STIMOPT_MAX_ACTIVE_ELECTRODES"
	EnvTargetPosition       = "STIMOPT_TARGET_POSITION"
	EnvTargetIntensity      = "STIMOPT_TARGET_INTENSITY"
)

// MergeWithEnvironment applies STIMOPT_* environment overrides to the spec.
// Unparsable values are ignored.
func MergeWithEnvironment(o *Optimization) {
	if v := os.Getenv(EnvLeadfield); v != "" {
		o.Leadfield = v
	}
	if v := os.Getenv(EnvName); v != "" {
		o.Name = v
	}
	if v := os.Getenv(EnvMaxTotalCurrent); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			o.MaxTotalCurrent = f
		}
	}
	if v := os.Getenv(EnvMaxIndividualCurrent); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			o.MaxIndividualCurrent = f
		}
	}
	if v := os.Getenv(EnvMaxActiveElectrodes); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			o.MaxActiveElectrodes = n
		}
	}
	if v := os.Getenv(EnvTargetPosition); v != "" && len(o.Targets) > 0 {
		if pos, err := ParseVector3(v); err == nil {
			o.Targets[0].Position = pos
		}
	}
	if v := os.Getenv(EnvTargetIntensity); v != "" && len(o.Targets) > 0 {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			o.Targets[0].Intensity = f
		}
	}
}

// MergeWithCLIOverrides applies flag-level overrides to the spec.
// Values of the wrong type are ignored.
func MergeWithCLIOverrides(o *Optimization, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "leadfield":
			if s, ok := value.(string); ok && s != "" {
				o.Leadfield = s
			}
		case "name":
			if s, ok := value.(string); ok && s != "" {
				o.Name = s
			}
		case "max_total_current":
			if f, ok := toFloat(value); ok && f > 0 {
				o.MaxTotalCurrent = f
			}
		case "max_individual_current":
			if f, ok := toFloat(value); ok && f > 0 {
				o.MaxIndividualCurrent = f
			}
		case "max_active_electrodes":
			if n, ok := toInt(value); ok && n >= 0 {
				o.MaxActiveElectrodes = n
			}
		case "target_position":
			if len(o.Targets) == 0 {
				continue
			}
			switch pos := value.(type) {
			case string:
				if v, err := ParseVector3(pos); err == nil {
					o.Targets[0].Position = v
				}
			case []float64:
				if len(pos) == 3 {
					o.Targets[0].Position = append([]float64(nil), pos...)
				}
			}
		case "target_intensity":
			if f, ok := toFloat(value); ok && f > 0 && len(o.Targets) > 0 {
				o.Targets[0].Intensity = f
			}
		}
	}
}

// LoadWithOverrides loads a spec file and layers environment and CLI
// overrides on top before defaults and validation
func LoadWithOverrides(path string, cliOverrides map[string]interface{}) (*Optimization, error) {
	o, err := readSpec(path)
	if err != nil {
		return nil, err
	}

	MergeWithEnvironment(o)
	if cliOverrides != nil {
		MergeWithCLIOverrides(o, cliOverrides)
	}

	o.ApplyDefaults()
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("invalid optimization spec after overrides: %w", err)
	}

	return o, nil
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}
