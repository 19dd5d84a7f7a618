package opt

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// Defaults applied by New, AddTarget, AddAvoid and ApplyDefaults.
// Currents are amperes, intensities V/m, radii mm.
const (
	DefaultMaxTotalCurrent      = 2e-3
	DefaultMaxIndividualCurrent = 1e-3
	DefaultTargetIntensity      = 0.2
	DefaultTargetRadius         = 2.0
	DefaultAvoidRadius          = 2.0
	DefaultAvoidWeight          = 1e3
)

// Optimization is the electrode-current optimization specification handed
// to an engine: which leadfield to solve against, what to call the run,
// the current safety limits, and the cortical targets
type Optimization struct {
	// Path to the subject's leadfield file. Opaque to the launcher,
	// consumed by the solver.
	Leadfield string `yaml:"leadfield" json:"leadfield"`

	// Run identifier, doubles as the relative output path prefix.
	// May contain subdirectories ("optimization/single_target").
	Name string `yaml:"name" json:"name"`

	// Safety limits in amperes
	MaxTotalCurrent      float64 `yaml:"max_total_current" json:"max_total_current"`
	MaxIndividualCurrent float64 `yaml:"max_individual_current" json:"max_individual_current"`

	// Electrode budget. Zero means unconstrained.
	MaxActiveElectrodes int `yaml:"max_active_electrodes,omitempty" json:"max_active_electrodes,omitempty"`

	Targets []Target `yaml:"targets" json:"targets"`
	Avoid   []Avoid  `yaml:"avoid,omitempty" json:"avoid,omitempty"`
}

// Target is a cortical site the optimized field should reach
type Target struct {
	// Subject-space coordinates in mm, exactly 3 components
	Position []float64 `yaml:"position,flow" json:"position"`

	// Desired field intensity at the target in V/m
	Intensity float64 `yaml:"intensity" json:"intensity"`

	// Optional field direction, 3 components. Nil means surface normal.
	Direction []float64 `yaml:"direction,omitempty,flow" json:"direction,omitempty"`

	// Target region radius in mm
	Radius float64 `yaml:"radius,omitempty" json:"radius,omitempty"`

	// Optional cone constraint on the field angle in degrees, 0 disables it
	MaxAngle float64 `yaml:"max_angle,omitempty" json:"max_angle,omitempty"`
}

// Avoid is a region the optimizer is penalized for stimulating
type Avoid struct {
	Position []float64 `yaml:"position,flow" json:"position"`
	Radius   float64   `yaml:"radius,omitempty" json:"radius,omitempty"`
	Weight   float64   `yaml:"weight,omitempty" json:"weight,omitempty"`
}

// New creates an optimization named name with the standard safety limits
func New(name string) *Optimization {
	return &Optimization{
		Name:                 name,
		MaxTotalCurrent:      DefaultMaxTotalCurrent,
		MaxIndividualCurrent: DefaultMaxIndividualCurrent,
	}
}

// AddTarget appends a target with default intensity and radius and returns
// it for field assignment. The pointer stays valid until the next append.
func (o *Optimization) AddTarget() *Target {
	o.Targets = append(o.Targets, Target{
		Intensity: DefaultTargetIntensity,
		Radius:    DefaultTargetRadius,
	})
	return &o.Targets[len(o.Targets)-1]
}

// AddAvoid appends an avoidance region with default radius and weight and
// returns it for field assignment
func (o *Optimization) AddAvoid() *Avoid {
	o.Avoid = append(o.Avoid, Avoid{
		Radius: DefaultAvoidRadius,
		Weight: DefaultAvoidWeight,
	})
	return &o.Avoid[len(o.Avoid)-1]
}

// ApplyDefaults fills zero-valued optional fields. Loaders call this before
// Validate so hand-written spec files can omit the standard values.
func (o *Optimization) ApplyDefaults() {
	if o.MaxTotalCurrent == 0 {
		o.MaxTotalCurrent = DefaultMaxTotalCurrent
	}
	if o.MaxIndividualCurrent == 0 {
		o.MaxIndividualCurrent = DefaultMaxIndividualCurrent
	}
	for i := range o.Targets {
		if o.Targets[i].Intensity == 0 {
			o.Targets[i].Intensity = DefaultTargetIntensity
		}
		if o.Targets[i].Radius == 0 {
			o.Targets[i].Radius = DefaultTargetRadius
		}
	}
	for i := range o.Avoid {
		if o.Avoid[i].Radius == 0 {
			o.Avoid[i].Radius = DefaultAvoidRadius
		}
		if o.Avoid[i].Weight == 0 {
			o.Avoid[i].Weight = DefaultAvoidWeight
		}
	}
}

// Validate checks the specification against the solver's input contract
func (o *Optimization) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("run name is required")
	}
	if filepath.IsAbs(o.Name) {
		return fmt.Errorf("run name must be a relative path, got %q", o.Name)
	}
	for _, part := range strings.Split(filepath.ToSlash(o.Name), "/") {
		if part == ".." {
			return fmt.Errorf("run name must not contain path traversal, got %q", o.Name)
		}
	}

	if o.Leadfield == "" {
		return fmt.Errorf("leadfield path is required")
	}

	if o.MaxTotalCurrent <= 0 {
		return fmt.Errorf("max total current must be positive, got %g A", o.MaxTotalCurrent)
	}
	if o.MaxIndividualCurrent <= 0 {
		return fmt.Errorf("max individual current must be positive, got %g A", o.MaxIndividualCurrent)
	}
	if o.MaxIndividualCurrent > o.MaxTotalCurrent {
		return fmt.Errorf("max individual current (%g A) must not exceed max total current (%g A)",
			o.MaxIndividualCurrent, o.MaxTotalCurrent)
	}

	if o.MaxActiveElectrodes < 0 {
		return fmt.Errorf("max active electrodes must not be negative, got %d", o.MaxActiveElectrodes)
	}
	if o.MaxActiveElectrodes == 1 {
		// Currents must sum to zero, so a single electrode can never carry one
		return fmt.Errorf("max active electrodes must be at least 2 when set")
	}

	if len(o.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}
	for i := range o.Targets {
		if err := o.Targets[i].validate(); err != nil {
			return fmt.Errorf("target %d: %w", i, err)
		}
	}
	for i := range o.Avoid {
		if err := o.Avoid[i].validate(); err != nil {
			return fmt.Errorf("avoid region %d: %w", i, err)
		}
	}

	return nil
}

func (t *Target) validate() error {
	if len(t.Position) != 3 {
		return fmt.Errorf("position must have exactly 3 components, got %d", len(t.Position))
	}
	for _, v := range t.Position {
		if !finite(v) {
			return fmt.Errorf("position components must be finite")
		}
	}
	if t.Intensity <= 0 || !finite(t.Intensity) {
		return fmt.Errorf("intensity must be a positive scalar, got %g", t.Intensity)
	}
	if t.Direction != nil {
		if len(t.Direction) != 3 {
			return fmt.Errorf("direction must have exactly 3 components, got %d", len(t.Direction))
		}
		var norm float64
		for _, v := range t.Direction {
			if !finite(v) {
				return fmt.Errorf("direction components must be finite")
			}
			norm += v * v
		}
		if norm == 0 {
			return fmt.Errorf("direction must not be the zero vector")
		}
	}
	if t.Radius < 0 {
		return fmt.Errorf("radius must not be negative, got %g", t.Radius)
	}
	if t.MaxAngle < 0 || t.MaxAngle > 180 {
		return fmt.Errorf("max angle must be between 0 and 180 degrees, got %g", t.MaxAngle)
	}
	return nil
}

func (a *Avoid) validate() error {
	if len(a.Position) != 3 {
		return fmt.Errorf("position must have exactly 3 components, got %d", len(a.Position))
	}
	for _, v := range a.Position {
		if !finite(v) {
			return fmt.Errorf("position components must be finite")
		}
	}
	if a.Radius < 0 {
		return fmt.Errorf("radius must not be negative, got %g", a.Radius)
	}
	if a.Weight <= 0 {
		return fmt.Errorf("weight must be positive, got %g", a.Weight)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Clone returns a deep copy, used for run-record snapshots
func (o *Optimization) Clone() *Optimization {
	c := *o
	c.Targets = make([]Target, len(o.Targets))
	for i, t := range o.Targets {
		c.Targets[i] = t
		c.Targets[i].Position = append([]float64(nil), t.Position...)
		c.Targets[i].Direction = append([]float64(nil), t.Direction...)
	}
	c.Avoid = make([]Avoid, len(o.Avoid))
	for i, a := range o.Avoid {
		c.Avoid[i] = a
		c.Avoid[i].Position = append([]float64(nil), a.Position...)
	}
	return &c
}

// String returns a human-readable summary with currents shown in mA
func (o *Optimization) String() string {
	var b strings.Builder

	electrodes := "unconstrained"
	if o.MaxActiveElectrodes > 0 {
		electrodes = strconv.Itoa(o.MaxActiveElectrodes)
	}

	fmt.Fprintf(&b, `Optimization:
  Name: %s
  Leadfield: %s

Constraints:
  Max Total Current: %.1f mA
  Max Individual Current: %.1f mA
  Max Active Electrodes: %s
`,
		o.Name,
		o.Leadfield,
		o.MaxTotalCurrent*1e3,
		o.MaxIndividualCurrent*1e3,
		electrodes,
	)

	fmt.Fprintf(&b, "\nTargets (%d):\n", len(o.Targets))
	for i, t := range o.Targets {
		fmt.Fprintf(&b, "  %d. %s at %.2f V/m, radius %.1f mm", i+1, FormatVector3(t.Position), t.Intensity, t.Radius)
		if t.Direction != nil {
			fmt.Fprintf(&b, ", direction %s", FormatVector3(t.Direction))
		}
		if t.MaxAngle > 0 {
			fmt.Fprintf(&b, ", max angle %.0f°", t.MaxAngle)
		}
		b.WriteString("\n")
	}

	if len(o.Avoid) > 0 {
		fmt.Fprintf(&b, "\nAvoid regions (%d):\n", len(o.Avoid))
		for i, a := range o.Avoid {
			fmt.Fprintf(&b, "  %d. %s, radius %.1f mm, weight %g\n", i+1, FormatVector3(a.Position), a.Radius, a.Weight)
		}
	}

	return b.String()
}

// FormatVector3 renders a 3-vector for display
func FormatVector3(v []float64) string {
	if len(v) != 3 {
		return fmt.Sprintf("%v", v)
	}
	return fmt.Sprintf("[%g, %g, %g]", v[0], v[1], v[2])
}

// ParseVector3 parses a comma-separated 3-vector like "-55.4,-20.7,73.4"
func ParseVector3(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("expected 3 comma-separated components, got %d", len(parts))
	}
	v := make([]float64, 3)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		v[i] = f
	}
	return v, nil
}
