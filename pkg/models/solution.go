package models

// ElectrodeCurrent is one electrode of the optimized montage
type ElectrodeCurrent struct {
	// Electrode label in the montage's naming scheme (e.g. "F3").
	Channel string `json:"channel"`
	// Injected current in amperes. Negative values are cathodal.
	Current float64 `json:"current"`
}

// TargetField reports the field the optimized montage achieves at a target
type TargetField struct {
	// The target position the metrics refer to, in mm.
	Position []float64 `json:"position"`
	// Achieved field intensity at the target in V/m.
	Intensity float64 `json:"intensity"`
	// Focality radius in mm, when the solver reports one.
	Focality float64 `json:"focality,omitempty"`
}

// SolutionResponse is the solver's output for a completed job. Local
// engines read the same structure from the solver's solution.json.
type SolutionResponse struct {
	// Per-electrode currents of the optimized montage.
	Currents []ElectrodeCurrent `json:"currents"`
	// Achieved field metrics, one entry per spec target.
	Targets []TargetField `json:"targets,omitempty"`
	// Final objective value reached by the solver.
	Objective float64 `json:"objective,omitempty"`
}
