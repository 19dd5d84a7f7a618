package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stimtools/stimopt/pkg/engine"
	"github.com/stimtools/stimopt/pkg/logger"
	"github.com/stimtools/stimopt/pkg/models"
	"github.com/stimtools/stimopt/pkg/opt"
	"github.com/stimtools/stimopt/pkg/runs"
)

// Supported export formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Report bundles a solved montage with the spec that produced it
type Report struct {
	Run         string                    `json:"run"`
	Engine      string                    `json:"engine"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Spec        *opt.Optimization         `json:"spec,omitempty"`
	Currents    []models.ElectrodeCurrent `json:"currents"`
	Targets     []models.TargetField      `json:"targets,omitempty"`
	Objective   float64                   `json:"objective,omitempty"`
}

// FromResult builds a report from a fresh engine result
func FromResult(result *engine.Result, spec *opt.Optimization) *Report {
	return &Report{
		Run:         result.RunName,
		Engine:      result.Engine,
		GeneratedAt: time.Now().UTC(),
		Spec:        spec,
		Currents:    result.Currents,
		Targets:     result.Targets,
		Objective:   result.Objective,
	}
}

// FromRecord builds a report from a stored run record
func FromRecord(rec *runs.Record) *Report {
	return &Report{
		Run:         rec.Name,
		Engine:      rec.Engine,
		GeneratedAt: time.Now().UTC(),
		Spec:        rec.Spec,
		Currents:    rec.Currents,
		Targets:     rec.Targets,
		Objective:   rec.Objective,
	}
}

// Export writes the report to dir in the given format and returns the path
// of the written file
func Export(rep *Report, dir, format string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := rep.GeneratedAt.Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s", sanitizeName(rep.Run), timestamp)

	var path string
	var err error
	switch format {
	case FormatJSON:
		path = filepath.Join(dir, filename+".json")
		err = saveJSON(rep, path)
	case FormatCSV:
		path = filepath.Join(dir, filename+".csv")
		err = saveCSV(rep, path)
	case FormatXLSX:
		path = filepath.Join(dir, filename+".xlsx")
		err = saveXLSX(rep, path)
	default:
		return "", fmt.Errorf("unsupported report format: %s (supported: json, csv, xlsx)", format)
	}
	if err != nil {
		return "", err
	}

	logger.Successf("Report saved to: %s", path)
	return path, nil
}

// saveJSON writes the full report as indented JSON
func saveJSON(rep *Report, path string) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// sanitizeName flattens run names that contain subdirectories so they can
// serve as a single filename component
func sanitizeName(name string) string {
	flat := strings.ReplaceAll(filepath.ToSlash(name), "/", "_")
	if flat == "" {
		return "optimization"
	}
	return flat
}
