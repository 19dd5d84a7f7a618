package report

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/stimtools/stimopt/pkg/logger"
	"github.com/stimtools/stimopt/pkg/opt"
)

// Electrode polarity colors: anodes inject current, cathodes return it
var (
	colorHeading = color.New(color.FgGreen, color.Bold)
	colorAnode   = color.New(color.FgRed)
	colorCathode = color.New(color.FgBlue)
	colorValue   = color.New(color.FgCyan)
)

// PrintSummary writes a human-readable montage summary. Electrodes are
// listed by descending magnitude so the strongest channels come first.
func PrintSummary(w io.Writer, rep *Report) {
	colorHeading.Fprintf(w, "\nOptimization result: %s\n", rep.Run)
	fmt.Fprintf(w, "   %-18s %s\n", "Engine:", rep.Engine)
	if rep.Objective != 0 {
		fmt.Fprintf(w, "   %-18s %s\n", "Objective:", colorValue.Sprintf("%.4g", rep.Objective))
	}

	if rep.Spec != nil {
		fmt.Fprintf(w, "   %-18s %.1f mA total, %.1f mA per electrode\n",
			"Current budget:", rep.Spec.MaxTotalCurrent*1e3, rep.Spec.MaxIndividualCurrent*1e3)
		if rep.Spec.MaxActiveElectrodes > 0 {
			fmt.Fprintf(w, "   %-18s %d\n", "Electrode budget:", rep.Spec.MaxActiveElectrodes)
		}
	}

	if len(rep.Currents) == 0 {
		fmt.Fprintln(w, "\n   (no montage returned)")
		return
	}

	currents := make([]struct {
		channel string
		current float64
	}, 0, len(rep.Currents))
	for _, c := range rep.Currents {
		currents = append(currents, struct {
			channel string
			current float64
		}{c.Channel, c.Current})
	}
	sort.Slice(currents, func(i, j int) bool {
		li, lj := currents[i].current, currents[j].current
		if li < 0 {
			li = -li
		}
		if lj < 0 {
			lj = -lj
		}
		return li > lj
	})

	fmt.Fprintf(w, "\n   Montage (%d electrodes):\n", len(currents))
	for _, c := range currents {
		polarity := colorAnode
		if c.current < 0 {
			polarity = colorCathode
		}
		fmt.Fprintf(w, "      %s  %+.3f mA\n", polarity.Sprintf("%-6s", c.channel), c.current*1e3)
	}

	if len(rep.Targets) > 0 {
		fmt.Fprintln(w, "\n   Achieved fields:")
		table := logger.NewTable("TARGET", "POSITION [mm]", "INTENSITY [V/m]", "FOCALITY")
		for i, t := range rep.Targets {
			focality := "-"
			if t.Focality != 0 {
				focality = fmt.Sprintf("%.4g", t.Focality)
			}
			table.AddRow(
				fmt.Sprintf("T%d", i+1),
				opt.FormatVector3(t.Position),
				fmt.Sprintf("%.4g", t.Intensity),
				focality,
			)
		}

		var buf bytes.Buffer
		table.Fprint(&buf)
		for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
			fmt.Fprintf(w, "      %s\n", line)
		}
	}
}
