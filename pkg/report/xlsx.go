package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// saveXLSX writes a workbook with a Summary sheet plus one sheet each for
// the montage and the achieved target fields
func saveXLSX(rep *Report, path string) error {
	f := excelize.NewFile()

	summary := "Summary"
	f.SetSheetName("Sheet1", summary)

	f.SetCellValue(summary, "A1", "Run")
	f.SetCellValue(summary, "B1", rep.Run)
	f.SetCellValue(summary, "A2", "Engine")
	f.SetCellValue(summary, "B2", rep.Engine)
	f.SetCellValue(summary, "A3", "Generated")
	f.SetCellValue(summary, "B3", rep.GeneratedAt.Format("2006-01-02 15:04:05"))
	f.SetCellValue(summary, "A4", "Objective")
	f.SetCellValue(summary, "B4", rep.Objective)

	if rep.Spec != nil {
		f.SetCellValue(summary, "A5", "Leadfield")
		f.SetCellValue(summary, "B5", rep.Spec.Leadfield)
		f.SetCellValue(summary, "A6", "Max total current [mA]")
		f.SetCellValue(summary, "B6", rep.Spec.MaxTotalCurrent*1e3)
		f.SetCellValue(summary, "A7", "Max individual current [mA]")
		f.SetCellValue(summary, "B7", rep.Spec.MaxIndividualCurrent*1e3)
		f.SetCellValue(summary, "A8", "Max active electrodes")
		f.SetCellValue(summary, "B8", rep.Spec.MaxActiveElectrodes)
		f.SetCellValue(summary, "A9", "Targets")
		f.SetCellValue(summary, "B9", len(rep.Spec.Targets))
	}

	writeCurrents(f, rep)
	if len(rep.Targets) > 0 {
		writeTargets(f, rep)
	}

	return f.SaveAs(path)
}

func writeCurrents(f *excelize.File, rep *Report) {
	sheet := "Currents"
	f.NewSheet(sheet)

	headers := []string{"Electrode", "Current [A]", "Current [mA]"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, c := range rep.Currents {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		f.SetCellValue(sheet, cell, c.Channel)
		cell, _ = excelize.CoordinatesToCellName(2, row)
		f.SetCellValue(sheet, cell, c.Current)
		cell, _ = excelize.CoordinatesToCellName(3, row)
		f.SetCellValue(sheet, cell, c.Current*1e3)
	}
}

func writeTargets(f *excelize.File, rep *Report) {
	sheet := "Targets"
	f.NewSheet(sheet)

	headers := []string{"Target", "X [mm]", "Y [mm]", "Z [mm]", "Intensity [V/m]", "Focality"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, t := range rep.Targets {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		f.SetCellValue(sheet, cell, fmt.Sprintf("T%d", i+1))

		for j := 0; j < 3 && j < len(t.Position); j++ {
			cell, _ = excelize.CoordinatesToCellName(j+2, row)
			f.SetCellValue(sheet, cell, t.Position[j])
		}

		cell, _ = excelize.CoordinatesToCellName(5, row)
		f.SetCellValue(sheet, cell, t.Intensity)
		cell, _ = excelize.CoordinatesToCellName(6, row)
		f.SetCellValue(sheet, cell, t.Focality)
	}
}
