package report

import (
	"encoding/csv"
	"os"
	"strconv"
)

// saveCSV writes the electrode montage as CSV, one electrode per row
func saveCSV(rep *Report, path string) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fp.Close()

	w := csv.NewWriter(fp)

	if err := w.Write([]string{"electrode", "current_A", "current_mA"}); err != nil {
		return err
	}

	for _, c := range rep.Currents {
		row := []string{
			c.Channel,
			strconv.FormatFloat(c.Current, 'g', -1, 64),
			strconv.FormatFloat(c.Current*1e3, 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
