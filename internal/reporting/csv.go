package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"

	"orderbook-feature-lab/internal/results"
)

// RenderCSV renders a result table as CSV: one row per instrument, one
// column per feature. Missing cells are left empty.
func RenderCSV(table *results.Table) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	featureNames := table.Features()

	// Header
	header := append([]string{"instrument"}, featureNames...)
	if err := w.Write(header); err != nil {
		return "", err
	}

	// Rows
	for _, instrument := range table.Instruments() {
		record := make([]string, 0, len(header))
		record = append(record, instrument)
		for _, f := range featureNames {
			v, ok := table.Get(instrument, f)
			if !ok {
				record = append(record, "")
				continue
			}
			record = append(record, formatValue(v))
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// formatValue prints the shortest exact representation; infinities render
// as +Inf and -Inf.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
