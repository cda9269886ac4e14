package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Feature Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run: `%s` (%s)\n\n", r.RunID, r.Mode))
	}

	// Run Summary
	sb.WriteString("## Run Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Range Start (ms) | %d |\n", r.FromMs))
	sb.WriteString(fmt.Sprintf("| Range End (ms) | %d |\n", r.ToMs))
	instruments, featureCount := 0, 0
	if r.Table != nil {
		instruments = len(r.Table.Instruments())
		featureCount = len(r.Table.Features())
	}
	sb.WriteString(fmt.Sprintf("| Instruments | %d |\n", instruments))
	sb.WriteString(fmt.Sprintf("| Features | %d |\n", featureCount))
	sb.WriteString(fmt.Sprintf("| Issues | %d |\n", len(r.Issues)))
	sb.WriteString("\n")

	// Feature Distribution
	sb.WriteString("## Feature Distribution\n\n")
	if len(r.Summary) > 0 {
		sb.WriteString("| Feature | Count | Non-finite | Mean | Stddev | Min | P10 | Median | P90 | Max |\n")
		sb.WriteString("|---------|-------|------------|------|--------|-----|-----|--------|-----|-----|\n")
		for _, s := range r.Summary {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.6f | %.6f | %.6f | %.6f | %.6f | %.6f | %.6f |\n",
				s.Feature, s.Count, s.NonFinite,
				s.Mean, s.Stddev, s.Min, s.P10, s.Median, s.P90, s.Max))
		}
	} else {
		sb.WriteString("No features written.\n")
	}
	sb.WriteString("\n")

	// Results
	sb.WriteString("## Results\n\n")
	if r.Table != nil && r.Table.Len() > 0 {
		featureNames := r.Table.Features()
		sb.WriteString("| Instrument | " + strings.Join(featureNames, " | ") + " |\n")
		sb.WriteString("|------------" + strings.Repeat("|------", len(featureNames)) + "|\n")
		for _, instrument := range r.Table.Instruments() {
			sb.WriteString("| " + instrument)
			for _, f := range featureNames {
				cell := ""
				if v, ok := r.Table.Get(instrument, f); ok {
					cell = formatValue(v)
				}
				sb.WriteString(" | " + cell)
			}
			sb.WriteString(" |\n")
		}
	} else {
		sb.WriteString("No results available.\n")
	}
	sb.WriteString("\n")

	// Issues
	sb.WriteString("## Issues\n\n")
	if len(r.Issues) > 0 {
		sb.WriteString("| Handler | Instrument | Error |\n")
		sb.WriteString("|---------|------------|-------|\n")
		for _, is := range r.Issues {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", is.Handler, is.Instrument, is.Error))
		}
	} else {
		sb.WriteString("No issues.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
