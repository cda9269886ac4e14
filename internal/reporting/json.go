package reporting

import (
	"encoding/json"
	"math"
	"time"
)

// jsonReport is the wire form of a Report. Non-finite values, which JSON
// cannot represent, are written as the strings "+Inf", "-Inf" and "NaN".
type jsonReport struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	RunID       string                    `json:"run_id,omitempty"`
	Mode        string                    `json:"mode,omitempty"`
	FromMs      int64                     `json:"from_ms"`
	ToMs        int64                     `json:"to_ms"`
	Features    []string                  `json:"features"`
	Results     map[string]map[string]any `json:"results"`
	Issues      []jsonIssue               `json:"issues"`
}

type jsonIssue struct {
	Instrument string `json:"instrument"`
	Handler    string `json:"handler"`
	Error      string `json:"error"`
}

// RenderJSON renders report as indented JSON.
func RenderJSON(r *Report) ([]byte, error) {
	out := jsonReport{
		GeneratedAt: r.GeneratedAt,
		RunID:       r.RunID,
		Mode:        r.Mode,
		FromMs:      r.FromMs,
		ToMs:        r.ToMs,
		Features:    []string{},
		Results:     make(map[string]map[string]any),
		Issues:      []jsonIssue{},
	}

	if r.Table != nil {
		out.Features = append(out.Features, r.Table.Features()...)
		for _, instrument := range r.Table.Instruments() {
			row := make(map[string]any)
			for feature, v := range r.Table.Row(instrument) {
				row[feature] = jsonValue(v)
			}
			out.Results[instrument] = row
		}
	}
	for _, is := range r.Issues {
		out.Issues = append(out.Issues, jsonIssue(is))
	}

	return json.MarshalIndent(out, "", "  ")
}

func jsonValue(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return formatValue(v)
	}
	return v
}
