package reporting

import (
	"fmt"
	"os"
)

// Format is an output format for Render.
type Format string

// Output formats.
const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatCSV, FormatMarkdown, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// Render renders r in format f. CSV carries the result table only.
func Render(r *Report, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		out, err := RenderCSV(r.Table)
		if err != nil {
			return nil, err
		}
		return []byte(out), nil
	case FormatMarkdown:
		return []byte(RenderMarkdown(r)), nil
	case FormatJSON:
		out, err := RenderJSON(r)
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	}
	return nil, fmt.Errorf("unknown format %q", f)
}

// WriteFile renders r to path, or to stdout when path is empty.
func WriteFile(path string, r *Report, f Format) error {
	data, err := Render(r, f)
	if err != nil {
		return err
	}
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
