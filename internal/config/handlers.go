package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"orderbook-feature-lab/internal/domain"
)

// ErrInvalidHandlerSet is returned when a handler file cannot be used.
var ErrInvalidHandlerSet = errors.New("invalid handler set")

// HandlerSet is the YAML document listing handler instances.
type HandlerSet struct {
	Handlers []HandlerEntry `yaml:"handlers"`
}

// HandlerEntry is one handler instance as written in YAML.
type HandlerEntry struct {
	Kind       string `yaml:"kind"`
	Name       string `yaml:"name"`
	Instrument string `yaml:"instrument"`
	Start      Bound  `yaml:"start"`
	End        Bound  `yaml:"end"`
	Depth      *int   `yaml:"depth"`
	Field      *int   `yaml:"field"`
	Prefix     string `yaml:"prefix"`
}

// Bound is a window bound in Unix milliseconds. In YAML it is either an
// integer number of milliseconds or an RFC3339 timestamp.
type Bound int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *Bound) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: window bound must be a scalar", node.Line)
	}
	if ms, err := strconv.ParseInt(node.Value, 10, 64); err == nil {
		*b = Bound(ms)
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, node.Value)
	if err != nil {
		return fmt.Errorf("line %d: window bound %q is neither milliseconds nor RFC3339", node.Line, node.Value)
	}
	*b = Bound(ts.UnixMilli())
	return nil
}

// LoadHandlerSet reads a YAML handler file and returns its handler configs.
func LoadHandlerSet(path string) ([]domain.HandlerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read handler file '%s': %w", path, err)
	}
	return ParseHandlerSet(data)
}

// ParseHandlerSet parses a YAML handler document.
func ParseHandlerSet(data []byte) ([]domain.HandlerConfig, error) {
	var set HandlerSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidHandlerSet, err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}

	out := make([]domain.HandlerConfig, 0, len(set.Handlers))
	for _, e := range set.Handlers {
		out = append(out, e.toDomain())
	}
	return out, nil
}

// Validate checks fields that do not depend on the handler kind.
// Kind-specific parameters are checked by features.FromConfig.
func (s *HandlerSet) Validate() error {
	if len(s.Handlers) == 0 {
		return fmt.Errorf("%w: no handlers configured", ErrInvalidHandlerSet)
	}
	for i, e := range s.Handlers {
		if e.Kind == "" {
			return fmt.Errorf("%w: handler %d has no kind", ErrInvalidHandlerSet, i)
		}
		if e.Instrument == "" {
			return fmt.Errorf("%w: handler %d (%s) has no instrument", ErrInvalidHandlerSet, i, e.Kind)
		}
		if e.Field != nil && (*e.Field < 1 || *e.Field > int(domain.FieldAggressor)) {
			return fmt.Errorf("%w: handler %d (%s) field %d out of range", ErrInvalidHandlerSet, i, e.Kind, *e.Field)
		}
	}
	return nil
}

func (e HandlerEntry) toDomain() domain.HandlerConfig {
	cfg := domain.HandlerConfig{
		Kind:       domain.HandlerKind(e.Kind),
		Name:       e.Name,
		Instrument: e.Instrument,
		StartMs:    int64(e.Start),
		EndMs:      int64(e.End),
		Depth:      e.Depth,
		Prefix:     e.Prefix,
	}
	if e.Field != nil {
		code := domain.FieldCode(*e.Field)
		cfg.Field = &code
	}
	return cfg
}
