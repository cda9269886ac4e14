package features

import (
	"errors"
	"fmt"

	"orderbook-feature-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownHandlerKind = errors.New("unknown handler kind")
	ErrMissingDepth       = errors.New("ORDER_BOOK_PRESSURE requires Depth")
	ErrMissingField       = errors.New("INDEX_DELTA/INDEX_SNAPSHOT requires Field")
)

// FromConfig creates a handler from domain.HandlerConfig.
// The window is validated here, before any event is played.
func FromConfig(cfg domain.HandlerConfig) (*Windowed, error) {
	window, err := domain.NewWindow(cfg.StartMs, cfg.EndMs, cfg.Instrument)
	if err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case domain.HandlerKindMidPriceReturn:
		return NewMidPriceReturn(cfg.Name, window), nil
	case domain.HandlerKindOrderBookPressure:
		if cfg.Depth == nil {
			return nil, ErrMissingDepth
		}
		return NewOrderBookPressure(cfg.Name, window, *cfg.Depth)
	case domain.HandlerKindLastTickVolume:
		return NewLastTickVolume(cfg.Name, window), nil
	case domain.HandlerKindCumulativeTickVolume:
		return NewCumulativeTickVolume(cfg.Name, cfg.Prefix, window), nil
	case domain.HandlerKindIndexDelta:
		if cfg.Field == nil {
			return nil, ErrMissingField
		}
		return NewIndexDelta(cfg.Name, window, *cfg.Field), nil
	case domain.HandlerKindIndexSnapshot:
		if cfg.Field == nil {
			return nil, ErrMissingField
		}
		return NewIndexSnapshot(cfg.Name, window, *cfg.Field), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHandlerKind, cfg.Kind)
	}
}

// BuildRegistry creates every handler of cfgs and registers it.
// Any invalid configuration rejects the whole set.
func BuildRegistry(cfgs []domain.HandlerConfig, opts ...Option) (*Registry, error) {
	r := NewRegistry(opts...)
	for i, cfg := range cfgs {
		h, err := FromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("handler %d (%s): %w", i, cfg.Kind, err)
		}
		if err := r.Register(h); err != nil {
			return nil, fmt.Errorf("handler %d (%s): %w", i, cfg.Kind, err)
		}
	}
	return r, nil
}
