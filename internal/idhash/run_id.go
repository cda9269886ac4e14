package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"orderbook-feature-lab/internal/domain"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(mode|from|to|handler_1|...|handler_n) where each handler is
// kind:name:instrument:start:end:depth:field:prefix and absent optional
// parameters render as "-". Handler order is significant because it fixes
// the registration order.
// Returns hex-encoded hash (64 characters).
func ComputeRunID(mode string, fromMs, toMs int64, handlers []domain.HandlerConfig) string {
	parts := make([]string, 0, len(handlers)+3)
	parts = append(parts, mode, fmt.Sprintf("%d", fromMs), fmt.Sprintf("%d", toMs))

	for _, h := range handlers {
		depth := "-"
		if h.Depth != nil {
			depth = fmt.Sprintf("%d", *h.Depth)
		}
		field := "-"
		if h.Field != nil {
			field = fmt.Sprintf("%d", *h.Field)
		}
		parts = append(parts, fmt.Sprintf("%s:%s:%s:%d:%d:%s:%s:%s",
			h.Kind,
			h.Name,
			h.Instrument,
			h.StartMs,
			h.EndMs,
			depth,
			field,
			h.Prefix,
		))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}
