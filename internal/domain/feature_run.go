package domain

// FeatureRun describes one persisted feature computation.
type FeatureRun struct {
	RunID       string // deterministic hash of handler set and range
	Mode        string // "replay" or "live"
	FromMs      int64
	ToMs        int64
	Handlers    int
	Issues      int
	CreatedAtMs int64
}
