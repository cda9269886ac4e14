package feed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"orderbook-feature-lab/internal/domain"
	"orderbook-feature-lab/internal/replay"
	"orderbook-feature-lab/internal/storage"
)

// DefaultArchiveBatch is the number of buffered events per flush.
const DefaultArchiveBatch = 500

// Archiver records live events in the event stores before passing them on,
// so a live session can later be replayed. Events are written in batches;
// Flush writes whatever is buffered.
type Archiver struct {
	next      replay.Engine
	snapshots storage.SnapshotStore
	trades    storage.TradeStore
	batch     int
	logger    *zap.Logger

	pendingSnapshots []*domain.MarketEvent
	pendingTrades    []*domain.MarketEvent
	seq              int64
}

// NewArchiver wraps next. batch <= 0 uses DefaultArchiveBatch.
func NewArchiver(next replay.Engine, snapshots storage.SnapshotStore, trades storage.TradeStore, batch int, logger *zap.Logger) *Archiver {
	if batch <= 0 {
		batch = DefaultArchiveBatch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		next:      next,
		snapshots: snapshots,
		trades:    trades,
		batch:     batch,
		logger:    logger,
	}
}

// OnEvent buffers ev and forwards it. Events without a sequence number get
// the archiver's arrival counter so same-millisecond events stay distinct.
func (a *Archiver) OnEvent(ctx context.Context, ev *domain.MarketEvent) error {
	a.seq++
	if ev.Seq == 0 {
		ev.Seq = a.seq
	}

	switch ev.Kind {
	case domain.EventKindSnapshot:
		a.pendingSnapshots = append(a.pendingSnapshots, ev)
	case domain.EventKindTrade:
		a.pendingTrades = append(a.pendingTrades, ev)
	}

	if len(a.pendingSnapshots)+len(a.pendingTrades) >= a.batch {
		if err := a.Flush(ctx); err != nil {
			return err
		}
	}
	return a.next.OnEvent(ctx, ev)
}

// IsComplete forwards to the wrapped engine.
func (a *Archiver) IsComplete() bool {
	c, ok := a.next.(Completer)
	return ok && c.IsComplete()
}

// Flush writes buffered events. A duplicate batch is logged and discarded.
func (a *Archiver) Flush(ctx context.Context) error {
	if len(a.pendingSnapshots) > 0 {
		if err := a.write(ctx, "snapshots", a.snapshots.InsertBulk, a.pendingSnapshots); err != nil {
			return err
		}
		a.pendingSnapshots = a.pendingSnapshots[:0]
	}
	if len(a.pendingTrades) > 0 {
		if err := a.write(ctx, "trades", a.trades.InsertBulk, a.pendingTrades); err != nil {
			return err
		}
		a.pendingTrades = a.pendingTrades[:0]
	}
	return nil
}

func (a *Archiver) write(ctx context.Context, what string, insert func(context.Context, []*domain.MarketEvent) error, events []*domain.MarketEvent) error {
	err := insert(ctx, events)
	switch {
	case err == nil:
		a.logger.Debug("archived events", zap.String("kind", what), zap.Int("count", len(events)))
		return nil
	case errors.Is(err, storage.ErrDuplicateKey):
		a.logger.Warn("archive batch already stored", zap.String("kind", what), zap.Int("count", len(events)))
		return nil
	default:
		return fmt.Errorf("archive %s: %w", what, err)
	}
}

var _ replay.Engine = (*Archiver)(nil)
