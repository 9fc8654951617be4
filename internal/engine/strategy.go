package engine

import (
	"context"
	"log/slog"

	"ratchet/internal/ledger"
	"ratchet/internal/logging"
	"ratchet/internal/store"
)

// HintAlternate tells a handler to stop repeating the approach that keeps
// failing and try its fallback path, when it has one.
const HintAlternate = "alternate"

// Advisor suggests a processing strategy for the next attempt based on an
// item's failure history. An empty hint means proceed normally.
type Advisor interface {
	Hint(ctx context.Context, item *store.Item) string
}

// NopAdvisor never suggests anything.
type NopAdvisor struct{}

// Hint implements Advisor.
func (NopAdvisor) Hint(context.Context, *store.Item) string { return "" }

// LedgerAdvisor counts an item's recorded retry entries and suggests the
// alternate strategy once they reach the configured threshold. Self-correction
// stays observable: the hint is derived purely from the audit trail, so
// operators can reconstruct why behavior changed.
type LedgerAdvisor struct {
	store     *store.Store
	threshold int
	logger    *slog.Logger
}

// NewLedgerAdvisor builds an advisor over the store's ledger. A threshold of
// zero or less disables hinting.
func NewLedgerAdvisor(st *store.Store, threshold int) *LedgerAdvisor {
	return &LedgerAdvisor{store: st, threshold: threshold, logger: logging.NewNop()}
}

// Hint implements Advisor.
func (a *LedgerAdvisor) Hint(ctx context.Context, item *store.Item) string {
	if a.threshold <= 0 {
		return ""
	}
	entries, err := a.store.History(ctx, item.ID)
	if err != nil {
		a.logger.Warn("strategy lookup failed", logging.String(logging.FieldItemID, item.ID), logging.Error(err))
		return ""
	}
	retries := 0
	for _, entry := range entries {
		if entry.Kind == ledger.KindRetry {
			retries++
		}
	}
	if retries >= a.threshold {
		return HintAlternate
	}
	return ""
}
