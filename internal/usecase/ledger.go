package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ClipAcker is the deal repository's acknowledgement surface for clip
// mutations. A rejection aborts the mutation for that id only.
type ClipAcker interface {
	Clip(ctx context.Context, offerID string) error
	Unclip(ctx context.Context, offerID string) error
}

// ClipLedger is the set of clipped offer ids, shared by reference between the
// chat and wallet surfaces. Membership is the single source of truth for
// clipped state; no caller keeps a second copy.
type ClipLedger struct {
	acker ClipAcker

	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewClipLedger(acker ClipAcker) (*ClipLedger, error) {
	if acker == nil {
		return nil, errors.New("usecase: clip acker must not be nil")
	}
	return &ClipLedger{acker: acker, ids: make(map[string]struct{})}, nil
}

func (l *ClipLedger) IsClipped(offerID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[offerID]
	return ok
}

// ClippedIDs returns the current membership, sorted for determinism. Display
// order is supplied by the catalog, not by the set.
func (l *ClipLedger) ClippedIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.ids))
	for id := range l.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (l *ClipLedger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

// Clip acknowledges and records one offer id. Clipping an already-clipped id
// is a no-op. The acknowledgement runs outside the ledger lock; rapid
// concurrent toggles on one id are not deduplicated and the last completed
// acknowledgement wins.
func (l *ClipLedger) Clip(ctx context.Context, offerID string) error {
	if l.IsClipped(offerID) {
		return nil
	}
	if err := l.acker.Clip(ctx, offerID); err != nil {
		return newError(ErrorClipRejected, "clip_ack_rejected", err)
	}
	l.mu.Lock()
	l.ids[offerID] = struct{}{}
	l.mu.Unlock()
	return nil
}

// Unclip acknowledges and removes one offer id. Unclipping an id that is not
// clipped is a no-op.
func (l *ClipLedger) Unclip(ctx context.Context, offerID string) error {
	if !l.IsClipped(offerID) {
		return nil
	}
	if err := l.acker.Unclip(ctx, offerID); err != nil {
		return newError(ErrorClipRejected, "unclip_ack_rejected", err)
	}
	l.mu.Lock()
	delete(l.ids, offerID)
	l.mu.Unlock()
	return nil
}

// Toggle flips the clip state of one offer id and reports the resulting state.
func (l *ClipLedger) Toggle(ctx context.Context, offerID string) (bool, error) {
	if l.IsClipped(offerID) {
		if err := l.Unclip(ctx, offerID); err != nil {
			return true, err
		}
		return false, nil
	}
	if err := l.Clip(ctx, offerID); err != nil {
		return false, err
	}
	return true, nil
}

// ClipAll clips every id not already in the ledger, sequentially in the given
// order. Each id commits on its own acknowledgement; a rejection skips that id
// and the batch continues. The ids actually clipped are returned alongside the
// joined rejection errors.
func (l *ClipLedger) ClipAll(ctx context.Context, offerIDs []string) ([]string, error) {
	var clipped []string
	var errs []error
	for _, id := range offerIDs {
		if l.IsClipped(id) {
			continue
		}
		if err := l.Clip(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		clipped = append(clipped, id)
	}
	return clipped, errors.Join(errs...)
}

// UnclipAll empties the ledger, acknowledging each id in sorted order. Ids
// whose acknowledgement is rejected stay clipped.
func (l *ClipLedger) UnclipAll(ctx context.Context) error {
	var errs []error
	for _, id := range l.ClippedIDs() {
		if err := l.Unclip(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
