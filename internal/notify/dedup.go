package notify

import (
	"context"
	"encoding/base64"
	"strings"

	appLog "smartcal/internal/log"
	"smartcal/internal/model"
)

const (
	dedupPrefix = "notified_for_"
	dedupValue  = "true"
)

// KV is the slice of the local scratch store the dedup records live in.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Keys(ctx context.Context, prefix string) []string
}

// Dedup stores "already notified" markers in a KV. Writes are idempotent,
// so concurrent evaluations need no lock; two racing passes can at worst
// both dispatch before either marks the key.
type Dedup struct {
	kv KV
}

func NewDedup(kv KV) *Dedup {
	return &Dedup{kv: kv}
}

func (d *Dedup) Notified(key string) (bool, error) {
	v, ok, err := d.kv.Get(key)
	if err != nil {
		return false, err
	}
	return ok && v == dedupValue, nil
}

func (d *Dedup) MarkNotified(key string) error {
	return d.kv.Set(key, dedupValue)
}

// Reset forgets a marker so the same notification can fire again.
func (d *Dedup) Reset(key string) error {
	return d.kv.Delete(key)
}

// DedupMarker reads and writes the markers of a single owner.
type DedupMarker interface {
	DedupReader
	MarkNotified(key string) error
}

// For scopes the markers to owner. Owners share one KV, so their keys get
// an "@<base64url owner>" suffix; the empty owner uses the bare keys.
func (d *Dedup) For(owner string) DedupMarker {
	if owner == "" {
		return d
	}
	return ownerDedup{d: d, suffix: ownerSuffix(owner)}
}

// ownerSuffix encodes owner so that any user id yields a flat, valid KV key.
func ownerSuffix(owner string) string {
	return "@" + base64.RawURLEncoding.EncodeToString([]byte(owner))
}

type ownerDedup struct {
	d      *Dedup
	suffix string
}

func (o ownerDedup) Notified(key string) (bool, error) { return o.d.Notified(key + o.suffix) }
func (o ownerDedup) MarkNotified(key string) error     { return o.d.MarkNotified(key + o.suffix) }

// Prune removes markers whose target date is more than retentionDays before
// today. Keys that do not parse are left alone. It returns the number of
// markers removed.
func (d *Dedup) Prune(ctx context.Context, today model.Date, retentionDays int) int {
	if retentionDays < 0 {
		return 0
	}
	cutoff := today.AddDays(-retentionDays)
	removed := 0
	for _, key := range d.kv.Keys(ctx, dedupPrefix) {
		target, ok := targetOf(key)
		if !ok || !target.Before(cutoff) {
			continue
		}
		if err := d.kv.Delete(key); err != nil {
			appLog.Error("dedup prune failed", err, "key", key)
			continue
		}
		removed++
	}
	return removed
}

// targetOf extracts the target date from a key built by DedupKey, with or
// without an owner suffix.
func targetOf(key string) (model.Date, bool) {
	rest, ok := strings.CutPrefix(key, dedupPrefix)
	if !ok {
		return model.Date{}, false
	}
	datePart, _, ok := strings.Cut(rest, "_adv")
	if !ok {
		return model.Date{}, false
	}
	d, err := model.ParseDate(datePart)
	if err != nil {
		return model.Date{}, false
	}
	return d, true
}
