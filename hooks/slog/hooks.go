// Package sloghook logs querycache hook events through log/slog, with sampling
// for the noisy ones and keys redacted by default.
package sloghook

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/querycache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	DiscardEvery  uint64
	EvictEvery    uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	discardCtr  atomic.Uint64
	evictCtr    atomic.Uint64
}

var _ querycache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHeal(key, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("querycache.self_heal",
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) FetchDiscarded(key, reason string) {
	if h.l == nil || !sample(h.opts.DiscardEvery, &h.discardCtr) {
		return
	}
	h.l.Debug("querycache.fetch_discarded",
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) Evicted(key string) {
	if h.l == nil || !sample(h.opts.EvictEvery, &h.evictCtr) {
		return
	}
	h.l.Info("querycache.evicted", "key", h.redact(key))
}

func (h *Hooks) ProviderSetRejected(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("querycache.provider_set_rejected",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) VersionSnapshotError(resource string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("querycache.version_snapshot_error",
		"resource", resource,
		"err", err)
}

// A failed bump means a committed mutation may leave stale pages cached.
func (h *Hooks) VersionBumpError(resource string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("querycache.version_bump_error",
		"resource", resource,
		"err", err)
}
