package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var guardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vault_upload_guard_decisions_total",
	Help: "Upload admission decisions by result.",
}, []string{"result"})

// UsageReader reports how many bytes an owner uploaded since a point in time.
type UsageReader interface {
	SumSizeSince(ctx context.Context, owner uint64, since time.Time) (int64, error)
}

// UploadGuard admits uploads for allow-listed owners under their rolling daily quota.
type UploadGuard struct {
	usage    UsageReader
	allowAll bool
	allowed  map[uint64]struct{}
	limit    int64
	window   time.Duration
	now      func() time.Time
}

// NewUploadGuard builds a guard. Whitelist entries are user ids; "*" admits every
// user. A limit of zero or less disables the quota.
func NewUploadGuard(usage UsageReader, whitelist []string, limit int64) *UploadGuard {
	g := &UploadGuard{
		usage:   usage,
		allowed: make(map[uint64]struct{}, len(whitelist)),
		limit:   limit,
		window:  24 * time.Hour,
		now:     time.Now,
	}
	for _, entry := range whitelist {
		if entry == "*" {
			g.allowAll = true
			continue
		}
		if id, err := strconv.ParseUint(entry, 10, 64); err == nil {
			g.allowed[id] = struct{}{}
		}
	}
	return g
}

// WithClock replaces the wall clock used for the quota window.
func (g *UploadGuard) WithClock(now func() time.Time) *UploadGuard {
	g.now = now
	return g
}

func (g *UploadGuard) isWhitelisted(owner uint64) bool {
	if g.allowAll {
		return true
	}
	_, ok := g.allowed[owner]
	return ok
}

// CheckAllowed returns ErrNotWhitelisted or ErrQuotaExceeded when the owner may not upload.
func (g *UploadGuard) CheckAllowed(ctx context.Context, owner uint64) error {
	if !g.isWhitelisted(owner) {
		guardDecisions.WithLabelValues("not_whitelisted").Inc()
		return ErrNotWhitelisted
	}
	if g.limit > 0 {
		used, err := g.usage.SumSizeSince(ctx, owner, g.now().Add(-g.window))
		if err != nil {
			return fmt.Errorf("read upload usage: %w", err)
		}
		if used >= g.limit {
			guardDecisions.WithLabelValues("quota_exceeded").Inc()
			return ErrQuotaExceeded
		}
	}
	guardDecisions.WithLabelValues("allowed").Inc()
	return nil
}
