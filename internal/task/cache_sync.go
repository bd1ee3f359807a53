// Package task defers the cache column update that follows a cache fill so the
// download response never waits for it.
package task

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrInvalidMessage marks a message that can never be applied.
var ErrInvalidMessage = errors.New("invalid cache sync message")

// CacheSyncMessage records that a file now has a local copy.
type CacheSyncMessage struct {
	RecordID       uint64 `json:"record_id"`
	OwnerID        uint64 `json:"owner_id"`
	FileName       string `json:"file_name"`
	LocalPath      string `json:"local_path"`
	CacheTimestamp int64  `json:"cache_timestamp"`
	Attempt        int    `json:"attempt"`
}

func (m CacheSyncMessage) Validate() error {
	if m.RecordID == 0 || m.OwnerID == 0 || m.LocalPath == "" {
		return fmt.Errorf("%w: record=%d owner=%d path=%q", ErrInvalidMessage, m.RecordID, m.OwnerID, m.LocalPath)
	}
	return nil
}

// Dispatcher hands a message off without blocking the caller.
type Dispatcher interface {
	Dispatch(msg CacheSyncMessage)
}

// CacheFieldWriter is the metadata write the applier needs.
type CacheFieldWriter interface {
	UpdateCacheFields(ctx context.Context, owner, id uint64, localPath string, cacheTimestamp int64) (bool, error)
}

// Applier writes the cache columns of one record.
type Applier struct {
	store     CacheFieldWriter
	log       *zap.Logger
	onApplied func(ctx context.Context, owner uint64)
}

// NewApplier builds an Applier. onApplied, when set, runs after each successful write.
func NewApplier(store CacheFieldWriter, log *zap.Logger, onApplied func(ctx context.Context, owner uint64)) *Applier {
	return &Applier{store: store, log: log, onApplied: onApplied}
}

// Apply updates only the cache columns. A record deleted in the meantime is a no-op.
func (a *Applier) Apply(ctx context.Context, msg CacheSyncMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	updated, err := a.store.UpdateCacheFields(ctx, msg.OwnerID, msg.RecordID, msg.LocalPath, msg.CacheTimestamp)
	if err != nil {
		return fmt.Errorf("update cache fields of record %d: %w", msg.RecordID, err)
	}
	if !updated {
		a.log.Debug("cache sync skipped, record gone",
			zap.Uint64("record_id", msg.RecordID),
			zap.Uint64("owner_id", msg.OwnerID))
		return nil
	}
	if a.onApplied != nil {
		a.onApplied(ctx, msg.OwnerID)
	}
	return nil
}
