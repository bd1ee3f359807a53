package task

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"FileVault/internal/repo"
	"FileVault/internal/testutil"
	"FileVault/model"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type flakyWriter struct {
	failures int32
	calls    atomic.Int32
	updated  bool
}

func (w *flakyWriter) UpdateCacheFields(ctx context.Context, owner, id uint64, localPath string, ts int64) (bool, error) {
	if w.calls.Add(1) <= w.failures {
		return false, errors.New("database is locked")
	}
	return w.updated, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	bodies [][]byte
	err    error
}

func (p *recordingPublisher) PublishTask(ctx context.Context, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.bodies = append(p.bodies, body)
	return nil
}

func validMessage() CacheSyncMessage {
	return CacheSyncMessage{RecordID: 1, OwnerID: 2, FileName: "a.txt", LocalPath: "/cache/2/a.txt", CacheTimestamp: 100}
}

func TestApplierUpdatesOnlyCacheFields(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	owner := testutil.CreateUser(t, db, "alice")
	store := repo.NewMetadataStore(db)

	rec := &model.FileRecord{
		UserID: owner, FileName: "a.txt", FileSHA256: "h", Size: 1,
		ObjectKey: "files/1/h/a.txt", Link: "l", UploadTimestamp: "t", UploadedUnix: 1,
	}
	require.NoError(t, store.InsertRecordWithTags(ctx, rec, []string{"x"}))

	var invalidated []uint64
	applier := NewApplier(store, zaptest.NewLogger(t), func(_ context.Context, owner uint64) {
		invalidated = append(invalidated, owner)
	})
	msg := CacheSyncMessage{RecordID: rec.ID, OwnerID: owner, FileName: "a.txt", LocalPath: "/cache/a", CacheTimestamp: 42}
	require.NoError(t, applier.Apply(ctx, msg))
	require.Equal(t, []uint64{owner}, invalidated)

	got, err := store.GetRecord(ctx, owner, "a.txt")
	require.NoError(t, err)
	require.Equal(t, "/cache/a", *got.LocalPath)
	require.Equal(t, int64(42), *got.CacheTimestamp)
	require.Equal(t, []string{"x"}, got.TagNames())

	_, err = store.DeleteRecordWithTags(ctx, owner, "a.txt")
	require.NoError(t, err)
	require.NoError(t, applier.Apply(ctx, msg), "vanished record is a no-op")
	require.Len(t, invalidated, 1)
}

func TestApplierRejectsInvalidMessage(t *testing.T) {
	applier := NewApplier(&flakyWriter{updated: true}, zaptest.NewLogger(t), nil)
	err := applier.Apply(context.Background(), CacheSyncMessage{OwnerID: 1})
	require.ErrorIs(t, err, ErrInvalidMessage)
}

func TestInlineDispatcherRetries(t *testing.T) {
	writer := &flakyWriter{failures: 2, updated: true}
	d := NewInlineDispatcher(NewApplier(writer, zaptest.NewLogger(t), nil), zaptest.NewLogger(t), 3, time.Millisecond)

	d.Dispatch(validMessage())
	d.Wait()
	require.Equal(t, int32(3), writer.calls.Load())
}

func TestInlineDispatcherGivesUp(t *testing.T) {
	writer := &flakyWriter{failures: 100, updated: true}
	d := NewInlineDispatcher(NewApplier(writer, zaptest.NewLogger(t), nil), zaptest.NewLogger(t), 2, time.Millisecond)

	d.Dispatch(validMessage())
	d.Wait()
	require.Equal(t, int32(2), writer.calls.Load())
}

func TestAMQPDispatcherPublishes(t *testing.T) {
	writer := &flakyWriter{updated: true}
	pub := &recordingPublisher{}
	inline := NewInlineDispatcher(NewApplier(writer, zaptest.NewLogger(t), nil), zaptest.NewLogger(t), 1, 0)
	d := NewAMQPDispatcher(pub, inline, zaptest.NewLogger(t))

	d.Dispatch(validMessage())
	d.Wait()

	require.Len(t, pub.bodies, 1)
	var decoded CacheSyncMessage
	require.NoError(t, json.Unmarshal(pub.bodies[0], &decoded))
	require.Equal(t, validMessage(), decoded)
	require.Zero(t, writer.calls.Load())
}

func TestAMQPDispatcherFallsBackInline(t *testing.T) {
	writer := &flakyWriter{updated: true}
	pub := &recordingPublisher{err: errors.New("connection refused")}
	inline := NewInlineDispatcher(NewApplier(writer, zaptest.NewLogger(t), nil), zaptest.NewLogger(t), 1, 0)
	d := NewAMQPDispatcher(pub, inline, zaptest.NewLogger(t))

	d.Dispatch(validMessage())
	d.Wait()
	require.Equal(t, int32(1), writer.calls.Load())
}
