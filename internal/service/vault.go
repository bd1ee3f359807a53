package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"FileVault/internal/cache"
	"FileVault/internal/dto"
	"FileVault/internal/repo"
	"FileVault/internal/storage"
	"FileVault/internal/task"
	"FileVault/model"
	"FileVault/utils"

	"go.uber.org/zap"
)

// Deps are the collaborators of VaultService, built once at startup.
type Deps struct {
	Metadata      *repo.MetadataStore
	Store         storage.Store
	Cache         *cache.LocalCache
	Expiry        *cache.Expiry
	Guard         *UploadGuard
	Sync          task.Dispatcher
	Lists         *utils.ListCache
	Log           *zap.Logger
	PublicBaseURL string
	Now           func() time.Time
}

// VaultService runs uploads, cached retrieval, tagging and deletion.
type VaultService struct {
	Deps
}

func NewVaultService(deps Deps) *VaultService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &VaultService{Deps: deps}
}

// Download is a file ready to be served.
type Download struct {
	FileName    string
	ContentType string
	Data        []byte
}

// MaxTagBytes is the longest tag accepted, the width of the tag column.
const MaxTagBytes = 255

// ParseTags splits a comma separated tag string.
func ParseTags(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return NormalizeTags(strings.Split(raw, ","))
}

// NormalizeTags trims tags, drops empty ones and keeps the first of duplicates.
// A tag longer than MaxTagBytes is a ValidationError.
func NormalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if len(tag) > MaxTagBytes {
			return nil, invalid("tag longer than %d bytes", MaxTagBytes)
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out, nil
}

// BuildObjectName derives the object key of an owner's upload.
func BuildObjectName(owner uint64, hash, fileName string) string {
	return fmt.Sprintf("files/%d/%s/%s", owner, hash, fileName)
}

func (s *VaultService) buildLink(fileName string) string {
	return s.PublicBaseURL + "/file/original?filename=" + url.QueryEscape(fileName)
}

func (s *VaultService) invalidateLists(ctx context.Context, owner uint64) {
	if err := s.Lists.Invalidate(ctx, owner); err != nil {
		s.Log.Warn("list cache invalidate failed", zap.Uint64("owner", owner), zap.Error(err))
	}
}

func (s *VaultService) lookup(ctx context.Context, owner uint64, name string) (*model.FileRecord, error) {
	rec, err := s.Metadata.GetRecord(ctx, owner, name)
	if errors.Is(err, repo.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Upload stores content under a new record for owner.
func (s *VaultService) Upload(ctx context.Context, owner uint64, name string, content []byte, rawTags string) (*dto.FileView, error) {
	if len(name) > cache.MaxFileNameBytes {
		return nil, invalid("file name longer than %d bytes", cache.MaxFileNameBytes)
	}
	if err := cache.ValidateFileName(name); err != nil {
		return nil, invalid("invalid file name %q", name)
	}
	tags, err := ParseTags(rawTags)
	if err != nil {
		return nil, err
	}
	if err := s.Guard.CheckAllowed(ctx, owner); err != nil {
		return nil, err
	}
	if _, err := s.Metadata.GetRecord(ctx, owner, name); err == nil {
		return nil, invalid("file already exists")
	} else if !errors.Is(err, repo.ErrRecordNotFound) {
		return nil, err
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	objectKey := BuildObjectName(owner, hash, name)
	err = s.Store.PutObject(ctx, objectKey, bytes.NewReader(content), int64(len(content)), storage.PutOptions{
		ContentType: DetectContentType(name, content),
	})
	if err != nil {
		return nil, &StorageError{Op: "put", Err: err}
	}

	now := s.Now().UTC()
	rec := &model.FileRecord{
		UserID:          owner,
		FileName:        name,
		FileSHA256:      hash,
		Size:            int64(len(content)),
		ObjectKey:       objectKey,
		Link:            s.buildLink(name),
		UploadTimestamp: now.Format(time.RFC3339),
		UploadedUnix:    now.Unix(),
	}
	if err := s.Metadata.InsertRecordWithTags(ctx, rec, tags); err != nil {
		s.discardObject(ctx, owner, name, objectKey)
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, invalid("file already exists")
		}
		return nil, fmt.Errorf("insert record: %w", err)
	}
	s.invalidateLists(ctx, owner)
	s.Log.Info("file uploaded",
		zap.Uint64("owner", owner),
		zap.String("file", name),
		zap.Int64("size", rec.Size))
	view := dto.NewFileView(rec)
	return &view, nil
}

// discardObject removes an object whose record could not be written, unless a
// concurrent upload of the same name committed a record pointing at it.
func (s *VaultService) discardObject(ctx context.Context, owner uint64, name, objectKey string) {
	if existing, err := s.Metadata.GetRecord(ctx, owner, name); err == nil && existing.ObjectKey == objectKey {
		return
	}
	if err := s.Store.RemoveObject(ctx, objectKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.Log.Warn("orphan object not removed", zap.String("key", objectKey), zap.Error(err))
	}
}

// GetOriginal returns the file bytes, from the local cache when the record says
// a copy exists and it is still on disk, otherwise from the object store.
func (s *VaultService) GetOriginal(ctx context.Context, owner uint64, name string) (*Download, error) {
	rec, err := s.lookup(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	cacheName := cache.Name(owner, rec.FileName)

	if rec.IsCached() && s.Cache.Exists(cacheName) {
		data, err := s.Cache.Read(cacheName)
		if err == nil {
			cache.RecordHit()
			return &Download{FileName: rec.FileName, ContentType: DetectContentType(rec.FileName, data), Data: data}, nil
		}
		s.Log.Warn("cached copy unreadable", zap.String("name", cacheName), zap.Error(err))
	}
	if rec.IsCached() {
		cache.RecordRepair()
	} else {
		cache.RecordMiss()
	}

	data, err := storage.ReadAll(ctx, s.Store, rec.ObjectKey)
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	s.fillCache(ctx, rec, cacheName, data)
	return &Download{FileName: rec.FileName, ContentType: DetectContentType(rec.FileName, data), Data: data}, nil
}

// fillCache saves the bytes locally and defers the record update. Failures only cost
// a future cache miss.
func (s *VaultService) fillCache(ctx context.Context, rec *model.FileRecord, cacheName string, data []byte) {
	path, mtime, err := s.Cache.Save(cacheName, data)
	if err != nil {
		s.Log.Warn("cache fill failed", zap.String("name", cacheName), zap.Error(err))
		return
	}
	s.Sync.Dispatch(task.CacheSyncMessage{
		RecordID:       rec.ID,
		OwnerID:        rec.UserID,
		FileName:       rec.FileName,
		LocalPath:      path,
		CacheTimestamp: mtime,
	})
	if err := s.Expiry.Touch(ctx, cacheName); err != nil {
		s.Log.Warn("cache expiry not set", zap.String("name", cacheName), zap.Error(err))
	}
}

// GetMetadata returns the record view, or nil when the owner has no such file.
func (s *VaultService) GetMetadata(ctx context.Context, owner uint64, name string) (*dto.FileView, error) {
	rec, err := s.lookup(ctx, owner, name)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	view := dto.NewFileView(rec)
	return &view, nil
}

// ListFiles returns every file of the owner.
func (s *VaultService) ListFiles(ctx context.Context, owner uint64) ([]dto.FileView, error) {
	var cached []dto.FileView
	if s.Lists.GetList(ctx, owner, &cached) {
		return cached, nil
	}
	recs, err := s.Metadata.ListRecords(ctx, owner)
	if err != nil {
		return nil, err
	}
	views := dto.NewFileViews(recs)
	if err := s.Lists.SetList(ctx, owner, views); err != nil {
		s.Log.Debug("list cache set failed", zap.Error(err))
	}
	return views, nil
}

// SearchByTag returns the owner's files carrying exactly tag.
func (s *VaultService) SearchByTag(ctx context.Context, owner uint64, tag string) ([]dto.FileView, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, invalid("tag is required")
	}
	var cached []dto.FileView
	if s.Lists.GetTagSearch(ctx, owner, tag, &cached) {
		return cached, nil
	}
	recs, err := s.Metadata.SearchByTag(ctx, owner, tag)
	if err != nil {
		return nil, err
	}
	views := dto.NewFileViews(recs)
	if err := s.Lists.SetTagSearch(ctx, owner, tag, views); err != nil {
		s.Log.Debug("search cache set failed", zap.Error(err))
	}
	return views, nil
}

// UpdateTags replaces the whole tag set of a file.
func (s *VaultService) UpdateTags(ctx context.Context, owner uint64, name string, tags []string) (*dto.FileView, error) {
	normalized, err := NormalizeTags(tags)
	if err != nil {
		return nil, err
	}
	rec, err := s.Metadata.ReplaceTags(ctx, owner, name, normalized)
	if errors.Is(err, repo.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.invalidateLists(ctx, owner)
	view := dto.NewFileView(rec)
	return &view, nil
}

// Delete removes the object, then the record with its tags, then the local copy.
func (s *VaultService) Delete(ctx context.Context, owner uint64, name string) (*dto.FileView, error) {
	rec, err := s.lookup(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	if err := s.Store.RemoveObject(ctx, rec.ObjectKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return nil, &StorageError{Op: "remove", Err: err}
	}
	deleted, err := s.Metadata.DeleteRecordWithTags(ctx, owner, name)
	if errors.Is(err, repo.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.evict(ctx, cache.Name(owner, deleted.FileName))
	s.invalidateLists(ctx, owner)
	s.Log.Info("file deleted", zap.Uint64("owner", owner), zap.String("file", name))
	view := dto.NewFileView(deleted)
	return &view, nil
}

func (s *VaultService) evict(ctx context.Context, cacheName string) {
	if !s.Cache.Exists(cacheName) {
		return
	}
	if err := s.Cache.Delete(cacheName); err != nil {
		s.Log.Warn("cache eviction failed", zap.String("name", cacheName), zap.Error(err))
		return
	}
	cache.RecordEviction()
	if err := s.Expiry.Forget(ctx, cacheName); err != nil {
		s.Log.Debug("cache expiry not cleared", zap.String("name", cacheName), zap.Error(err))
	}
}

// EvictExpired handles an expired cache key: the local copy is removed and the
// record forgets it.
func (s *VaultService) EvictExpired(ctx context.Context, key string) {
	name, ok := cache.NameFromKey(key)
	if !ok {
		return
	}
	owner, fileName, err := cache.ParseName(name)
	if err != nil {
		s.Log.Warn("expired key with bad cache name", zap.String("key", key))
		return
	}
	if err := s.Cache.Delete(name); err != nil {
		s.Log.Warn("cache eviction failed", zap.String("name", name), zap.Error(err))
		return
	}
	cache.RecordEviction()
	if err := s.Metadata.ClearCacheFields(ctx, owner, fileName); err != nil {
		s.Log.Warn("cache fields not cleared", zap.String("name", name), zap.Error(err))
		return
	}
	s.invalidateLists(ctx, owner)
}
