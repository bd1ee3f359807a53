package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"FileVault/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicate      = errors.New("duplicate record")
)

// MetadataStore persists file records and their tags. Every query is scoped to an owner.
type MetadataStore struct {
	db *gorm.DB
}

func NewMetadataStore(db *gorm.DB) *MetadataStore {
	return &MetadataStore{db: db}
}

func orderedTags(db *gorm.DB) *gorm.DB {
	return db.Order("file_tag.id ASC")
}

func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isDuplicateMessage(err):
		return ErrDuplicate
	default:
		return err
	}
}

// isDuplicateMessage covers drivers whose errors are not translated by gorm.
func isDuplicateMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "duplicate entry")
}

func tagRows(fileID uint64, tags []string) []model.FileTag {
	rows := make([]model.FileTag, 0, len(tags))
	for _, tag := range tags {
		rows = append(rows, model.FileTag{TagName: tag, FileID: fileID})
	}
	return rows
}

// InsertRecordWithTags stores the record and its tag rows in one transaction.
func (s *MetadataStore) InsertRecordWithTags(ctx context.Context, rec *model.FileRecord, tags []string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec.Tags = nil
		if err := tx.Omit(clause.Associations).Create(rec).Error; err != nil {
			return err
		}
		if len(tags) == 0 {
			return nil
		}
		rows := tagRows(rec.ID, tags)
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		rec.Tags = rows
		return nil
	})
	if err != nil {
		rec.Tags = nil
	}
	return translateErr(err)
}

// GetRecord returns the owner's record by file name with tags loaded.
func (s *MetadataStore) GetRecord(ctx context.Context, owner uint64, name string) (*model.FileRecord, error) {
	var rec model.FileRecord
	err := s.db.WithContext(ctx).
		Preload("Tags", orderedTags).
		Where("user_id = ? AND file_name = ?", owner, name).
		Take(&rec).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &rec, nil
}

// ListRecords returns all records of the owner in insertion order.
func (s *MetadataStore) ListRecords(ctx context.Context, owner uint64) ([]model.FileRecord, error) {
	var out []model.FileRecord
	err := s.db.WithContext(ctx).
		Preload("Tags", orderedTags).
		Where("user_id = ?", owner).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// SumSizeSince totals the bytes the owner uploaded at or after since.
func (s *MetadataStore) SumSizeSince(ctx context.Context, owner uint64, since time.Time) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).
		Model(&model.FileRecord{}).
		Select("COALESCE(SUM(size), 0)").
		Where("user_id = ? AND uploaded_unix >= ?", owner, since.Unix()).
		Scan(&total).Error
	return total, err
}

// SearchByTag returns the owner's records carrying tag, each at most once.
func (s *MetadataStore) SearchByTag(ctx context.Context, owner uint64, tag string) ([]model.FileRecord, error) {
	db := s.db.WithContext(ctx)
	fileIDs := db.Model(&model.FileTag{}).Select("file_id").Where("tag_name = ?", tag)
	var out []model.FileRecord
	err := db.
		Preload("Tags", orderedTags).
		Where("user_id = ? AND id IN (?)", owner, fileIDs).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// ReplaceTags swaps the record's whole tag set in one transaction.
func (s *MetadataStore) ReplaceTags(ctx context.Context, owner uint64, name string, tags []string) (*model.FileRecord, error) {
	var rec model.FileRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND file_name = ?", owner, name).Take(&rec).Error; err != nil {
			return err
		}
		if err := tx.Where("file_id = ?", rec.ID).Delete(&model.FileTag{}).Error; err != nil {
			return err
		}
		rec.Tags = nil
		if len(tags) == 0 {
			return nil
		}
		rows := tagRows(rec.ID, tags)
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		rec.Tags = rows
		return nil
	})
	if err != nil {
		return nil, translateErr(err)
	}
	return &rec, nil
}

// UpdateCacheFields sets only the cache columns of the record. A record that no longer
// exists is left alone and reported with updated=false.
func (s *MetadataStore) UpdateCacheFields(ctx context.Context, owner, id uint64, localPath string, cacheTimestamp int64) (bool, error) {
	var count int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&model.FileRecord{}).Where("id = ? AND user_id = ?", id, owner).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}
	err := db.Model(&model.FileRecord{}).
		Where("id = ? AND user_id = ?", id, owner).
		UpdateColumns(map[string]any{
			"local_path":      localPath,
			"cache_timestamp": cacheTimestamp,
		}).Error
	return err == nil, err
}

// ClearCacheFields resets both cache columns to NULL.
func (s *MetadataStore) ClearCacheFields(ctx context.Context, owner uint64, name string) error {
	return s.db.WithContext(ctx).
		Model(&model.FileRecord{}).
		Where("user_id = ? AND file_name = ?", owner, name).
		UpdateColumns(map[string]any{
			"local_path":      gorm.Expr("NULL"),
			"cache_timestamp": gorm.Expr("NULL"),
		}).Error
}

// DeleteRecordWithTags removes the record and its tag rows in one transaction and
// returns what was deleted.
func (s *MetadataStore) DeleteRecordWithTags(ctx context.Context, owner uint64, name string) (*model.FileRecord, error) {
	var rec model.FileRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Tags", orderedTags).
			Where("user_id = ? AND file_name = ?", owner, name).
			Take(&rec).Error; err != nil {
			return err
		}
		if err := tx.Where("file_id = ?", rec.ID).Delete(&model.FileTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.FileRecord{}, rec.ID).Error
	})
	if err != nil {
		return nil, translateErr(err)
	}
	return &rec, nil
}
