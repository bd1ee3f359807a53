package model

// FileRecord is the metadata of one stored file. The pair (UserID, FileName) is unique.
type FileRecord struct {
	ID uint64 `gorm:"primaryKey" json:"id,omitempty"`

	UserID uint64 `gorm:"column:user_id;not null;index;uniqueIndex:uk_user_file_name,priority:1" json:"user_id,omitempty"`
	User   User   `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE" json:"-"`

	FileName   string `gorm:"column:file_name;size:255;not null;uniqueIndex:uk_user_file_name,priority:2" json:"file_name"`
	FileSHA256 string `gorm:"column:file_sha256;size:64;not null" json:"file_sha256"`
	Size       int64  `gorm:"column:size;not null;default:0" json:"size"`

	// ObjectKey never changes after insert.
	ObjectKey string `gorm:"column:object_key;size:512;not null" json:"object_key"`
	Link      string `gorm:"column:link;size:1024;not null" json:"link"`

	UploadTimestamp string `gorm:"column:upload_timestamp;size:40;not null" json:"upload_timestamp"`
	UploadedUnix    int64  `gorm:"column:uploaded_unix;not null;index" json:"-"`

	// LocalPath and CacheTimestamp are either both set or both nil.
	LocalPath      *string `gorm:"column:local_path;size:1024" json:"local_path"`
	CacheTimestamp *int64  `gorm:"column:cache_timestamp" json:"cache_timestamp"`

	Tags []FileTag `gorm:"foreignKey:FileID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the database table name.
func (FileRecord) TableName() string {
	return "file_record"
}

// IsCached reports whether the record claims a local copy.
func (r *FileRecord) IsCached() bool {
	return r.LocalPath != nil && *r.LocalPath != "" && r.CacheTimestamp != nil
}

// TagNames returns the tag names in insertion order.
func (r *FileRecord) TagNames() []string {
	out := make([]string, 0, len(r.Tags))
	for _, tag := range r.Tags {
		out = append(out, tag.TagName)
	}
	return out
}
