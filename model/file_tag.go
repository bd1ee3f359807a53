package model

type FileTag struct {
	ID      uint64 `gorm:"primaryKey"`
	TagName string `gorm:"column:tag_name;size:255;not null;index;uniqueIndex:uk_file_tag,priority:2"`
	FileID  uint64 `gorm:"column:file_id;not null;index;uniqueIndex:uk_file_tag,priority:1"`
}

// TableName returns the database table name.
func (FileTag) TableName() string {
	return "file_tag"
}
