package dto

import "FileVault/model"

// FileView is the public metadata of a file record.
type FileView struct {
	FileName        string   `json:"file_name"`
	FileSHA256      string   `json:"file_sha256"`
	Size            int64    `json:"size"`
	ObjectKey       string   `json:"object_key"`
	Link            string   `json:"link"`
	UploadTimestamp string   `json:"upload_timestamp"`
	Tags            []string `json:"tags"`
	LocalPath       *string  `json:"local_path"`
	CacheTimestamp  *int64   `json:"cache_timestamp"`
}

func NewFileView(rec *model.FileRecord) FileView {
	return FileView{
		FileName:        rec.FileName,
		FileSHA256:      rec.FileSHA256,
		Size:            rec.Size,
		ObjectKey:       rec.ObjectKey,
		Link:            rec.Link,
		UploadTimestamp: rec.UploadTimestamp,
		Tags:            rec.TagNames(),
		LocalPath:       rec.LocalPath,
		CacheTimestamp:  rec.CacheTimestamp,
	}
}

func NewFileViews(recs []model.FileRecord) []FileView {
	out := make([]FileView, 0, len(recs))
	for i := range recs {
		out = append(out, NewFileView(&recs[i]))
	}
	return out
}

// MessageResponse answers tag updates and deletes.
type MessageResponse struct {
	Message string   `json:"message"`
	Record  FileView `json:"record"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type UserView struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

func NewUserView(user *model.User) UserView {
	return UserView{
		ID:       user.ID,
		Username: user.UserName,
		Email:    user.Email,
		FullName: user.FullName,
	}
}
