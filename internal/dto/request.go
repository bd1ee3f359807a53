package dto

import "mime/multipart"

type UploadFileRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"`
	Tags string                `form:"tags"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Email    string `json:"email" binding:"omitempty,email,max=255"`
	FullName string `json:"full_name" binding:"max=120"`
}

type LoginRequest struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type UpdateTagsRequest struct {
	Tags []string `json:"tags" binding:"required,dive,max=255"`
}

type SearchRequest struct {
	Tag string `form:"tag" binding:"required"`
}

type OriginalRequest struct {
	Filename string `form:"filename" binding:"required"`
}
