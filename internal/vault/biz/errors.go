package biz

import "errors"

// 文件相关错误
var (
	ErrFileNotFound    = errors.New("file not found")
	ErrEmptyUpload     = errors.New("upload body is empty")
	ErrFileTooLarge    = errors.New("file exceeds maximum upload size")
	ErrFilenameMissing = errors.New("filename is required")
	ErrTooManyFiles    = errors.New("too many files in batch upload")
)

// 查询相关错误
var (
	ErrInvalidOrdering = errors.New("unrecognized ordering value")
	ErrInvalidFilter   = errors.New("invalid filter parameter")
)

// 存储相关错误
var (
	ErrStorageFailed     = errors.New("blob storage operation failed")
	ErrStorageTimeout    = errors.New("blob storage operation timed out")
	ErrIngestContention  = errors.New("concurrent ingest contention, try again")
	ErrStatsInconsistent = errors.New("storage stats inconsistent, mutations are frozen")
)

// errDuplicateRace 并发首写冲突，内部重试，不外泄
var errDuplicateRace = errors.New("duplicate race detected")
