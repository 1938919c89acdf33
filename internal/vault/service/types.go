package service

import (
	"time"

	"github.com/ramakeerthi/file-vault-backend/internal/vault/biz"
)

// ListFilesRequest 列表查询参数
type ListFilesRequest struct {
	Search      string `form:"search"`
	Filename    string `form:"filename"`
	FileType    string `form:"file_type"`
	MinSize     *int64 `form:"min_size"`
	MaxSize     *int64 `form:"max_size"`
	StartDate   string `form:"start_date"` // YYYY-MM-DD
	EndDate     string `form:"end_date"`   // YYYY-MM-DD
	IsDuplicate *bool  `form:"is_duplicate"`
	Ordering    string `form:"ordering"`
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
}

// FileResponse 文件记录响应
type FileResponse struct {
	ID               string  `json:"id"`
	OriginalFilename string  `json:"original_filename"`
	FileType         string  `json:"file_type"`
	Size             int64   `json:"size"`
	FileHash         string  `json:"file_hash"`
	IsDuplicate      bool    `json:"is_duplicate"`
	OriginalFile     *string `json:"original_file"`
	UploadedAt       string  `json:"uploaded_at"`
}

// PaginationResponse 分页信息
type PaginationResponse struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// ListFilesResponse 文件列表响应
type ListFilesResponse struct {
	Items      []*FileResponse     `json:"items"`
	Pagination *PaginationResponse `json:"pagination"`
}

// BatchUploadResult 批量上传的单文件结果
type BatchUploadResult struct {
	Filename string        `json:"filename"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	File     *FileResponse `json:"file,omitempty"`
}

// BatchUploadResponse 批量上传响应
type BatchUploadResponse struct {
	Results   []*BatchUploadResult `json:"results"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
}

// StorageStatsResponse 存储统计响应
type StorageStatsResponse struct {
	TotalFiles             int64   `json:"total_files"`
	TotalUniqueFiles       int64   `json:"total_unique_files"`
	TotalStorageUsed       int64   `json:"total_storage_used"`
	TotalStorageSaved      int64   `json:"total_storage_saved"`
	StorageSavedPercentage float64 `json:"storage_saved_percentage"`
	LastUpdated            string  `json:"last_updated"`
}

// SizeRangeResponse 大小筛选预设
type SizeRangeResponse struct {
	Label   string `json:"label"`
	MinSize int64  `json:"min_size"`
	MaxSize *int64 `json:"max_size"` // null 表示上不封顶
}

// DateRangeResponse 日期筛选预设，日粒度
type DateRangeResponse struct {
	Label     string `json:"label"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

const dateLayout = "2006-01-02"

func toFileResponse(record *biz.FileRecord) *FileResponse {
	return &FileResponse{
		ID:               record.ID,
		OriginalFilename: record.OriginalFilename,
		FileType:         record.FileType,
		Size:             record.Size,
		FileHash:         record.FileHash,
		IsDuplicate:      record.IsDuplicate,
		OriginalFile:     record.OriginalFileID,
		UploadedAt:       record.UploadedAt.UTC().Format(time.RFC3339),
	}
}

func toStorageStatsResponse(stats *biz.StorageStats) *StorageStatsResponse {
	resp := &StorageStatsResponse{
		TotalFiles:             stats.TotalFiles,
		TotalUniqueFiles:       stats.TotalUniqueFiles,
		TotalStorageUsed:       stats.TotalStorageUsed,
		TotalStorageSaved:      stats.TotalStorageSaved,
		StorageSavedPercentage: stats.StorageSavedPercentage,
	}
	if !stats.LastUpdated.IsZero() {
		resp.LastUpdated = stats.LastUpdated.UTC().Format(time.RFC3339)
	}
	return resp
}
