package service

import (
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/ramakeerthi/file-vault-backend/internal/pkg/errors"
	"github.com/ramakeerthi/file-vault-backend/internal/pkg/logger"
	"github.com/ramakeerthi/file-vault-backend/internal/pkg/response"
	"github.com/ramakeerthi/file-vault-backend/internal/pkg/workerpool"
	"github.com/ramakeerthi/file-vault-backend/internal/vault/biz"
	"go.uber.org/zap"
)

// FileService 文件目录 HTTP 服务
type FileService struct {
	fileUseCase   *biz.FileUseCase
	batchPool     *workerpool.Pool
	batchMaxFiles int
	logger        *logger.Logger
}

// NewFileService 创建文件服务
func NewFileService(fileUseCase *biz.FileUseCase, batchPool *workerpool.Pool, batchMaxFiles int, logger *logger.Logger) *FileService {
	if batchMaxFiles <= 0 {
		batchMaxFiles = 20
	}
	return &FileService{
		fileUseCase:   fileUseCase,
		batchPool:     batchPool,
		batchMaxFiles: batchMaxFiles,
		logger:        logger,
	}
}

// RegisterRoutes 注册路由
func (s *FileService) RegisterRoutes(r *gin.RouterGroup) {
	files := r.Group("/files")
	{
		files.POST("", s.Upload)
		files.POST("/batch", s.BatchUpload)
		files.GET("", s.List)

		// 固定路径在参数路径之前注册
		files.GET("/storage_stats", s.StorageStats)
		files.GET("/file_types", s.FileTypes)
		files.GET("/size_ranges", s.SizeRanges)
		files.GET("/date_ranges", s.DateRanges)

		files.GET("/:id", s.Get)
		files.DELETE("/:id", s.Delete)
		files.GET("/:id/download", s.Download)
	}
}

// Upload 上传单个文件
func (s *FileService) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.ErrorWithCode(c, apperrors.ErrVaultEmptyUpload)
		return
	}

	record, err := s.ingestMultipart(c, fileHeader)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Created(c, toFileResponse(record))
}

// BatchUpload 批量上传，文件并行走协程池
func (s *FileService) BatchUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.ErrorWithCode(c, apperrors.ErrVaultEmptyUpload)
		return
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		response.ErrorWithCode(c, apperrors.ErrVaultEmptyUpload)
		return
	}
	if len(fileHeaders) > s.batchMaxFiles {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams,
			fmt.Sprintf("at most %d files per batch", s.batchMaxFiles))
		return
	}

	results := make([]*BatchUploadResult, len(fileHeaders))
	tasks := make([]func() error, len(fileHeaders))
	for i, fh := range fileHeaders {
		i, fh := i, fh
		tasks[i] = func() error {
			record, err := s.ingestMultipart(c, fh)
			if err != nil {
				results[i] = &BatchUploadResult{Filename: fh.Filename, Error: err.Error()}
				return err
			}
			results[i] = &BatchUploadResult{Filename: fh.Filename, Success: true, File: toFileResponse(record)}
			return nil
		}
	}

	s.batchPool.SubmitWait(c.Request.Context(), tasks)

	resp := &BatchUploadResponse{Results: results}
	for i, r := range results {
		if r == nil {
			results[i] = &BatchUploadResult{Filename: fileHeaders[i].Filename, Error: "upload not executed"}
			r = results[i]
		}
		if r.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}

	response.Created(c, resp)
}

func (s *FileService) ingestMultipart(c *gin.Context, fh *multipart.FileHeader) (*biz.FileRecord, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	return s.fileUseCase.Upload(c.Request.Context(), fh.Filename, fh.Header.Get("Content-Type"), f)
}

// List 查询文件列表
func (s *FileService) List(c *gin.Context) {
	var req ListFilesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	query := &biz.FilterQuery{
		Search:      req.Search,
		Filename:    req.Filename,
		FileType:    req.FileType,
		MinSize:     req.MinSize,
		MaxSize:     req.MaxSize,
		IsDuplicate: req.IsDuplicate,
		Ordering:    req.Ordering,
		Page:        req.Page,
		PageSize:    req.PageSize,
	}

	var err error
	if query.StartDate, err = parseDate(req.StartDate); err != nil {
		response.ErrorWithCode(c, apperrors.ErrVaultInvalidFilter, "start_date must be YYYY-MM-DD")
		return
	}
	if query.EndDate, err = parseDate(req.EndDate); err != nil {
		response.ErrorWithCode(c, apperrors.ErrVaultInvalidFilter, "end_date must be YYYY-MM-DD")
		return
	}

	records, total, err := s.fileUseCase.List(c.Request.Context(), query)
	if err != nil {
		s.handleError(c, err)
		return
	}

	items := make([]*FileResponse, len(records))
	for i, record := range records {
		items[i] = toFileResponse(record)
	}

	response.Success(c, &ListFilesResponse{
		Items: items,
		Pagination: &PaginationResponse{
			Page:     query.Page,
			PageSize: query.PageSize,
			Total:    total,
		},
	})
}

// Get 获取单条记录
func (s *FileService) Get(c *gin.Context) {
	record, err := s.fileUseCase.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, toFileResponse(record))
}

// Delete 删除记录
func (s *FileService) Delete(c *gin.Context) {
	if err := s.fileUseCase.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.handleError(c, err)
		return
	}
	response.NoContent(c)
}

// Download 下载文件内容
func (s *FileService) Download(c *gin.Context) {
	record, rc, err := s.fileUseCase.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	defer rc.Close()

	filename := record.OriginalFilename
	if filepath.Ext(filename) == "" {
		if ext := biz.ExtensionForType(record.FileType); ext != "" {
			filename += ext
		}
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sanitizeFilename(filename)))
	c.Header("Content-Length", fmt.Sprintf("%d", record.Size))
	c.DataFromReader(200, record.Size, record.FileType, rc, nil)
}

// StorageStats 当前存储统计
func (s *FileService) StorageStats(c *gin.Context) {
	stats, err := s.fileUseCase.StorageStats(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, toStorageStatsResponse(stats))
}

// FileTypes 文件类型筛选列表
func (s *FileService) FileTypes(c *gin.Context) {
	types, err := s.fileUseCase.FileTypes(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}
	if types == nil {
		types = []string{}
	}
	response.Success(c, types)
}

// SizeRanges 大小筛选预设
func (s *FileService) SizeRanges(c *gin.Context) {
	ranges := biz.SizeRanges()
	items := make([]*SizeRangeResponse, len(ranges))
	for i, r := range ranges {
		items[i] = &SizeRangeResponse{Label: r.Label, MinSize: r.Min, MaxSize: r.Max}
	}
	response.Success(c, items)
}

// DateRanges 日期筛选预设
func (s *FileService) DateRanges(c *gin.Context) {
	ranges := biz.DateRanges(time.Now().UTC())
	items := make([]*DateRangeResponse, len(ranges))
	for i, r := range ranges {
		items[i] = &DateRangeResponse{
			Label:     r.Label,
			StartDate: r.StartDate.Format(dateLayout),
			EndDate:   r.EndDate.Format(dateLayout),
		}
	}
	response.Success(c, items)
}

func (s *FileService) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biz.ErrFileNotFound):
		response.ErrorWithCode(c, apperrors.ErrVaultFileNotFound)
	case errors.Is(err, biz.ErrEmptyUpload), errors.Is(err, biz.ErrFilenameMissing):
		response.ErrorWithCode(c, apperrors.ErrVaultEmptyUpload)
	case errors.Is(err, biz.ErrFileTooLarge):
		response.ErrorWithCode(c, apperrors.ErrVaultFileTooLarge)
	case errors.Is(err, biz.ErrTooManyFiles):
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, err.Error())
	case errors.Is(err, biz.ErrInvalidOrdering):
		response.ErrorWithCode(c, apperrors.ErrVaultInvalidOrdering, err.Error())
	case errors.Is(err, biz.ErrInvalidFilter):
		response.ErrorWithCode(c, apperrors.ErrVaultInvalidFilter, err.Error())
	case errors.Is(err, biz.ErrStatsInconsistent):
		response.ErrorWithCode(c, apperrors.ErrVaultStatsInconsistent)
	case errors.Is(err, biz.ErrIngestContention):
		response.ErrorWithCode(c, apperrors.ErrVaultIngestContention)
	case errors.Is(err, biz.ErrStorageTimeout):
		response.ErrorWithCode(c, apperrors.ErrVaultStorageTimeout)
	case errors.Is(err, biz.ErrStorageFailed):
		response.ErrorWithCode(c, apperrors.ErrVaultStorageFailed)
	default:
		s.logger.WithContext(c.Request.Context()).Error("file operation failed", zap.Error(err))
		response.InternalError(c, "internal server error")
	}
}

// parseDate 解析 YYYY-MM-DD，空串返回 nil
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

// sanitizeFilename 去掉会破坏 Content-Disposition 的字符
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\"", "")
	name = strings.ReplaceAll(name, "\r", "")
	name = strings.ReplaceAll(name, "\n", "")
	return name
}
