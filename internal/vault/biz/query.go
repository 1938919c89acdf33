package biz

import (
	"fmt"
	"strings"
	"time"
)

// FilterQuery 列表查询条件，所有字段可选，逻辑 AND 组合
type FilterQuery struct {
	Search      string     // original_filename 大小写不敏感子串匹配
	Filename    string     // 同 Search，兼容旧参数名
	FileType    string     // file_type 精确匹配
	MinSize     *int64     // size 下界（含）
	MaxSize     *int64     // size 上界（含）
	StartDate   *time.Time // uploaded_at 日期下界（含，日粒度）
	EndDate     *time.Time // uploaded_at 日期上界（含，日粒度）
	IsDuplicate *bool
	Ordering    string // 排序字段，空值为默认 -uploaded_at

	Page     int
	PageSize int
}

// OrderSpec 已解析的排序
type OrderSpec struct {
	Column string
	Desc   bool
}

// DefaultOrdering 默认按上传时间倒序
var DefaultOrdering = OrderSpec{Column: "uploaded_at", Desc: true}

// orderableColumns 排序字段白名单
var orderableColumns = map[string]string{
	"uploaded_at":       "uploaded_at",
	"original_filename": "original_filename",
	"size":              "size",
	"file_type":         "file_type",
}

// ParseOrdering 解析排序参数。空值返回默认排序；
// 白名单之外的值拒绝而非回退（已在接口文档声明该策略）。
func ParseOrdering(ordering string) (OrderSpec, error) {
	if ordering == "" {
		return DefaultOrdering, nil
	}

	desc := strings.HasPrefix(ordering, "-")
	field := strings.TrimPrefix(ordering, "-")

	column, ok := orderableColumns[field]
	if !ok {
		return OrderSpec{}, fmt.Errorf("%w: %q", ErrInvalidOrdering, ordering)
	}
	return OrderSpec{Column: column, Desc: desc}, nil
}

// Normalize 整理分页与排序，返回解析后的排序
func (q *FilterQuery) Normalize() (OrderSpec, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
	if q.Search == "" && q.Filename != "" {
		q.Search = q.Filename
	}
	if q.MinSize != nil && *q.MinSize < 0 {
		return OrderSpec{}, fmt.Errorf("%w: min_size must be >= 0", ErrInvalidFilter)
	}
	if q.MinSize != nil && q.MaxSize != nil && *q.MinSize > *q.MaxSize {
		return OrderSpec{}, fmt.Errorf("%w: min_size exceeds max_size", ErrInvalidFilter)
	}
	if q.StartDate != nil && q.EndDate != nil && q.StartDate.After(*q.EndDate) {
		return OrderSpec{}, fmt.Errorf("%w: start_date after end_date", ErrInvalidFilter)
	}
	return ParseOrdering(q.Ordering)
}

// SizeRange 大小筛选预设
type SizeRange struct {
	Label string
	Min   int64
	Max   *int64 // nil 表示上不封顶
}

const mb = int64(1 << 20)

// SizeRanges 固定的大小区间预设
func SizeRanges() []SizeRange {
	maxOf := func(v int64) *int64 { return &v }
	return []SizeRange{
		{Label: "0 - 1 MB", Min: 0, Max: maxOf(1 * mb)},
		{Label: "1 - 10 MB", Min: 1 * mb, Max: maxOf(10 * mb)},
		{Label: "10 - 50 MB", Min: 10 * mb, Max: maxOf(50 * mb)},
		{Label: "50 - 100 MB", Min: 50 * mb, Max: maxOf(100 * mb)},
		{Label: "> 100 MB", Min: 100 * mb, Max: nil},
	}
}

// DateRange 日期筛选预设，日粒度闭区间
type DateRange struct {
	Label     string
	StartDate time.Time
	EndDate   time.Time
}

// DateRanges 相对当前时间的日期预设
func DateRanges(now time.Time) []DateRange {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	// 周一作为一周起点
	weekday := int(today.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	weekStart := today.AddDate(0, 0, -(weekday - 1))

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())

	return []DateRange{
		{Label: "Today", StartDate: today, EndDate: today},
		{Label: "This week", StartDate: weekStart, EndDate: today},
		{Label: "This month", StartDate: monthStart, EndDate: today},
		{Label: "This year", StartDate: yearStart, EndDate: today},
	}
}
