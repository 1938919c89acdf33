package data

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ramakeerthi/file-vault-backend/internal/vault/biz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToFileRecord(t *testing.T) {
	uploadedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	originalID := "11111111-1111-1111-1111-111111111111"

	t.Run("duplicate exposes original pointer", func(t *testing.T) {
		po := &FilePO{
			ID:               "22222222-2222-2222-2222-222222222222",
			OriginalFilename: "b.txt",
			FileType:         "text/plain",
			Size:             10,
			FileHash:         "abc123",
			StorageKey:       "files/ab/abc123",
			IsDuplicate:      true,
			UploadedAt:       uploadedAt,
			OriginalFileID:   &originalID,
		}

		record := (&FileRepo{}).toFileRecord(po)
		assert.Equal(t, po.ID, record.ID)
		assert.Equal(t, "b.txt", record.OriginalFilename)
		assert.Equal(t, int64(10), record.Size)
		assert.True(t, record.IsDuplicate)
		require.NotNil(t, record.OriginalFileID)
		assert.Equal(t, originalID, *record.OriginalFileID)
	})

	t.Run("original never exposes pointer", func(t *testing.T) {
		po := &FilePO{
			ID:             originalID,
			IsDuplicate:    false,
			UploadedAt:     uploadedAt,
			OriginalFileID: &originalID, // 子查询会返回自身 ID
		}

		record := (&FileRepo{}).toFileRecord(po)
		assert.False(t, record.IsDuplicate)
		assert.Nil(t, record.OriginalFileID)
	})
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "plain", escapeLike("plain"))
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `back\\slash`, escapeLike(`back\slash`))
}

func TestFilterScopesCount(t *testing.T) {
	minSize := int64(1)
	isDup := false
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	q := &biz.FilterQuery{
		Search:      "report",
		FileType:    "application/pdf",
		MinSize:     &minSize,
		StartDate:   &start,
		IsDuplicate: &isDup,
	}

	// 每个条件一个 scope，包括未命中的空 scope
	scopes := filterScopes(q)
	assert.Len(t, scopes, 7)
}

func TestListCountAndPageShareTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFileRepo(db)

	uploadedAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	// 计数与取页在同一事务内提交
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "files"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT files\..* FROM "files"`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "original_filename", "file_type", "size",
			"file_hash", "storage_key", "is_duplicate", "uploaded_at", "original_file_id",
		}).AddRow("33333333-3333-3333-3333-333333333333", "a.txt", "text/plain", int64(10),
			"somehash", "files/so/somehash", false, uploadedAt, nil))
	mock.ExpectCommit()

	query := &biz.FilterQuery{Page: 1, PageSize: 20}
	records, total, err := repo.List(context.Background(), query, biz.DefaultOrdering)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, records, 1)
	assert.Equal(t, "a.txt", records[0].OriginalFilename)
	assert.NoError(t, mock.ExpectationsWereMet())
}
