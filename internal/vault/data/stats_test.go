package data

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureStatsRowIsIdempotent(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`INSERT INTO storage_stats .*ON CONFLICT \(id\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, EnsureStatsRow(context.Background(), db))

	// 已存在时不改变任何行，也不报错
	mock.ExpectExec(`INSERT INTO storage_stats .*ON CONFLICT \(id\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, EnsureStatsRow(context.Background(), db))

	assert.NoError(t, mock.ExpectationsWereMet())
}
