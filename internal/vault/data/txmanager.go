package data

import (
	"context"

	"github.com/ramakeerthi/file-vault-backend/internal/pkg/database"
	"github.com/ramakeerthi/file-vault-backend/internal/vault/biz"
	"gorm.io/gorm"
)

// TxManager 实现 biz.TxManager，事务句柄通过 context 传递给仓储
type TxManager struct {
	tm *database.TransactionManager
}

// NewTxManager 创建事务管理器
func NewTxManager(db *database.DB) biz.TxManager {
	return &TxManager{tm: database.NewTransactionManager(db)}
}

// Transaction 在单个数据库事务内执行 fn，序列化冲突（40001/40P01）自动重试
func (m *TxManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.tm.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		return fn(database.ContextWithTransaction(ctx, tx))
	})
}
