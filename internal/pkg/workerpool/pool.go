// Package workerpool 基于 ants 封装的有界协程池。
package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var (
	ErrPoolClosed = errors.New("worker pool is closed")
)

// Config Worker Pool 配置
type Config struct {
	Workers     int           `mapstructure:"workers" yaml:"workers"`           // worker 数量
	ExpiryTime  time.Duration `mapstructure:"expiry_time" yaml:"expiry_time"`   // 空闲 worker 回收时间
	Nonblocking bool          `mapstructure:"nonblocking" yaml:"nonblocking"`   // 队列满时是否立即返回错误
	MaxBlocking int           `mapstructure:"max_blocking" yaml:"max_blocking"` // 最大阻塞等待任务数
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Workers:     32,
		ExpiryTime:  time.Minute,
		Nonblocking: false,
		MaxBlocking: 1024,
	}
}

// Stats 池运行统计
type Stats struct {
	Submitted int64 // 已提交
	Completed int64 // 已完成
	Failed    int64 // 失败（任务返回 error 或 panic）
	Running   int   // 运行中
	Free      int   // 空闲 worker 数
	Cap       int   // 容量
}

// Pool 有界协程池
type Pool struct {
	pool   *ants.Pool
	logger *zap.Logger

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	closed atomic.Bool
}

// New 创建协程池
func New(config *Config, logger *zap.Logger) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}

	opts := []ants.Option{
		ants.WithExpiryDuration(config.ExpiryTime),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithPanicHandler(func(v interface{}) {
			if logger != nil {
				logger.Error("worker panic", zap.Any("panic", v))
			}
		}),
	}
	if !config.Nonblocking && config.MaxBlocking > 0 {
		opts = append(opts, ants.WithMaxBlockingTasks(config.MaxBlocking))
	}

	p, err := ants.NewPool(config.Workers, opts...)
	if err != nil {
		return nil, err
	}

	return &Pool{pool: p, logger: logger}, nil
}

// Submit 提交任务，返回的 error 表示提交失败而非任务失败
func (p *Pool) Submit(task func() error) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	p.submitted.Add(1)
	err := p.pool.Submit(func() {
		if err := task(); err != nil {
			p.failed.Add(1)
			if p.logger != nil {
				p.logger.Warn("worker task failed", zap.Error(err))
			}
			return
		}
		p.completed.Add(1)
	})
	if err != nil {
		p.submitted.Add(-1)
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}
	return nil
}

// SubmitWait 提交一批任务并等待全部完成，返回按下标对应的错误
func (p *Pool) SubmitWait(ctx context.Context, tasks []func() error) []error {
	results := make([]error, len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			results[i] = err
			continue
		}

		wg.Add(1)
		i, task := i, task
		if err := p.Submit(func() error {
			defer wg.Done()
			results[i] = task()
			return results[i]
		}); err != nil {
			wg.Done()
			results[i] = err
		}
	}

	wg.Wait()
	return results
}

// Stats 返回当前统计信息
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Running:   p.pool.Running(),
		Free:      p.pool.Free(),
		Cap:       p.pool.Cap(),
	}
}

// Release 关闭池并等待运行中的任务结束
func (p *Pool) Release(timeout time.Duration) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}
