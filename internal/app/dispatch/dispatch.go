// Package dispatch 把外部子文档作为相互隔离的任务并发执行。
//
// 任务之间只通过消息 {Dir, File} 通信，不共享可变状态；任务失败只被记录，
// 不影响父任务的控制流。
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/stepjson/internal/domain"
)

// Func 在隔离的上下文中处理一个子任务。
type Func func(ctx context.Context, t domain.Task) error

// Dispatcher 描述一组同类任务的调度方式。
type Dispatcher struct {
	// Limit 是同时运行的任务上限；<= 0 表示不限。
	Limit int
	Run   Func
}

// Cohort 是一次 Start 派发出去的一组任务。Wait 是它的汇合屏障。
type Cohort struct {
	total int
	done  chan struct{}

	mu     sync.Mutex
	errs   *multierror.Error
	failed int
	dur    time.Duration
}

// Start 立即返回；调度在后台进行（达到 Limit 时等待空位）。
// ctx 取消后不再调度新任务，未调度的任务计为失败。
func (d Dispatcher) Start(ctx context.Context, tasks []domain.Task) *Cohort {
	c := &Cohort{total: len(tasks), done: make(chan struct{})}

	var g errgroup.Group
	if d.Limit > 0 {
		g.SetLimit(d.Limit)
	}

	go func() {
		defer close(c.done)
		start := time.Now()

		for i, t := range tasks {
			if err := ctx.Err(); err != nil {
				c.record(errors.Wrapf(err, "剩余 %d 个任务未调度", len(tasks)-i), len(tasks)-i)
				break
			}
			t := t // per-iteration copy; preserves Go 1.22+ loop semantics on go1.21
			g.Go(func() error {
				if err := d.runOne(ctx, t); err != nil {
					c.record(err, 1)
				}
				// 失败不向 errgroup 传播：兄弟任务照常运行。
				return nil
			})
		}
		_ = g.Wait()

		c.mu.Lock()
		c.dur = time.Since(start)
		c.mu.Unlock()
	}()
	return c
}

func (d Dispatcher) runOne(ctx context.Context, t domain.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", t.File, r)
		}
	}()
	if err := d.Run(ctx, t); err != nil {
		return errors.Wrap(err, t.File)
	}
	return nil
}

func (c *Cohort) record(err error, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = multierror.Append(c.errs, err)
	c.failed += n
}

// Wait 阻塞直到所有任务结束，返回聚合后的失败（全部成功时为 nil）。
func (c *Cohort) Wait() error {
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errs.ErrorOrNil()
}

// Total 是派发的任务数。
func (c *Cohort) Total() int { return c.total }

// Failed 返回失败（含未调度）的任务数；Wait 之后才是最终值。
func (c *Cohort) Failed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

// Duration 返回从开始调度到最后一个任务结束的耗时；Wait 之后才有意义。
func (c *Cohort) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dur
}
