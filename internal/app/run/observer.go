package run

import (
	"time"

	"github.com/John-Robertt/stepjson/internal/config"
	"github.com/John-Robertt/stepjson/internal/domain"
)

// Observer 用于把“运行进度/文件结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：事件来自多个任务 goroutine。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnFileDone 在一个文档（根文档或子文档）处理完成时调用，无论成功与否。
	OnFileDone(res domain.FileResult)
	// OnDispatch 在装配体派发一组外部子文档时调用。
	OnDispatch(parent string, kind domain.DocKind, total int)
	// OnCohortDone 在一组子文档全部结束时调用；err 是聚合后的失败（可能为 nil）。
	OnCohortDone(parent string, kind domain.DocKind, total, failed int, err error, dur time.Duration)
	// OnBatchDone 在一个批次文件写完（或失败）时调用。
	OnBatchDone(res domain.BatchResult)
}

type nopObserver struct{}

func (nopObserver) OnStart(config.EffectiveConfig)                                      {}
func (nopObserver) OnFileDone(domain.FileResult)                                        {}
func (nopObserver) OnDispatch(string, domain.DocKind, int)                              {}
func (nopObserver) OnCohortDone(string, domain.DocKind, int, int, error, time.Duration) {}
func (nopObserver) OnBatchDone(domain.BatchResult)                                      {}
