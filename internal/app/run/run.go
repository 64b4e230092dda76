// Package run 是一次转换的执行流程：读取 -> 解析 -> 按根元素分派 -> 翻译 -> 写出，
// 装配体还会派发外部子文档并（可选）打批。
package run

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/John-Robertt/stepjson/internal/app/dispatch"
	"github.com/John-Robertt/stepjson/internal/app/planner"
	"github.com/John-Robertt/stepjson/internal/batch"
	"github.com/John-Robertt/stepjson/internal/config"
	"github.com/John-Robertt/stepjson/internal/domain"
	"github.com/John-Robertt/stepjson/internal/infra/store"
	"github.com/John-Robertt/stepjson/internal/translate"
	"github.com/John-Robertt/stepjson/internal/xmltree"
)

// Execute 转换 eff.Dir 下的 eff.File，并返回对外稳定的 RunReport。
// 子文档失败只记录在报告中，不影响其它文档。
func Execute(ctx context.Context, eff config.EffectiveConfig) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, obs Observer) domain.RunReport {
	if obs == nil {
		obs = nopObserver{}
	}
	obs.OnStart(eff)

	r := &runner{
		eff: eff,
		tr:  translate.New(Options(eff)),
		obs: obs,
	}

	rr := domain.RunReport{
		Dir:       eff.Dir,
		File:      eff.File,
		StartedAt: time.Now().UTC(),
	}

	// 根文档的失败已记录在其 FileResult 中。
	_ = r.translateFile(ctx, domain.Task{Dir: eff.Dir, File: eff.File}, eff.Batches)

	r.mu.Lock()
	rr.Files = append([]domain.FileResult(nil), r.files...)
	rr.Batches = append([]domain.BatchResult(nil), r.batches...)
	r.mu.Unlock()

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

// Options 从最终配置得到编码选项。
func Options(eff config.EffectiveConfig) translate.Options {
	return translate.Options{
		IndexPoints:    eff.IndexPoints,
		IndexNormals:   eff.IndexNormals,
		CompressColors: eff.CompressColors,
		RoundPrecision: eff.RoundPrecision,
	}
}

type runner struct {
	eff config.EffectiveConfig
	tr  *translate.Translator
	obs Observer

	mu      sync.Mutex
	files   []domain.FileResult
	batches []domain.BatchResult
}

// translateFile 处理一个文档。任务之间只共享输出目录；每个任务只写自己的输出文件。
//
// 结果（含失败）总会被记录一次；返回的 error 只用于让派发方统计失败。
func (r *runner) translateFile(ctx context.Context, task domain.Task, desiredBatches int) error {
	res := domain.FileResult{
		File:   task.File,
		Kind:   domain.KindUnknown,
		Output: outputName(task.File),
		Status: domain.StatusWritten,
	}
	st := store.New(task.Dir, r.eff.GzipBatches)
	return r.translateInto(ctx, task, st, desiredBatches, &res)
}

// outputName 是输出文件名：第一次出现的 "xml" 换成 "json"。
// 文件名里没有 "xml" 时追加 .json，避免覆盖输入文件。
func outputName(file string) string {
	if out := translate.RewriteHref(file); out != file {
		return out
	}
	return file + ".json"
}

func (r *runner) translateInto(ctx context.Context, task domain.Task, st store.Store, desiredBatches int, res *domain.FileResult) error {
	started := time.Now()
	b, err := st.Read(task.File)
	res.Timings.Read = time.Since(started)
	if err != nil {
		res.ErrorCode = domain.ErrCodeReadFailed
		r.record(*res, err)
		return errors.Wrap(err, "读取失败")
	}

	started = time.Now()
	doc, err := xmltree.ParseBytes(b)
	res.Timings.Parse = time.Since(started)
	if err != nil {
		res.ErrorCode = domain.ErrCodeParseFailed
		r.record(*res, err)
		return err
	}

	res.Kind = domain.KindOf(doc.RootName())
	switch res.Kind {
	case domain.KindAssembly:
		return r.assembly(ctx, task, st, doc, desiredBatches, res)
	case domain.KindShell:
		return r.single(st, res, func() (any, int, error) {
			sh, err := r.tr.Shell(doc.Root())
			return sh, sh.Size(), err
		})
	case domain.KindAnnotation:
		return r.single(st, res, func() (any, int, error) {
			a, err := translate.Annotation(doc.Root())
			return a, 0, err
		})
	default:
		// 未知根元素：不输出、不算失败。
		res.Status = domain.StatusUnknown
		res.ErrorCode = domain.ErrCodeUnknownType
		res.ErrorMsg = "未知文档类型：<" + doc.RootName() + ">"
		res.Output = ""
		r.record(*res, nil)
		return nil
	}
}

// single 翻译并写出 shell/annotation 文档。
func (r *runner) single(st store.Store, res *domain.FileResult, translateFn func() (any, int, error)) error {
	started := time.Now()
	v, triangles, err := translateFn()
	res.Timings.Translate = time.Since(started)
	if err != nil {
		res.ErrorCode = domain.ErrCodeTranslateFailed
		r.record(*res, err)
		return err
	}
	res.Triangles = triangles
	return r.write(st, res, v)
}

func (r *runner) write(st store.Store, res *domain.FileResult, v any) error {
	started := time.Now()
	err := st.WriteJSON(res.Output, v)
	res.Timings.Write = time.Since(started)
	if err != nil {
		res.ErrorCode = domain.ErrCodeWriteFailed
		r.record(*res, err)
		return errors.Wrap(err, "写出失败")
	}
	r.record(*res, nil)
	return nil
}

// assembly 写出索引后派发外部子文档：
//
// - shell 子文档限流并发，全部结束后才打批（批次要读回它们的输出文件）
// - annotation 子文档不限流，与打批并行；只在整个文档返回前等待
func (r *runner) assembly(ctx context.Context, task domain.Task, st store.Store, doc *xmltree.Document, desiredBatches int, res *domain.FileResult) error {
	started := time.Now()
	idx, err := r.tr.Index(doc, desiredBatches)
	res.Timings.Translate = time.Since(started)
	if err != nil {
		res.ErrorCode = domain.ErrCodeTranslateFailed
		r.record(*res, err)
		return err
	}

	for _, s := range idx.Shells {
		if !s.IsExternal() {
			res.Triangles += s.Size()
		}
	}
	plan := planner.PlanExternal(task.Dir, idx)
	res.ExternalRefs = planner.Total(plan)

	if err := r.write(st, res, idx); err != nil {
		return err
	}

	// 子任务只拿到 {Dir, File}，各自重新走完整流程，且不再打批。
	sub := func(ctx context.Context, t domain.Task) error {
		return r.translateFile(ctx, t, 0)
	}
	shells := dispatch.Dispatcher{Limit: r.eff.Concurrency, Run: sub}.Start(ctx, plan.Shells)
	r.obs.OnDispatch(task.File, domain.KindShell, shells.Total())
	annotations := dispatch.Dispatcher{Run: sub}.Start(ctx, plan.Annotations)
	r.obs.OnDispatch(task.File, domain.KindAnnotation, annotations.Total())

	shellErr := shells.Wait()
	r.obs.OnCohortDone(task.File, domain.KindShell, shells.Total(), shells.Failed(), shellErr, shells.Duration())

	var batchErr error
	if idx.Batches > 0 {
		batchErr = r.pack(st, idx)
	}

	annErr := annotations.Wait()
	r.obs.OnCohortDone(task.File, domain.KindAnnotation, annotations.Total(), annotations.Failed(), annErr, annotations.Duration())

	return batchErr
}

func (r *runner) pack(st store.Store, idx domain.Index) error {
	plans := batch.Pack(idx.Shells, idx.Batches)
	results := batch.Write(st, plans, idx.Shells)

	failed := 0
	for _, br := range results {
		if br.Status == domain.StatusFailed {
			failed++
		}
		r.mu.Lock()
		r.batches = append(r.batches, br)
		r.mu.Unlock()
		r.obs.OnBatchDone(br)
	}
	if failed > 0 {
		return errors.Errorf("%s：%d 个批次失败", domain.ErrCodeBatchFailed, failed)
	}
	return nil
}

func (r *runner) record(res domain.FileResult, err error) {
	if err != nil {
		res.Status = domain.StatusFailed
		res.ErrorMsg = err.Error()
		res.Output = ""
	}
	r.mu.Lock()
	r.files = append(r.files, res)
	r.mu.Unlock()
	r.obs.OnFileDone(res)
}
