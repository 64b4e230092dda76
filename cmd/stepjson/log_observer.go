package main

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/stepjson/internal/app/run"
	"github.com/John-Robertt/stepjson/internal/config"
	"github.com/John-Robertt/stepjson/internal/domain"
)

var _ run.Observer = (*logObserver)(nil)

// logObserver 把 run 事件写成结构化日志（stderr），不碰 stdout。
// logrus.Logger 自带锁，可被多个任务 goroutine 并发调用。
type logObserver struct {
	log *logrus.Logger
}

func newLogObserver(log *logrus.Logger) *logObserver {
	return &logObserver{log: log}
}

func (o *logObserver) OnStart(eff config.EffectiveConfig) {
	o.log.WithFields(logrus.Fields{
		"dir":             eff.Dir,
		"file":            eff.File,
		"batches":         eff.Batches,
		"concurrency":     eff.Concurrency,
		"index_points":    eff.IndexPoints,
		"index_normals":   eff.IndexNormals,
		"compress_colors": eff.CompressColors,
		"precision":       eff.RoundPrecision,
		"gzip_batches":    eff.GzipBatches,
	}).Info("开始转换")
}

func (o *logObserver) OnFileDone(res domain.FileResult) {
	entry := o.log.WithFields(logrus.Fields{
		"file":         res.File,
		"kind":         res.Kind,
		"read_ms":      res.Timings.Read.Milliseconds(),
		"parse_ms":     res.Timings.Parse.Milliseconds(),
		"translate_ms": res.Timings.Translate.Milliseconds(),
		"write_ms":     res.Timings.Write.Milliseconds(),
	})
	switch res.Status {
	case domain.StatusFailed:
		entry.WithField("error_code", res.ErrorCode).Error(truncate(res.ErrorMsg, 240))
	case domain.StatusUnknown:
		entry.Warn(res.ErrorMsg)
	default:
		fields := logrus.Fields{"output": res.Output}
		if res.Triangles > 0 {
			fields["triangles"] = res.Triangles
		}
		if res.ExternalRefs > 0 {
			fields["external_refs"] = res.ExternalRefs
		}
		entry.WithFields(fields).Info("已写出")
	}
}

func (o *logObserver) OnDispatch(parent string, kind domain.DocKind, total int) {
	if total == 0 {
		return
	}
	o.log.WithFields(logrus.Fields{
		"parent": parent,
		"kind":   kind,
		"total":  total,
	}).Debug("派发子文档")
}

func (o *logObserver) OnCohortDone(parent string, kind domain.DocKind, total, failed int, err error, dur time.Duration) {
	if total == 0 {
		return
	}
	entry := o.log.WithFields(logrus.Fields{
		"parent":  parent,
		"kind":    kind,
		"total":   total,
		"failed":  failed,
		"elapsed": formatShortDuration(dur),
	})
	if err != nil {
		entry.Warn("部分子文档失败")
		return
	}
	entry.Info("子文档全部完成")
}

func (o *logObserver) OnBatchDone(res domain.BatchResult) {
	entry := o.log.WithFields(logrus.Fields{
		"batch":  res.Name,
		"shells": res.Shells,
		"size":   res.Size,
	})
	if res.Status == domain.StatusFailed {
		entry.WithField("error_code", domain.ErrCodeBatchFailed).Error(truncate(res.ErrorMsg, 240))
		return
	}
	entry.Info("已写出批次")
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Round(time.Millisecond).String()
}
