package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusWritten = "written"
	StatusUnknown = "unknown_type"
	StatusFailed  = "failed"
)

const (
	ErrCodeReadFailed      = "read_failed"
	ErrCodeParseFailed     = "parse_failed"
	ErrCodeTranslateFailed = "translate_failed"
	ErrCodeWriteFailed     = "write_failed"
	ErrCodeUnknownType     = "unknown_type"
	ErrCodeBatchFailed     = "batch_failed"
)

// RunReport 是一次运行的对外稳定输出（stdout JSON）。
//
// 它只用于诊断：父任务的控制流不依赖子任务的结果（见 dispatch 包）。
type RunReport struct {
	Dir  string `json:"dir"`
	File string `json:"file"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Files   []FileResult  `json:"files"`
	Batches []BatchResult `json:"batches"`
}

type ReportSummary struct {
	Written      int `json:"written"`
	Unknown      int `json:"unknown"`
	Failed       int `json:"failed"`
	Batches      int `json:"batches"`
	BatchFailed  int `json:"batch_failed"`
	Triangles    int `json:"triangles"`
	ExternalRefs int `json:"external_refs"`
}

// FileResult 描述一个文档（根文档或子文档）的翻译结果。
type FileResult struct {
	File   string  `json:"file"`
	Kind   DocKind `json:"kind"`
	Output string  `json:"output"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	// Triangles 是本文档内联 shell 的三角形总数；ExternalRefs 是派发出去的子文档数。
	Triangles    int `json:"triangles"`
	ExternalRefs int `json:"external_refs"`

	Timings Timings `json:"timings"`
}

type BatchResult struct {
	Name     string `json:"name"`
	Shells   int    `json:"shells"`
	Size     int    `json:"size"`
	Status   string `json:"status"`
	ErrorMsg string `json:"error_msg"`
}

// Timings 是单次调用的阶段耗时，随调用链返回，不做进程级共享。
type Timings struct {
	Read      time.Duration
	Parse     time.Duration
	Translate time.Duration
	Write     time.Duration
}

func (t Timings) Total() time.Duration { return t.Read + t.Parse + t.Translate + t.Write }

func (t Timings) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ReadMS      int64 `json:"read_ms"`
		ParseMS     int64 `json:"parse_ms"`
		TranslateMS int64 `json:"translate_ms"`
		WriteMS     int64 `json:"write_ms"`
	}{
		ReadMS:      t.Read.Milliseconds(),
		ParseMS:     t.Parse.Milliseconds(),
		TranslateMS: t.Translate.Milliseconds(),
		WriteMS:     t.Write.Milliseconds(),
	})
}

func (t *Timings) UnmarshalJSON(b []byte) error {
	var w struct {
		ReadMS      int64 `json:"read_ms"`
		ParseMS     int64 `json:"parse_ms"`
		TranslateMS int64 `json:"translate_ms"`
		WriteMS     int64 `json:"write_ms"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*t = Timings{
		Read:      time.Duration(w.ReadMS) * time.Millisecond,
		Parse:     time.Duration(w.ParseMS) * time.Millisecond,
		Translate: time.Duration(w.TranslateMS) * time.Millisecond,
		Write:     time.Duration(w.WriteMS) * time.Millisecond,
	}
	return nil
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) files 稳定排序：根文档在前，其余按文件名字典序；batches 按名字排序
// 3) summary 由 files/batches 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Files == nil {
		r.Files = []FileResult{}
	}
	if r.Batches == nil {
		r.Batches = []BatchResult{}
	}

	sort.SliceStable(r.Files, func(i, j int) bool {
		a, b := r.Files[i].File, r.Files[j].File
		if a == r.File || b == r.File {
			return a == r.File && b != r.File
		}
		return a < b
	})
	sort.SliceStable(r.Batches, func(i, j int) bool {
		a, b := r.Batches[i].Name, r.Batches[j].Name
		if len(a) != len(b) {
			// batch2.json < batch10.json
			return len(a) < len(b)
		}
		return a < b
	})

	var s ReportSummary
	for _, f := range r.Files {
		switch f.Status {
		case StatusWritten:
			s.Written++
		case StatusUnknown:
			s.Unknown++
		case StatusFailed:
			s.Failed++
		}
		s.Triangles += f.Triangles
		s.ExternalRefs += f.ExternalRefs
	}
	for _, b := range r.Batches {
		s.Batches++
		if b.Status == StatusFailed {
			s.BatchFailed++
		}
	}
	r.Summary = s
}

// RootResult 返回根文档的结果（不存在时 ok=false）。
func (r RunReport) RootResult() (FileResult, bool) {
	for _, f := range r.Files {
		if f.File == r.File {
			return f, true
		}
	}
	return FileResult{}, false
}
