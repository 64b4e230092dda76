package run

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/stepjson/internal/config"
	"github.com/John-Robertt/stepjson/internal/domain"
)

const indexXML = `<?xml version="1.0" encoding="UTF-8"?>
<step-assembly root="p1">
  <product id="p1" step="#1" name="Top" shape="sh1"/>
  <shape id="sh1" shell="s1 s2 s3" annotation="a1"/>
  <shell id="s1" href="shell_s1.xml" size="1" bbox="0 0 0 1 1 0"/>
  <shell id="s3" href="shell_s3.xml" size="5" bbox="0 0 0 1 1 0"/>
  <shell id="s2">
    <verts><v p="0 0 0"/><v p="1 0 0"/><v p="0 1 0"/></verts>
    <facets><f v="0 1 2"><n d="0 0 1"/><n d="0 0 1"/><n d="0 0 1"/></f></facets>
  </shell>
  <annotation id="a1" href="annotation_a1.xml"/>
</step-assembly>`

const shellXML = `<shell id="%s" color="ff0000">
  <verts><v p="0 0 0"/><v p="1 0 0"/><v p="0 1 0"/></verts>
  <facets><f v="0 1 2"><n d="0 0 1"/><n d="0 0 1"/><n d="0 0 1"/></f></facets>
</shell>`

const annotationXML = `<annotation id="a1"><polyline><p l="0 0 0"/><p l="1 1 1"/></polyline></annotation>`

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("写入 %s 失败：%v", name, err)
	}
}

func testConfig(dir string, batches int) config.EffectiveConfig {
	return config.EffectiveConfig{
		Dir:            dir,
		File:           "index.xml",
		Batches:        batches,
		Concurrency:    2,
		IndexPoints:    true,
		IndexNormals:   true,
		CompressColors: true,
		RoundPrecision: 2,
		LogLevel:       logrus.InfoLevel,
		LogFormat:      "text",
	}
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取 %s 失败：%v", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("解析 %s 失败：%v", path, err)
	}
}

func TestExecute_AssemblyWithExternalsAndBatches(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "index.xml", indexXML)
	writeFixture(t, dir, "shell_s1.xml", sprintf(shellXML, "s1"))
	writeFixture(t, dir, "shell_s3.xml", sprintf(shellXML, "s3"))
	writeFixture(t, dir, "annotation_a1.xml", annotationXML)

	rr := Execute(context.Background(), testConfig(dir, 2))

	if rr.Summary.Written != 4 || rr.Summary.Failed != 0 {
		t.Fatalf("summary 不正确：%+v files=%+v", rr.Summary, rr.Files)
	}
	root, ok := rr.RootResult()
	if !ok || root.Kind != domain.KindAssembly || root.Output != "index.json" {
		t.Fatalf("根文档结果不正确：%+v", root)
	}
	if root.ExternalRefs != 3 || root.Triangles != 1 {
		t.Fatalf("根文档统计不正确：%+v", root)
	}

	var idx domain.Index
	readJSON(t, filepath.Join(dir, "index.json"), &idx)
	if idx.Root != "p1" || len(idx.Shells) != 3 || idx.Batches != 2 {
		t.Fatalf("index.json 不正确：%+v", idx)
	}
	if idx.Shells[0].External == nil || idx.Shells[0].External.Href != "shell_s1.json" {
		t.Fatalf("外部 shell href 未改写：%+v", idx.Shells[0])
	}

	var sh domain.Shell
	readJSON(t, filepath.Join(dir, "shell_s1.json"), &sh)
	if sh.Inline == nil || sh.Inline.Size != 1 || len(sh.Inline.ColorsData) != 1 {
		t.Fatalf("shell_s1.json 不正确：%+v", sh.Inline)
	}

	var ann domain.Annotation
	readJSON(t, filepath.Join(dir, "annotation_a1.json"), &ann)
	if ann.Inline == nil || len(ann.Inline.Lines) != 1 || len(ann.Inline.Lines[0]) != 6 {
		t.Fatalf("annotation_a1.json 不正确：%+v", ann)
	}

	// s3(5) -> batch0；s1(1) 与 s2(1) -> batch1。
	if rr.Summary.Batches != 2 || rr.Summary.BatchFailed != 0 {
		t.Fatalf("批次统计不正确：%+v", rr.Batches)
	}
	var b0, b1 struct {
		Shells []domain.Shell `json:"shells"`
	}
	readJSON(t, filepath.Join(dir, "batch0.json"), &b0)
	readJSON(t, filepath.Join(dir, "batch1.json"), &b1)
	if len(b0.Shells) != 1 || b0.Shells[0].ID() != "s3" {
		t.Fatalf("batch0 不正确：%+v", b0)
	}
	if len(b1.Shells) != 2 || b1.Shells[0].ID() != "s1" || b1.Shells[1].ID() != "s2" {
		t.Fatalf("batch1 不正确：%+v", b1)
	}
	for _, s := range append(b0.Shells, b1.Shells...) {
		if s.Inline == nil {
			t.Fatalf("批次内应是完整 shell 记录：%+v", s)
		}
	}
}

func TestExecute_NoBatchesWhenZero(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "index.xml", indexXML)
	writeFixture(t, dir, "shell_s1.xml", sprintf(shellXML, "s1"))
	writeFixture(t, dir, "shell_s3.xml", sprintf(shellXML, "s3"))
	writeFixture(t, dir, "annotation_a1.xml", annotationXML)

	rr := Execute(context.Background(), testConfig(dir, 0))
	if len(rr.Batches) != 0 {
		t.Fatalf("batches=0 不应打批：%+v", rr.Batches)
	}
	if _, err := os.Stat(filepath.Join(dir, "batch0.json")); !os.IsNotExist(err) {
		t.Fatalf("不应写出 batch0.json，Stat err=%v", err)
	}
	b, _ := os.ReadFile(filepath.Join(dir, "index.json"))
	if json.Valid(b) && containsKey(b, "batches") {
		t.Fatalf("batches=0 时 index.json 不应包含 batches：%s", string(b))
	}
}

func TestExecute_ChildFailureIsIsolated(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "index.xml", indexXML)
	// shell_s1.xml 缺失；shell_s3.xml 损坏。
	writeFixture(t, dir, "shell_s3.xml", `<shell id="s3"><verts>`)
	writeFixture(t, dir, "annotation_a1.xml", annotationXML)

	rr := Execute(context.Background(), testConfig(dir, 1))

	root, ok := rr.RootResult()
	if !ok || root.Status != domain.StatusWritten {
		t.Fatalf("子文档失败不应影响根文档：%+v", root)
	}
	codes := map[string]string{}
	for _, f := range rr.Files {
		codes[f.File] = f.ErrorCode
	}
	if codes["shell_s1.xml"] != domain.ErrCodeReadFailed {
		t.Fatalf("缺失的子文档应为 read_failed：%+v", rr.Files)
	}
	if codes["shell_s3.xml"] != domain.ErrCodeParseFailed {
		t.Fatalf("损坏的子文档应为 parse_failed：%+v", rr.Files)
	}
	if _, err := os.Stat(filepath.Join(dir, "annotation_a1.json")); err != nil {
		t.Fatalf("兄弟任务应照常完成：%v", err)
	}
	if rr.Summary.Failed != 2 || rr.Summary.BatchFailed != 1 {
		t.Fatalf("summary 不正确：%+v", rr.Summary)
	}
}

func TestExecute_SingleShellAndUnknown(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "shell_9.xml", sprintf(shellXML, "9"))
	writeFixture(t, dir, "odd.xml", `<drawing id="x"/>`)

	cfg := testConfig(dir, 0)
	cfg.File = "shell_9.xml"
	rr := Execute(context.Background(), cfg)
	root, _ := rr.RootResult()
	if root.Kind != domain.KindShell || root.Status != domain.StatusWritten || root.Triangles != 1 {
		t.Fatalf("shell 根文档结果不正确：%+v", root)
	}
	if _, err := os.Stat(filepath.Join(dir, "shell_9.json")); err != nil {
		t.Fatalf("期望写出 shell_9.json：%v", err)
	}

	cfg.File = "odd.xml"
	rr = Execute(context.Background(), cfg)
	root, _ = rr.RootResult()
	if root.Status != domain.StatusUnknown || root.ErrorCode != domain.ErrCodeUnknownType || root.Output != "" {
		t.Fatalf("未知类型结果不正确：%+v", root)
	}
	if _, err := os.Stat(filepath.Join(dir, "odd.json")); !os.IsNotExist(err) {
		t.Fatalf("未知类型不应输出文件，Stat err=%v", err)
	}
}

func TestExecute_RootReadFailure(t *testing.T) {
	rr := Execute(context.Background(), testConfig(t.TempDir(), 0))
	root, ok := rr.RootResult()
	if !ok || root.Status != domain.StatusFailed || root.ErrorCode != domain.ErrCodeReadFailed {
		t.Fatalf("根文档读取失败结果不正确：%+v", root)
	}
}

func TestOutputName(t *testing.T) {
	cases := map[string]string{
		"index.xml":   "index.json",
		"shell_3.xml": "shell_3.json",
		"model.step":  "model.step.json",
	}
	for in, want := range cases {
		if got := outputName(in); got != want {
			t.Fatalf("outputName(%q)=%q，期望 %q", in, got, want)
		}
	}
}
