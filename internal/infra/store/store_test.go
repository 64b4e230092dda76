package store

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestStore_WriteJSONAndRead(t *testing.T) {
	s := New(t.TempDir(), false)

	if err := s.WriteJSON("index.json", map[string]any{"root": "p1"}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, err := s.Read("index.json")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if string(b) != `{"root":"p1"}` {
		t.Fatalf("内容不一致：%q", string(b))
	}

	// 带子目录的文件名。
	if err := s.WriteJSON("sub/shell_1.json", []int{1}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Dir, "sub", "shell_1.json")); err != nil {
		t.Fatalf("期望文件存在：%v", err)
	}
}

func TestStore_PathRejectsEscape(t *testing.T) {
	s := New(t.TempDir(), false)
	for _, name := range []string{"", "..", "../x.json", "a/../../x.json", "/etc/passwd"} {
		if _, err := s.Path(name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("期望 ErrInvalidName（%q），实际：%v", name, err)
		}
	}
	if _, err := s.Path("a/../b.json"); err != nil {
		t.Fatalf("目录内路径应合法：%v", err)
	}
}

func TestStore_ReadShell(t *testing.T) {
	s := New(t.TempDir(), false)
	if err := s.WriteJSON("shell_s1.json", map[string]any{"id": "s1"}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, err := s.ReadShell("s1")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !bytes.Contains(b, []byte(`"s1"`)) {
		t.Fatalf("内容不一致：%q", string(b))
	}

	if _, err := s.ReadShell("missing"); !os.IsNotExist(err) {
		t.Fatalf("期望 not exist，实际：%v", err)
	}
	if _, err := s.ReadShell("../x"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("期望 ErrInvalidName，实际：%v", err)
	}
}

func TestStore_WriteBatchGzip(t *testing.T) {
	data := []byte(`{"shells":[]}`)

	plain := New(t.TempDir(), false)
	if err := plain.WriteBatch("batch0.json", data); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := os.Stat(filepath.Join(plain.Dir, "batch0.json.gz")); !os.IsNotExist(err) {
		t.Fatalf("未开启 gzip 不应写 .gz，Stat err=%v", err)
	}

	zs := New(t.TempDir(), true)
	if err := zs.WriteBatch("batch0.json", data); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	f, err := os.Open(filepath.Join(zs.Dir, "batch0.json.gz"))
	if err != nil {
		t.Fatalf("期望 .gz 存在：%v", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader 失败：%v", err)
	}
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("解压失败：%v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("解压内容不一致：%q", string(got))
	}
	if zr.Name != "batch0.json" {
		t.Fatalf("gzip 头部文件名不一致：%q", zr.Name)
	}
}
