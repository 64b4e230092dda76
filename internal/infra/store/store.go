// Package store 管理输出目录：JSON 文档与批次文件都写在输入目录下，文件名由调用方决定。
package store

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/John-Robertt/stepjson/internal/infra/fsx"
)

// Store 提供 <dir> 下的读写。
//
// 约束：
// - 所有写入都是原子的（临时文件 + rename），批次打包不会读到半截文件
// - 文件名只能落在 <dir> 之内
type Store struct {
	Dir string
	// Gzip 为 true 时，WriteBatch 额外写出同名 .gz 副本。
	Gzip bool
}

// ErrInvalidName 表示文件名或 shell id 会逃出输出目录。
var ErrInvalidName = errors.New("store: 非法文件名")

func New(dir string, gzipBatches bool) Store {
	return Store{
		Dir:  filepath.Clean(strings.TrimSpace(dir)),
		Gzip: gzipBatches,
	}
}

// Path 返回 name 在输出目录中的绝对路径（name 可以带子目录，但不能逃出 Dir）。
func (s Store) Path(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", errors.Wrapf(ErrInvalidName, "%q", name)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.Wrapf(ErrInvalidName, "%q", name)
	}
	return filepath.Join(s.Dir, clean), nil
}

// Read 读取输出目录下的文件（输入文档与输出文件在同一目录）。
func (s Store) Read(name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// WriteJSON 把 v 编码为紧凑 JSON 并原子写入 name。
func (s Store) WriteJSON(name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "编码 %s 失败", name)
	}
	return s.write(name, b)
}

// WriteBatch 原子写入批次文件；开启 Gzip 时再写一份 <name>.gz。
func (s Store) WriteBatch(name string, data []byte) error {
	if err := s.write(name, data); err != nil {
		return err
	}
	if !s.Gzip {
		return nil
	}
	path, err := s.Path(name + ".gz")
	if err != nil {
		return err
	}
	return fsx.WriteAtomic(filepath.Dir(path), filepath.Base(path), func(w io.Writer) error {
		zw, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
		if err != nil {
			return err
		}
		zw.Name = filepath.Base(name)
		if _, err := zw.Write(data); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	})
}

var shellIDRE = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// ShellName 返回外部 shell 翻译后的文件名 shell_<id>.json。
func ShellName(id string) (string, error) {
	// 最小约束：避免路径穿越；id 来自受信任的导出器，这里不做更多“聪明”处理。
	if !shellIDRE.MatchString(id) || strings.Contains(id, "..") {
		return "", errors.Wrapf(ErrInvalidName, "shell id %q", id)
	}
	return "shell_" + id + ".json", nil
}

// ReadShell 读取已写出的 shell_<id>.json。
func (s Store) ReadShell(id string) ([]byte, error) {
	name, err := ShellName(id)
	if err != nil {
		return nil, err
	}
	return s.Read(name)
}

func (s Store) write(name string, data []byte) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), data)
}
