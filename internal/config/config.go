// Package config 把 CLI 参数与 <dir> 下可选的配置文件合并为一次运行的最终配置。
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeConflict 表示 <dir> 下同时存在多个配置文件，无法确定以哪个为准。
	ErrCodeConflict = "config_conflict"
)

const (
	DefaultDir            = "."
	DefaultFile           = "index.xml"
	DefaultConcurrency    = 8
	DefaultRoundPrecision = 2
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"

	maxConcurrency    = 64
	maxRoundPrecision = 15
)

// FileNames 是按顺序探测的配置文件名（位于 <dir> 下，最多存在一个）。
var FileNames = []string{"stepjson.json", "stepjson.yaml", "stepjson.toml"}

// CLIArgs 保留每个参数“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --compress-colors=false 必须能覆盖配置文件中的 true。
type CLIArgs struct {
	Dir    string
	DirSet bool

	File    string
	FileSet bool

	Batches    int
	BatchesSet bool

	Concurrency    int
	ConcurrencySet bool

	IndexPoints    bool
	IndexPointsSet bool

	IndexNormals    bool
	IndexNormalsSet bool

	CompressColors    bool
	CompressColorsSet bool

	RoundPrecision    int
	RoundPrecisionSet bool

	GzipBatches    bool
	GzipBatchesSet bool

	LogLevel    string
	LogLevelSet bool

	LogFormat    string
	LogFormatSet bool
}

// FileConfig 对应 stepjson.{json,yaml,toml}。指针字段区分“未写”和“写了零值”。
type FileConfig struct {
	File           string `json:"file" yaml:"file" toml:"file"`
	Batches        *int   `json:"batches" yaml:"batches" toml:"batches"`
	Concurrency    int    `json:"concurrency" yaml:"concurrency" toml:"concurrency"`
	IndexPoints    *bool  `json:"indexPoints" yaml:"indexPoints" toml:"indexPoints"`
	IndexNormals   *bool  `json:"indexNormals" yaml:"indexNormals" toml:"indexNormals"`
	CompressColors *bool  `json:"compressColors" yaml:"compressColors" toml:"compressColors"`
	RoundPrecision *int   `json:"roundPrecision" yaml:"roundPrecision" toml:"roundPrecision"`
	GzipBatches    *bool  `json:"gzipBatches" yaml:"gzipBatches" toml:"gzipBatches"`
	LogLevel       string `json:"logLevel" yaml:"logLevel" toml:"logLevel"`
	LogFormat      string `json:"logFormat" yaml:"logFormat" toml:"logFormat"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置。进程启动时确定，运行期不变。
type EffectiveConfig struct {
	// Dir 是输入/输出目录（绝对路径）。
	Dir string
	// File 是根文档文件名（相对 Dir）。
	File string
	// Batches 是期望批次数；0 表示不打批。
	Batches int

	Concurrency int

	IndexPoints    bool
	IndexNormals   bool
	CompressColors bool
	RoundPrecision int

	GzipBatches bool

	LogLevel  logrus.Level
	LogFormat string

	// ConfigPath 是实际读取的配置文件（没有则为空）。
	ConfigPath string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeConflict:
		return fmt.Sprintf("%s：目录 %q 下存在多个配置文件：%v", e.Code, e.Path, e.Err)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取 <dir> 下的配置文件（可选），然后与 CLI 参数合并为最终配置。
//
// 覆盖优先级（固定）：CLI 显式指定 > 配置文件 > 内置默认值。
// dir 本身只来自 CLI（默认 "."，相对 cwd 解析）。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	dir := DefaultDir
	if cli.DirSet && strings.TrimSpace(cli.Dir) != "" {
		dir = cli.Dir
	}
	absDir := absCleanFrom(cwdAbs, dir)

	cfgPath, err := findFileConfig(absDir)
	if err != nil {
		return EffectiveConfig{}, err
	}
	var fc FileConfig
	if cfgPath != "" {
		if fc, err = readFileConfig(cfgPath); err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}

	eff, err := merge(absDir, cli, fc)
	if err != nil {
		where := cfgPath
		if where == "" {
			where = absDir
		}
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: where, Err: err}
	}
	eff.ConfigPath = cfgPath
	return eff, nil
}

func merge(absDir string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	file := DefaultFile
	if cli.FileSet {
		file = cli.File
	} else if strings.TrimSpace(fc.File) != "" {
		file = fc.File
	}
	file = strings.TrimSpace(file)
	if file == "" {
		return EffectiveConfig{}, fmt.Errorf("file 不能为空")
	}
	if filepath.IsAbs(file) {
		return EffectiveConfig{}, fmt.Errorf("file 必须是相对 dir 的路径，实际是 %q", file)
	}

	batches := pickInt(cli.BatchesSet, cli.Batches, fc.Batches, 0)
	if batches < 0 {
		return EffectiveConfig{}, fmt.Errorf("batches 不能为负数，实际是 %d", batches)
	}

	concurrency := fc.Concurrency
	if cli.ConcurrencySet {
		concurrency = cli.Concurrency
	}
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 超出范围截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > maxConcurrency {
		concurrency = maxConcurrency
	}

	precision := pickInt(cli.RoundPrecisionSet, cli.RoundPrecision, fc.RoundPrecision, DefaultRoundPrecision)
	if precision < 0 || precision > maxRoundPrecision {
		return EffectiveConfig{}, fmt.Errorf("roundPrecision 必须在 [0, %d]，实际是 %d", maxRoundPrecision, precision)
	}

	levelName := pickString(cli.LogLevelSet, cli.LogLevel, fc.LogLevel, DefaultLogLevel)
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return EffectiveConfig{}, fmt.Errorf("logLevel 无效：%w", err)
	}

	format := strings.ToLower(pickString(cli.LogFormatSet, cli.LogFormat, fc.LogFormat, DefaultLogFormat))
	switch format {
	case "text", "json":
	default:
		return EffectiveConfig{}, fmt.Errorf("logFormat 只能是 text 或 json，实际是 %q", format)
	}

	return EffectiveConfig{
		Dir:            absDir,
		File:           file,
		Batches:        batches,
		Concurrency:    concurrency,
		IndexPoints:    pickBool(cli.IndexPointsSet, cli.IndexPoints, fc.IndexPoints, true),
		IndexNormals:   pickBool(cli.IndexNormalsSet, cli.IndexNormals, fc.IndexNormals, true),
		CompressColors: pickBool(cli.CompressColorsSet, cli.CompressColors, fc.CompressColors, true),
		RoundPrecision: precision,
		GzipBatches:    pickBool(cli.GzipBatchesSet, cli.GzipBatches, fc.GzipBatches, false),
		LogLevel:       level,
		LogFormat:      format,
	}, nil
}

func pickBool(set, cli bool, file *bool, def bool) bool {
	if set {
		return cli
	}
	if file != nil {
		return *file
	}
	return def
}

func pickInt(set bool, cli int, file *int, def int) int {
	if set {
		return cli
	}
	if file != nil {
		return *file
	}
	return def
}

func pickString(set bool, cli, file, def string) string {
	if set && strings.TrimSpace(cli) != "" {
		return strings.TrimSpace(cli)
	}
	if strings.TrimSpace(file) != "" {
		return strings.TrimSpace(file)
	}
	return def
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// findFileConfig 返回 dir 下存在的配置文件路径；都不存在返回空串，多于一个返回 ErrCodeConflict。
func findFileConfig(dir string) (string, error) {
	var found []string
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		fi, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", &Error{Code: ErrCodeInvalid, Path: p, Err: err}
		}
		if fi.IsDir() {
			return "", &Error{Code: ErrCodeInvalid, Path: p, Err: fmt.Errorf("期望文件，实际是目录")}
		}
		found = append(found, name)
	}
	switch len(found) {
	case 0:
		return "", nil
	case 1:
		return filepath.Join(dir, found[0]), nil
	default:
		return "", &Error{Code: ErrCodeConflict, Path: dir, Err: fmt.Errorf("%s", strings.Join(found, ", "))}
	}
}

// readFileConfig 按扩展名选择解码器读取配置文件。
func readFileConfig(path string) (FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, err
	}
	var fc FileConfig
	switch filepath.Ext(path) {
	case ".yaml":
		err = yaml.Unmarshal(b, &fc)
	case ".toml":
		err = toml.Unmarshal(b, &fc)
	default:
		err = json.Unmarshal(b, &fc)
	}
	if err != nil {
		return FileConfig{}, err
	}
	return fc, nil
}
