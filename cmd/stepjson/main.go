package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/John-Robertt/stepjson/internal/app/run"
	"github.com/John-Robertt/stepjson/internal/config"
	"github.com/John-Robertt/stepjson/internal/domain"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	os.Exit(runMain(os.Args, os.Stdout, os.Stderr))
}

// runMain 返回进程退出码：
// 0 成功（含未知文档类型）；1 根文档或其批次失败；2 参数/配置错误。
func runMain(args []string, stdout, stderr io.Writer) int {
	code := exitOK
	app := newApp(stdout, stderr, &code)
	if err := app.Run(args); err != nil {
		fmt.Fprintf(stderr, "参数错误：%v\n", err)
		return exitUsage
	}
	return code
}

func newApp(stdout, stderr io.Writer, exitCode *int) *cli.App {
	return &cli.App{
		Name:      "stepjson",
		Usage:     "把 STEP-tools 导出的 XML 场景树转换为紧凑的 JSON",
		UsageText: "stepjson [-d dir] [-f file] [-b batches] [options]",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Value: config.DefaultDir, Usage: "输入/输出目录"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Value: config.DefaultFile, Usage: "根文档文件名（相对 dir）"},
			&cli.IntFlag{Name: "batches", Aliases: []string{"b"}, Value: 0, Usage: "期望批次数；0 表示不打批"},
			&cli.IntFlag{Name: "concurrency", Value: config.DefaultConcurrency, Usage: "外部 shell 子文档的并发上限"},
			&cli.BoolFlag{Name: "index-points", Value: true, Usage: "顶点坐标写成数值表下标"},
			&cli.BoolFlag{Name: "index-normals", Value: true, Usage: "法线写成数值表下标"},
			&cli.BoolFlag{Name: "compress-colors", Value: true, Usage: "颜色写成游程"},
			&cli.IntFlag{Name: "precision", Value: config.DefaultRoundPrecision, Usage: "取整的小数位数；0 表示不取整"},
			&cli.BoolFlag{Name: "gzip-batches", Usage: "额外写出 batch<N>.json.gz"},
			&cli.StringFlag{Name: "log-level", Value: config.DefaultLogLevel, Usage: "日志级别：debug|info|warn|error"},
			&cli.StringFlag{Name: "log-format", Value: config.DefaultLogFormat, Usage: "日志格式：text|json"},
		},
		Action: func(c *cli.Context) error {
			*exitCode = convert(c, stdout, stderr)
			return nil
		},
	}
}

func cliArgs(c *cli.Context) config.CLIArgs {
	return config.CLIArgs{
		Dir:               c.String("dir"),
		DirSet:            c.IsSet("dir"),
		File:              c.String("file"),
		FileSet:           c.IsSet("file"),
		Batches:           c.Int("batches"),
		BatchesSet:        c.IsSet("batches"),
		Concurrency:       c.Int("concurrency"),
		ConcurrencySet:    c.IsSet("concurrency"),
		IndexPoints:       c.Bool("index-points"),
		IndexPointsSet:    c.IsSet("index-points"),
		IndexNormals:      c.Bool("index-normals"),
		IndexNormalsSet:   c.IsSet("index-normals"),
		CompressColors:    c.Bool("compress-colors"),
		CompressColorsSet: c.IsSet("compress-colors"),
		RoundPrecision:    c.Int("precision"),
		RoundPrecisionSet: c.IsSet("precision"),
		GzipBatches:       c.Bool("gzip-batches"),
		GzipBatchesSet:    c.IsSet("gzip-batches"),
		LogLevel:          c.String("log-level"),
		LogLevelSet:       c.IsSet("log-level"),
		LogFormat:         c.String("log-format"),
		LogFormatSet:      c.IsSet("log-format"),
	}
}

func convert(c *cli.Context, stdout, stderr io.Writer) int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return exitFailed
	}

	ca := cliArgs(c)
	eff, err := config.LoadEffective(cwd, ca)
	if err != nil {
		fmt.Fprintf(stderr, "配置错误：%v\n", err)
		emitReport(stdout, stderr, reportForConfigError(ca, err))
		return exitUsage
	}

	log := newLogger(stderr, eff)
	if eff.ConfigPath != "" {
		log.WithField("config", eff.ConfigPath).Debug("已读取配置文件")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rr := run.ExecuteWithObserver(ctx, eff, newLogObserver(log))
	emitReport(stdout, stderr, rr)
	return exitCodeFor(rr)
}

func exitCodeFor(rr domain.RunReport) int {
	root, ok := rr.RootResult()
	if !ok || root.Status == domain.StatusFailed || rr.Summary.BatchFailed > 0 {
		return exitFailed
	}
	return exitOK
}

func newLogger(w io.Writer, eff config.EffectiveConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(eff.LogLevel)
	if eff.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: !isTTY(w)})
	}
	return log
}

func emitReport(stdout, stderr io.Writer, rr domain.RunReport) {
	if isTTY(stdout) {
		fmt.Fprintf(stdout, "完成：written=%d unknown=%d failed=%d batches=%d batch_failed=%d\n",
			rr.Summary.Written, rr.Summary.Unknown, rr.Summary.Failed, rr.Summary.Batches, rr.Summary.BatchFailed,
		)
		for _, f := range rr.Files {
			if f.Status == domain.StatusFailed {
				fmt.Fprintf(stderr, "%s %s: %s\n", f.File, f.ErrorCode, f.ErrorMsg)
			}
		}
		for _, b := range rr.Batches {
			if b.Status == domain.StatusFailed {
				fmt.Fprintf(stderr, "%s %s: %s\n", b.Name, domain.ErrCodeBatchFailed, b.ErrorMsg)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(stderr, "完成：written=%d unknown=%d failed=%d batches=%d batch_failed=%d\n",
		rr.Summary.Written, rr.Summary.Unknown, rr.Summary.Failed, rr.Summary.Batches, rr.Summary.BatchFailed,
	)
}

func reportForConfigError(ca config.CLIArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	file := config.DefaultFile
	if ca.FileSet {
		file = ca.File
	}
	rr := domain.RunReport{
		Dir:        ca.Dir,
		File:       file,
		StartedAt:  now,
		FinishedAt: now,
		Files: []domain.FileResult{{
			File:      file,
			Kind:      domain.KindUnknown,
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
