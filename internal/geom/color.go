package geom

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/John-Robertt/stepjson/internal/domain"
)

// RGB 的三个分量都在 [0,1]。
type RGB [3]float64

// DefaultColor 是 shell 与 facet 都没有指定颜色时的灰色（7d7d7d）。
var DefaultColor = RGB{0x7d / 255.0, 0x7d / 255.0, 0x7d / 255.0}

// ParseHexColor 解析 8 位十六进制 RGB（如 "ff8000"，允许前导 '#'），每个分量为 channel/255。
func ParseHexColor(s string) (RGB, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if h == "" {
		return RGB{}, errors.Errorf("颜色为空：%q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, errors.Wrapf(err, "无效颜色 %q", s)
	}
	return RGB{
		float64((v>>16)&0xff) / 255,
		float64((v>>8)&0xff) / 255,
		float64(v&0xff) / 255,
	}, nil
}

// CompressColors 把逐顶点的扁平 RGB 数组压缩成颜色游程。
//
// 相邻顶点颜色三个分量完全相等（不取整）才合并；最后一段总会输出，哪怕只有一个顶点。
// 空输入返回空列表。
func CompressColors(colors []float64) []domain.ColorRun {
	n := len(colors) / 3
	runs := make([]domain.ColorRun, 0, 4)
	if n == 0 {
		return runs
	}

	start := 0
	last := tuple(colors, 0)
	for t := 1; t < n; t++ {
		cur := tuple(colors, t)
		if cur != last {
			runs = append(runs, domain.ColorRun{Data: last, Duration: t - start})
			start = t
			last = cur
		}
	}
	return append(runs, domain.ColorRun{Data: last, Duration: n - start})
}

// ExpandColors 是 CompressColors 的逆变换。
func ExpandColors(runs []domain.ColorRun) []float64 {
	total := 0
	for _, r := range runs {
		total += r.Duration
	}
	out := make([]float64, 0, total*3)
	for _, r := range runs {
		for i := 0; i < r.Duration; i++ {
			out = append(out, r.Data[0], r.Data[1], r.Data[2])
		}
	}
	return out
}

func tuple(colors []float64, t int) [3]float64 {
	i := t * 3
	return [3]float64{colors[i], colors[i+1], colors[i+2]}
}
