package domain

import (
	"encoding/json"
	"errors"
)

// Shell 是 shell 记录的标签变体：Inline 与 External 恰好一个非空。
// 在翻译时一次性决定，下游不再重复判断 href/几何是否存在。
type Shell struct {
	Inline   *InlineShell
	External *ExternalShell
}

var errEmptyShell = errors.New("domain: shell 既不是 inline 也不是 external")

func (s Shell) ID() string {
	switch {
	case s.External != nil:
		return s.External.ID
	case s.Inline != nil:
		return s.Inline.ID
	default:
		return ""
	}
}

// Size 是三角形数量（external 取自 size 属性）。
func (s Shell) Size() int {
	switch {
	case s.External != nil:
		return s.External.Size
	case s.Inline != nil:
		return s.Inline.Size
	default:
		return 0
	}
}

func (s Shell) IsExternal() bool { return s.External != nil }

func (s Shell) MarshalJSON() ([]byte, error) {
	switch {
	case s.External != nil:
		return json.Marshal(s.External)
	case s.Inline != nil:
		return json.Marshal(s.Inline)
	default:
		return nil, errEmptyShell
	}
}

func (s *Shell) UnmarshalJSON(b []byte) error {
	var probe struct {
		Href *string `json:"href"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	if probe.Href != nil {
		var ext ExternalShell
		if err := json.Unmarshal(b, &ext); err != nil {
			return err
		}
		*s = Shell{External: &ext}
		return nil
	}
	var in InlineShell
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*s = Shell{Inline: &in}
	return nil
}

// ExternalShell 指向同目录下单独编码的 shell 文件。
type ExternalShell struct {
	ID   string    `json:"id"`
	Size int       `json:"size"`
	BBox []float64 `json:"bbox"`
	Href string    `json:"href"`
}

// InlineShell 是编码后的网格。
//
// 各组字段按配置二选一：{Points, PointsIndex}、{Normals, NormalsIndex}、{Colors, ColorsData}。
// nil 表示“未产出、不输出”；非 nil 的空切片输出为 []。
//
// 不变量（产出时）：
//   - len(PointsIndex) == len(NormalsIndex) == 9*Size
//   - sum(ColorsData[i].Duration) == 3*Size
//
// Values 存放的是放大后的整数值 round(v*10^Precision)；Precision 为 0 时存原值。
type InlineShell struct {
	ID   string
	Size int

	Points  []float64
	Normals []float64
	Colors  []float64

	Values    []float64
	Precision int

	PointsIndex  []int
	NormalsIndex []int
	ColorsData   []ColorRun
}

// ColorRun 是一段连续同色顶点：颜色分量在 [0,1]。
type ColorRun struct {
	Data     [3]float64 `json:"data"`
	Duration int        `json:"duration"`
}

// inlineShellJSON 固定输出字段顺序；指针区分“不输出”和“输出空数组”。
type inlineShellJSON struct {
	ID           string      `json:"id"`
	Size         int         `json:"size"`
	Points       *[]float64  `json:"points,omitempty"`
	Normals      *[]float64  `json:"normals,omitempty"`
	Colors       *[]float64  `json:"colors,omitempty"`
	Values       *[]float64  `json:"values,omitempty"`
	Precision    int         `json:"precision,omitempty"`
	PointsIndex  *[]int      `json:"pointsIndex,omitempty"`
	NormalsIndex *[]int      `json:"normalsIndex,omitempty"`
	ColorsData   *[]ColorRun `json:"colorsData,omitempty"`
}

func (s InlineShell) MarshalJSON() ([]byte, error) {
	return json.Marshal(inlineShellJSON{
		ID:           s.ID,
		Size:         s.Size,
		Points:       optional(s.Points),
		Normals:      optional(s.Normals),
		Colors:       optional(s.Colors),
		Values:       optional(s.Values),
		Precision:    s.Precision,
		PointsIndex:  optional(s.PointsIndex),
		NormalsIndex: optional(s.NormalsIndex),
		ColorsData:   optional(s.ColorsData),
	})
}

func (s *InlineShell) UnmarshalJSON(b []byte) error {
	var w inlineShellJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = InlineShell{
		ID:           w.ID,
		Size:         w.Size,
		Points:       deref(w.Points),
		Normals:      deref(w.Normals),
		Colors:       deref(w.Colors),
		Values:       deref(w.Values),
		Precision:    w.Precision,
		PointsIndex:  deref(w.PointsIndex),
		NormalsIndex: deref(w.NormalsIndex),
		ColorsData:   deref(w.ColorsData),
	}
	return nil
}

func optional[T any](s []T) *[]T {
	if s == nil {
		return nil
	}
	return &s
}

func deref[T any](p *[]T) []T {
	if p == nil {
		return nil
	}
	if *p == nil {
		return []T{}
	}
	return *p
}
