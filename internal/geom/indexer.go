// Package geom 实现网格几何的编码：数值去重索引与颜色游程压缩。
package geom

import "math"

// Round 把 v 按 precision 位小数取整，返回放大后的整数值 round(v*10^precision)。
// precision <= 0 时不取整，原样返回。
//
// 取整规则是“四舍五入向正无穷”（floor(x+0.5)），与下游解码器约定一致。
func Round(v float64, precision int) float64 {
	if precision <= 0 {
		return v
	}
	r := math.Floor(v*math.Pow10(precision) + 0.5)
	if r == 0 {
		// -0 与 0 视为同一个值，且不输出 "-0"。
		return 0
	}
	return r
}

// Indexer 是单个 shell 的去重数值表（points 与 normals 共享）。
//
// 语义等价于“线性扫描取第一个相等值，否则追加”：每个取整后的值只会插入一次，
// 所以用 map 记录首次位置不会改变任何下标分配。
type Indexer struct {
	precision int
	values    []float64
	pos       map[float64]int
}

func NewIndexer(precision int) *Indexer {
	if precision < 0 {
		precision = 0
	}
	return &Indexer{
		precision: precision,
		values:    make([]float64, 0, 64),
		pos:       make(map[float64]int, 64),
	}
}

// IndexOf 返回 raw 取整后的值在表中的下标；不存在则追加。
func (x *Indexer) IndexOf(raw float64) int {
	v := Round(raw, x.precision)
	if v == 0 {
		v = 0
	}
	if i, ok := x.pos[v]; ok {
		return i
	}
	// NaN 永远不相等：与线性扫描一致，每次都追加。
	i := len(x.values)
	x.values = append(x.values, v)
	if v == v {
		x.pos[v] = i
	}
	return i
}

// IndexAll 按顺序索引 raw，返回等长的下标数组（raw 为空时返回非 nil 的空切片）。
func (x *Indexer) IndexAll(raw []float64) []int {
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		out = append(out, x.IndexOf(v))
	}
	return out
}

// Values 返回共享数值表（按插入顺序）。调用方不应修改。
func (x *Indexer) Values() []float64 { return x.values }

func (x *Indexer) Len() int { return len(x.values) }

func (x *Indexer) Precision() int { return x.precision }

// Decode 把表中的放大值还原为取整后的实际值。
func (x *Indexer) Decode(i int) float64 {
	v := x.values[i]
	if x.precision <= 0 {
		return v
	}
	return v / math.Pow10(x.precision)
}
