package translate

import (
	"github.com/John-Robertt/stepjson/internal/domain"
)

var identityMatrix = [16]float64{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// ParseTransform 规范化 xform 属性：值恰好等于单位矩阵时返回单位变换，
// 否则返回按原顺序解析出的浮点数组。
func ParseTransform(s string) (domain.Transform, error) {
	vals, err := parseFloats(s)
	if err != nil {
		return domain.Transform{}, err
	}
	if isIdentity(vals) {
		return domain.Identity(), nil
	}
	return domain.Transform{Values: vals}, nil
}

func isIdentity(vals []float64) bool {
	if len(vals) != len(identityMatrix) {
		return false
	}
	for i, v := range vals {
		if v != identityMatrix[i] {
			return false
		}
	}
	return true
}
