package domain

import (
	"encoding/json"
	"fmt"
)

// IdentityToken 是单位变换在 JSON 中的紧凑写法。
const IdentityToken = "I"

// Product 对应 <product>：产品结构树的一个节点。构建后不再修改。
type Product struct {
	ID       string   `json:"id"`
	Step     string   `json:"step"`
	Name     string   `json:"name"`
	Children []string `json:"children,omitempty"`
	Shapes   []string `json:"shapes,omitempty"`
}

// Shape 对应 <shape>。
//
// 结构是统一的：children / shells / annotations 三个列表总是输出（可能为空）。
// 只有 annotations 的 shape 也是合法的（叶子实例）。
type Shape struct {
	ID          string     `json:"id"`
	Shells      []string   `json:"shells"`
	Annotations []string   `json:"annotations"`
	Children    []ChildRef `json:"children"`
}

// ChildRef 引用一个子 shape/product，并带上相对变换。
type ChildRef struct {
	Ref   string    `json:"ref"`
	Xform Transform `json:"xform"`
}

// Transform 要么是单位变换（序列化为 "I"），要么是按行主序的 4x4 矩阵值。
//
// 不变量：Values 恰好等于单位矩阵时不会以数组形式出现（由构造方负责规范化）。
type Transform struct {
	Identity bool
	Values   []float64
}

// Identity 返回单位变换。
func Identity() Transform { return Transform{Identity: true} }

func (t Transform) MarshalJSON() ([]byte, error) {
	if t.Identity {
		return json.Marshal(IdentityToken)
	}
	if t.Values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.Values)
}

func (t *Transform) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s != IdentityToken {
			return fmt.Errorf("未知的 xform 字符串：%q", s)
		}
		*t = Identity()
		return nil
	}
	var vals []float64
	if err := json.Unmarshal(b, &vals); err != nil {
		return err
	}
	*t = Transform{Values: vals}
	return nil
}
