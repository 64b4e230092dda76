// Package translate 把 STEP-tools XML 场景树翻译为紧凑的 JSON 记录。
//
// 输入模式是受信任的：缺少必填属性直接返回 *AttrError，不做防御性修补。
package translate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// AttrError 表示节点缺少必填属性，或属性值无法按约定解析。
type AttrError struct {
	Elem string
	ID   string
	Attr string
	Err  error
}

func (e *AttrError) Error() string {
	where := "<" + e.Elem + ">"
	if e.ID != "" {
		where = fmt.Sprintf("<%s id=%q>", e.Elem, e.ID)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s 缺少属性 %q", where, e.Attr)
	}
	return fmt.Sprintf("%s 属性 %q 无效：%v", where, e.Attr, e.Err)
}

func (e *AttrError) Unwrap() error { return e.Err }

// IsAttrError 判断 err 是否为 *AttrError。
func IsAttrError(err error) bool {
	var ae *AttrError
	return errors.As(err, &ae)
}

func attrErr(s *goquery.Selection, name string, err error) *AttrError {
	id, _ := s.Attr("id")
	return &AttrError{Elem: goquery.NodeName(s), ID: id, Attr: name, Err: err}
}

// attr 读取必填属性。
func attr(s *goquery.Selection, name string) (string, error) {
	v, ok := s.Attr(name)
	if !ok {
		return "", attrErr(s, name, nil)
	}
	return v, nil
}

// floatsAttr 读取必填属性并按空白切分为浮点数。
func floatsAttr(s *goquery.Selection, name string) ([]float64, error) {
	v, err := attr(s, name)
	if err != nil {
		return nil, err
	}
	out, err := parseFloats(v)
	if err != nil {
		return nil, attrErr(s, name, err)
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// splitIDs 按空白切分 id 列表；空串得到空列表（非 nil）。
func splitIDs(s string) []string {
	f := strings.Fields(s)
	if f == nil {
		return []string{}
	}
	return f
}
