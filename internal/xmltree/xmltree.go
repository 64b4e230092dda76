// Package xmltree 把 XML 文档读成一棵可按元素名/属性查询的树。
//
// 节点使用 x/net/html 的 ElementNode 表示（元素名、属性名原样保留），
// 查询统一走 goquery/cascadia 选择器；不经过 HTML 解析器，所以自闭合标签、
// <p> 等元素都按 XML 语义嵌套。
package xmltree

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Document 是解析后的文档树。
type Document struct {
	*goquery.Document
	root *html.Node
}

// ParseError 表示文档无法解析（不是合法 XML，或没有根元素）。
type ParseError struct {
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("XML 解析失败（offset=%d）：%v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError 判断 err 是否为 *ParseError。
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// ParseBytes 解析内存中的 XML。
func ParseBytes(b []byte) (*Document, error) {
	return Parse(bytes.NewReader(b))
}

// Parse 读取整棵 XML 树。只保留元素与属性；文本、注释、处理指令都被忽略。
// 非 UTF-8 编码按 XML 声明中的 encoding 转换。
func Parse(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	doc := &html.Node{Type: html.DocumentNode}
	cur := doc
	var root *html.Node

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Offset: dec.InputOffset(), Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if cur == doc && root != nil {
				return nil, &ParseError{Offset: dec.InputOffset(), Err: errors.Errorf("多个根元素：<%s> 与 <%s>", root.Data, t.Name.Local)}
			}
			n := &html.Node{Type: html.ElementNode, Data: t.Name.Local}
			if len(t.Attr) > 0 {
				n.Attr = make([]html.Attribute, 0, len(t.Attr))
				for _, a := range t.Attr {
					n.Attr = append(n.Attr, html.Attribute{Namespace: a.Name.Space, Key: a.Name.Local, Val: a.Value})
				}
			}
			cur.AppendChild(n)
			if cur == doc {
				root = n
			}
			cur = n
		case xml.EndElement:
			// decoder 已保证起止标签配对。
			cur = cur.Parent
		}
	}

	if root == nil {
		return nil, &ParseError{Offset: dec.InputOffset(), Err: errors.New("文档没有根元素")}
	}
	return &Document{Document: goquery.NewDocumentFromNode(doc), root: root}, nil
}

// Root 返回根元素。
func (d *Document) Root() *goquery.Selection {
	return d.Document.FindNodes(d.root)
}

// RootName 返回根元素名（例如 step-assembly、shell、annotation）。
func (d *Document) RootName() string { return d.root.Data }

// Each 依次访问 sel 中的每个节点；fn 返回错误时立即停止并返回该错误。
func Each(sel *goquery.Selection, fn func(i int, s *goquery.Selection) error) error {
	for i := range sel.Nodes {
		if err := fn(i, sel.Eq(i)); err != nil {
			return err
		}
	}
	return nil
}
