package translate

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/stepjson/internal/domain"
	"github.com/John-Robertt/stepjson/internal/xmltree"
)

// Product 翻译 <product>：id/step/name 必填；children 存在即输出，shape 非空才输出 shapes。
func Product(s *goquery.Selection) (domain.Product, error) {
	var p domain.Product
	var err error
	if p.ID, err = attr(s, "id"); err != nil {
		return domain.Product{}, err
	}
	if p.Step, err = attr(s, "step"); err != nil {
		return domain.Product{}, err
	}
	if p.Name, err = attr(s, "name"); err != nil {
		return domain.Product{}, err
	}
	if v, ok := s.Attr("children"); ok {
		p.Children = splitIDs(v)
	}
	if v, ok := s.Attr("shape"); ok && v != "" {
		p.Shapes = splitIDs(v)
	}
	return p, nil
}

// Shape 翻译 <shape>：直接子元素 <child> 成为 {ref, xform}；annotation/shell 属性切分为 id 列表。
func Shape(s *goquery.Selection) (domain.Shape, error) {
	id, err := attr(s, "id")
	if err != nil {
		return domain.Shape{}, err
	}
	out := domain.Shape{
		ID:          id,
		Shells:      []string{},
		Annotations: []string{},
		Children:    []domain.ChildRef{},
	}

	err = xmltree.Each(s.ChildrenFiltered("child"), func(_ int, c *goquery.Selection) error {
		ref, err := attr(c, "ref")
		if err != nil {
			return err
		}
		raw, err := attr(c, "xform")
		if err != nil {
			return err
		}
		xf, err := ParseTransform(raw)
		if err != nil {
			return attrErr(c, "xform", err)
		}
		out.Children = append(out.Children, domain.ChildRef{Ref: ref, Xform: xf})
		return nil
	})
	if err != nil {
		return domain.Shape{}, err
	}

	if v, ok := s.Attr("annotation"); ok {
		out.Annotations = splitIDs(v)
	}
	if v, ok := s.Attr("shell"); ok {
		out.Shells = splitIDs(v)
	}
	return out, nil
}

// Annotation 翻译 <annotation>：有 href 则是外部引用，否则把每条 <polyline> 的 <p l="..."> 拼成一条扁平数组。
func Annotation(s *goquery.Selection) (domain.Annotation, error) {
	id, err := attr(s, "id")
	if err != nil {
		return domain.Annotation{}, err
	}
	if href, ok := s.Attr("href"); ok {
		return domain.Annotation{External: &domain.ExternalAnnotation{ID: id, Href: RewriteHref(href)}}, nil
	}

	polylines := s.ChildrenFiltered("polyline")
	lines := make([][]float64, 0, polylines.Length())
	err = xmltree.Each(polylines, func(_ int, pl *goquery.Selection) error {
		line := make([]float64, 0, 32)
		err := xmltree.Each(pl.ChildrenFiltered("p"), func(_ int, p *goquery.Selection) error {
			vals, err := floatsAttr(p, "l")
			if err != nil {
				return err
			}
			line = append(line, vals...)
			return nil
		})
		if err != nil {
			return err
		}
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		return domain.Annotation{}, err
	}
	return domain.Annotation{Inline: &domain.InlineAnnotation{ID: id, Lines: lines}}, nil
}
