package translate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/stepjson/internal/domain"
	"github.com/John-Robertt/stepjson/internal/geom"
	"github.com/John-Robertt/stepjson/internal/xmltree"
)

// Shell 翻译 <shell>。有 href 时只输出引用记录 {id, size, bbox, href}；
// 否则把 facet/顶点几何编码为 inline 记录。
func (t *Translator) Shell(s *goquery.Selection) (domain.Shell, error) {
	id, err := attr(s, "id")
	if err != nil {
		return domain.Shell{}, err
	}
	if href, ok := s.Attr("href"); ok {
		ext, err := externalShell(s, id, href)
		if err != nil {
			return domain.Shell{}, err
		}
		return domain.Shell{External: ext}, nil
	}
	in, err := t.inlineShell(s, id)
	if err != nil {
		return domain.Shell{}, err
	}
	return domain.Shell{Inline: in}, nil
}

func externalShell(s *goquery.Selection, id, href string) (*domain.ExternalShell, error) {
	rawSize, err := attr(s, "size")
	if err != nil {
		return nil, err
	}
	size, err := strconv.Atoi(strings.TrimSpace(rawSize))
	if err != nil {
		return nil, attrErr(s, "size", err)
	}
	bbox, err := floatsAttr(s, "bbox")
	if err != nil {
		return nil, err
	}
	return &domain.ExternalShell{
		ID:   id,
		Size: size,
		BBox: bbox,
		Href: RewriteHref(href),
	}, nil
}

// inlineShell 把几何展开为逐三角形的顶点数组，然后按选项做索引与颜色压缩。
//
// 每个 <f> 贡献 9 个坐标、9 个法线分量（逐顶点法线，不是面法线）和 3 次 facet 颜色。
func (t *Translator) inlineShell(s *goquery.Selection, id string) (*domain.InlineShell, error) {
	verts, err := loadVerts(s)
	if err != nil {
		return nil, err
	}

	shellColor := geom.DefaultColor
	if v, ok := s.Attr("color"); ok {
		if shellColor, err = geom.ParseHexColor(v); err != nil {
			return nil, attrErr(s, "color", err)
		}
	}

	var (
		points  = make([]float64, 0, 9*16)
		normals = make([]float64, 0, 9*16)
		colors  = make([]float64, 0, 9*16)
	)

	err = xmltree.Each(s.ChildrenFiltered("facets"), func(_ int, facet *goquery.Selection) error {
		color := shellColor
		if v, ok := facet.Attr("color"); ok {
			c, err := geom.ParseHexColor(v)
			if err != nil {
				return attrErr(facet, "color", err)
			}
			color = c
		}

		return xmltree.Each(facet.ChildrenFiltered("f"), func(_ int, f *goquery.Selection) error {
			idx, err := vertexIndices(f, len(verts)/3)
			if err != nil {
				return err
			}
			for _, vi := range idx {
				points = append(points, verts[vi*3:vi*3+3]...)
			}

			ns := f.ChildrenFiltered("n")
			if ns.Length() < 3 {
				return attrErr(f, "n", fmt.Errorf("需要 3 个逐顶点法线，实际 %d 个", ns.Length()))
			}
			for k := 0; k < 3; k++ {
				n := ns.Eq(k)
				d, err := floatsAttr(n, "d")
				if err != nil {
					return err
				}
				if len(d) < 3 {
					return attrErr(n, "d", fmt.Errorf("需要 3 个分量，实际 %d 个", len(d)))
				}
				normals = append(normals, d[:3]...)
			}

			for k := 0; k < 3; k++ {
				colors = append(colors, color[0], color[1], color[2])
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return t.encode(id, points, normals, colors), nil
}

// encode 对展开后的数组应用索引/压缩选项。
// points 与 normals 共享同一张数值表；只要开启任一索引就附带 values（以及非 0 的 precision）。
func (t *Translator) encode(id string, points, normals, colors []float64) *domain.InlineShell {
	out := &domain.InlineShell{
		ID:   id,
		Size: len(points) / 9,
	}

	if t.opts.IndexPoints || t.opts.IndexNormals {
		ix := geom.NewIndexer(t.opts.RoundPrecision)
		if t.opts.IndexPoints {
			out.PointsIndex = ix.IndexAll(points)
		} else {
			out.Points = points
		}
		if t.opts.IndexNormals {
			out.NormalsIndex = ix.IndexAll(normals)
		} else {
			out.Normals = normals
		}
		out.Values = ix.Values()
		out.Precision = ix.Precision()
	} else {
		out.Points = points
		out.Normals = normals
	}

	if t.opts.CompressColors {
		out.ColorsData = geom.CompressColors(colors)
	} else {
		out.Colors = colors
	}
	return out
}

// loadVerts 按文档顺序读取 <verts><v p="x y z"/></verts>，每个顶点 3 个坐标。
func loadVerts(s *goquery.Selection) ([]float64, error) {
	verts := make([]float64, 0, 3*64)
	err := xmltree.Each(s.ChildrenFiltered("verts"), func(_ int, vs *goquery.Selection) error {
		return xmltree.Each(vs.ChildrenFiltered("v"), func(_ int, v *goquery.Selection) error {
			p, err := floatsAttr(v, "p")
			if err != nil {
				return err
			}
			if len(p) < 3 {
				return attrErr(v, "p", fmt.Errorf("需要 3 个坐标，实际 %d 个", len(p)))
			}
			verts = append(verts, p[:3]...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return verts, nil
}

func vertexIndices(f *goquery.Selection, nverts int) ([3]int, error) {
	var out [3]int
	raw, err := attr(f, "v")
	if err != nil {
		return out, err
	}
	fields := strings.Fields(raw)
	if len(fields) < 3 {
		return out, attrErr(f, "v", fmt.Errorf("需要 3 个顶点下标，实际 %d 个", len(fields)))
	}
	for k := 0; k < 3; k++ {
		vi, err := strconv.Atoi(fields[k])
		if err != nil {
			return out, attrErr(f, "v", err)
		}
		if vi < 0 || vi >= nverts {
			return out, attrErr(f, "v", fmt.Errorf("顶点下标 %d 越界（共 %d 个顶点）", vi, nverts))
		}
		out[k] = vi
	}
	return out, nil
}
