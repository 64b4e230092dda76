package xmltree

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<step-assembly root="p1">
  <product id="p1" step="s1" name="Top" shape="sh1"/>
  <shape id="sh1" shell="a b">
    <child ref="sh2" xform="1 0 0 0 0 1 0 0 0 0 1 0 0 0 0 1"/>
    <child ref="sh3" xform="1 0 0 0 0 1 0 0 0 0 1 0 5 5 5 1"/>
  </shape>
  <shape id="sh2" shell="c"/>
  <annotation id="n1">
    <polyline><p l="0 0 0"/><p l="1 1 1"/></polyline>
  </annotation>
</step-assembly>`

func TestParse_RootAndFind(t *testing.T) {
	doc, err := ParseBytes([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "step-assembly", doc.RootName())
	root, ok := doc.Root().Attr("root")
	require.True(t, ok)
	assert.Equal(t, "p1", root)

	assert.Equal(t, 1, doc.Find("product").Length())
	assert.Equal(t, 2, doc.Find("shape").Length())

	// 自闭合 <child/> 不得嵌套：sh1 恰好两个直接 child，sh2 没有。
	shapes := doc.Find("shape")
	assert.Equal(t, 2, shapes.Eq(0).ChildrenFiltered("child").Length())
	assert.Equal(t, 0, shapes.Eq(1).ChildrenFiltered("child").Length())

	// <p> 在 XML 里只是普通元素。
	ps := doc.Find("polyline").ChildrenFiltered("p")
	require.Equal(t, 2, ps.Length())
	l, _ := ps.Eq(1).Attr("l")
	assert.Equal(t, "1 1 1", l)
}

func TestParse_Errors(t *testing.T) {
	_, err := ParseBytes([]byte(`<shell id="a"><facets></shell>`))
	require.Error(t, err)
	assert.True(t, IsParseError(err))

	_, err = ParseBytes([]byte(``))
	require.Error(t, err)
	assert.True(t, IsParseError(err))

	_, err = ParseBytes([]byte(`<a/><b/>`))
	require.Error(t, err)
	assert.True(t, IsParseError(err))
}

func TestParse_CharsetFromDeclaration(t *testing.T) {
	// 0xE9 在 ISO-8859-1 里是 é。
	in := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><product id=\"p\" name=\"caf\xe9\"/>"
	doc, err := ParseBytes([]byte(in))
	require.NoError(t, err)

	name, _ := doc.Root().Attr("name")
	assert.Equal(t, "café", name)
}

func TestEach_StopsOnError(t *testing.T) {
	doc, err := ParseBytes([]byte(sample))
	require.NoError(t, err)

	var seen []string
	err = Each(doc.Find("shape"), func(i int, s *goquery.Selection) error {
		id, _ := s.Attr("id")
		seen = append(seen, id)
		if !strings.HasPrefix(id, "sh") {
			return nil
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"sh1"}, seen)
}
