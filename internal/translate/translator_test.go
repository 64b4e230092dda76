package translate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const assembly = `<?xml version="1.0" encoding="UTF-8"?>
<step-assembly root="p1">
  <product id="p1" step="#1" name="Top" children="p2" shape="sh1"/>
  <product id="p2" step="#2" name="Bolt" shape="sh2"/>
  <shape id="sh1">
    <child ref="sh2" xform="1 0 0 0 0 1 0 0 0 0 1 0 0 0 0 1"/>
  </shape>
  <shape id="sh2" shell="s1 s2" annotation="a1"/>
  <shell id="s1" href="shell_s1.xml" size="40" bbox="0 0 0 1 1 1"/>
  <shell id="s2">
    <verts><v p="0 0 0"/><v p="1 0 0"/><v p="0 1 0"/></verts>
    <facets color="ff0000"><f v="0 1 2"><n d="0 0 1"/><n d="0 0 1"/><n d="0 0 1"/></f></facets>
  </shell>
  <annotation id="a1" href="annotation_a1.xml"/>
</step-assembly>`

func TestIndex_CollectsAllRecords(t *testing.T) {
	doc := mustDoc(t, assembly)
	idx, err := New(DefaultOptions()).Index(doc, 0)
	require.NoError(t, err)

	assert.Equal(t, "p1", idx.Root)
	require.Len(t, idx.Products, 2)
	require.Len(t, idx.Shapes, 2)
	require.Len(t, idx.Shells, 2)
	require.Len(t, idx.Annotations, 1)

	assert.True(t, idx.Shells[0].IsExternal())
	assert.Equal(t, "shell_s1.json", idx.Shells[0].External.Href)
	assert.Equal(t, 1, idx.Shells[1].Size())
	assert.Equal(t, "annotation_a1.json", idx.Annotations[0].External.Href)
	assert.Equal(t, 0, idx.Batches)

	b, err := json.Marshal(idx)
	require.NoError(t, err)
	assert.NotContains(t, string(b), `"batches"`)
}

func TestIndex_Batches(t *testing.T) {
	doc := mustDoc(t, assembly)
	tr := New(DefaultOptions())

	idx, err := tr.Index(doc, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Batches)

	// shell 少于期望批次数时只打一批。
	idx, err = tr.Index(doc, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Batches)

	b, err := json.Marshal(idx)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"batches":1`)
}

func TestIndex_EmptyAssembly(t *testing.T) {
	doc := mustDoc(t, `<step-assembly root="p0"/>`)
	idx, err := New(DefaultOptions()).Index(doc, 0)
	require.NoError(t, err)

	b, err := json.Marshal(idx)
	require.NoError(t, err)
	assert.Equal(t, `{"root":"p0","products":[],"shapes":[],"shells":[],"annotations":[]}`, string(b))
}

func TestIndex_Errors(t *testing.T) {
	tr := New(DefaultOptions())

	_, err := tr.Index(mustDoc(t, `<step-assembly/>`), 0)
	require.Error(t, err)
	assert.True(t, IsAttrError(err))

	_, err = tr.Index(mustDoc(t, `<step-assembly root="p"><shape id="x"><child ref="y" xform="1 2 q"/></shape></step-assembly>`), 0)
	require.Error(t, err)
	assert.True(t, IsAttrError(err), "包装后仍应能识别 AttrError：%v", err)
	assert.Contains(t, err.Error(), "<shape>")
}
