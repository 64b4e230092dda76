package translate

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/John-Robertt/stepjson/internal/batch"
	"github.com/John-Robertt/stepjson/internal/domain"
	"github.com/John-Robertt/stepjson/internal/xmltree"
)

// Options 控制 inline shell 的编码方式；进程启动时确定，运行期不变。
type Options struct {
	IndexPoints    bool
	IndexNormals   bool
	CompressColors bool
	// RoundPrecision 是取整的小数位数；0 表示不取整。
	RoundPrecision int
}

// DefaultOptions 全部开启，保留两位小数。
func DefaultOptions() Options {
	return Options{
		IndexPoints:    true,
		IndexNormals:   true,
		CompressColors: true,
		RoundPrecision: 2,
	}
}

// Translator 持有编码选项；本身无状态，可并发使用。
type Translator struct {
	opts Options
}

func New(opts Options) *Translator {
	if opts.RoundPrecision < 0 {
		opts.RoundPrecision = 0
	}
	return &Translator{opts: opts}
}

func (t *Translator) Options() Options { return t.opts }

// Index 翻译装配体根文档：文档中任意层级的 product/shape/shell/annotation 都会被收集。
// desiredBatches 非 0 时附带实际批次数。
func (t *Translator) Index(doc *xmltree.Document, desiredBatches int) (domain.Index, error) {
	root, err := attr(doc.Root(), "root")
	if err != nil {
		return domain.Index{}, err
	}

	idx := domain.Index{
		Root:        root,
		Products:    []domain.Product{},
		Shapes:      []domain.Shape{},
		Shells:      []domain.Shell{},
		Annotations: []domain.Annotation{},
	}

	if err := eachNode(doc, "product", func(s *goquery.Selection) error {
		p, err := Product(s)
		if err != nil {
			return err
		}
		idx.Products = append(idx.Products, p)
		return nil
	}); err != nil {
		return domain.Index{}, err
	}

	if err := eachNode(doc, "shape", func(s *goquery.Selection) error {
		sh, err := Shape(s)
		if err != nil {
			return err
		}
		idx.Shapes = append(idx.Shapes, sh)
		return nil
	}); err != nil {
		return domain.Index{}, err
	}

	if err := eachNode(doc, "shell", func(s *goquery.Selection) error {
		sh, err := t.Shell(s)
		if err != nil {
			return err
		}
		idx.Shells = append(idx.Shells, sh)
		return nil
	}); err != nil {
		return domain.Index{}, err
	}

	if err := eachNode(doc, "annotation", func(s *goquery.Selection) error {
		a, err := Annotation(s)
		if err != nil {
			return err
		}
		idx.Annotations = append(idx.Annotations, a)
		return nil
	}); err != nil {
		return domain.Index{}, err
	}

	if desiredBatches != 0 {
		idx.Batches = batch.Count(len(idx.Shells), desiredBatches)
	}
	return idx, nil
}

func eachNode(doc *xmltree.Document, elem string, fn func(s *goquery.Selection) error) error {
	err := xmltree.Each(doc.Find(elem), func(_ int, s *goquery.Selection) error { return fn(s) })
	return errors.Wrapf(err, "翻译 <%s> 失败", elem)
}
