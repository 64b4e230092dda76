package domain

// Index 是装配体（step-assembly/assembly）根文档翻译后的索引记录。
// 它拥有全部 Product/Shape/Shell/Annotation 记录。
//
// Batches 仅在请求了非零批次数时输出（值为实际批次数）。
type Index struct {
	Root        string       `json:"root"`
	Products    []Product    `json:"products"`
	Shapes      []Shape      `json:"shapes"`
	Shells      []Shell      `json:"shells"`
	Annotations []Annotation `json:"annotations"`
	Batches     int          `json:"batches,omitempty"`
}

// BatchPlan 是一个批次分到的 shell（按分配顺序）及其累计 size。
type BatchPlan struct {
	Shells []string
	Size   int
}
