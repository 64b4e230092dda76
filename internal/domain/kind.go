package domain

// DocKind 由根元素名决定的文档类型。
type DocKind string

const (
	KindAssembly   DocKind = "assembly"
	KindShell      DocKind = "shell"
	KindAnnotation DocKind = "annotation"
	KindUnknown    DocKind = "unknown"
)

// KindOf 按根元素名分派：step-assembly 与 assembly 都是装配体。
func KindOf(rootName string) DocKind {
	switch rootName {
	case "step-assembly", "assembly":
		return KindAssembly
	case "shell":
		return KindShell
	case "annotation":
		return KindAnnotation
	default:
		return KindUnknown
	}
}
