package translate

import "strings"

// RewriteHref 把源格式扩展名换成目标格式：只替换第一次出现的 "xml"。
// 例如 "shell_3.xml" -> "shell_3.json"。输出文件名也用同一规则得到。
func RewriteHref(href string) string {
	return strings.Replace(href, "xml", "json", 1)
}

// SourceHref 是 RewriteHref 的反向：从 href 还原子文档文件名（只替换第一次出现的 "json"）。
func SourceHref(href string) string {
	return strings.Replace(href, "json", "xml", 1)
}
