// Package planner 从索引记录推导需要派发的外部子文档（只计算，不做任何读写）。
package planner

import (
	"github.com/John-Robertt/stepjson/internal/domain"
	"github.com/John-Robertt/stepjson/internal/translate"
)

// PlanExternal 为索引中的外部 shell/annotation 生成子任务。
//
// - 子文档文件名由 href 还原（"json" -> "xml"，只替换第一次出现）
// - 顺序与索引中的文档顺序一致
// - 同一个文件只派发一次：每个任务独占自己的输出文件
func PlanExternal(dir string, idx domain.Index) domain.DispatchPlan {
	seen := make(map[string]struct{}, len(idx.Shells)+len(idx.Annotations))
	plan := domain.DispatchPlan{
		Shells:      make([]domain.Task, 0, len(idx.Shells)),
		Annotations: make([]domain.Task, 0, len(idx.Annotations)),
	}

	add := func(dst []domain.Task, href string) []domain.Task {
		file := translate.SourceHref(href)
		if _, ok := seen[file]; ok {
			return dst
		}
		seen[file] = struct{}{}
		return append(dst, domain.Task{Dir: dir, File: file})
	}

	for _, s := range idx.Shells {
		if s.IsExternal() {
			plan.Shells = add(plan.Shells, s.External.Href)
		}
	}
	for _, a := range idx.Annotations {
		if a.IsExternal() {
			plan.Annotations = add(plan.Annotations, a.External.Href)
		}
	}
	return plan
}

// Total 返回计划中的子任务总数。
func Total(p domain.DispatchPlan) int {
	return len(p.Shells) + len(p.Annotations)
}
