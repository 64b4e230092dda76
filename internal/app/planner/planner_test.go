package planner

import (
	"testing"

	"github.com/John-Robertt/stepjson/internal/domain"
)

func TestPlanExternal_OnlyExternalInDocumentOrder(t *testing.T) {
	idx := domain.Index{
		Shells: []domain.Shell{
			{External: &domain.ExternalShell{ID: "b", Size: 3, Href: "shell_b.json"}},
			{Inline: &domain.InlineShell{ID: "x"}},
			{External: &domain.ExternalShell{ID: "a", Size: 9, Href: "shell_a.json"}},
		},
		Annotations: []domain.Annotation{
			{Inline: &domain.InlineAnnotation{ID: "n0"}},
			{External: &domain.ExternalAnnotation{ID: "n1", Href: "annotation_n1.json"}},
		},
	}

	plan := PlanExternal("/data", idx)

	if len(plan.Shells) != 2 || plan.Shells[0].File != "shell_b.xml" || plan.Shells[1].File != "shell_a.xml" {
		t.Fatalf("shell 任务不正确：%+v", plan.Shells)
	}
	if plan.Shells[0].Dir != "/data" {
		t.Fatalf("任务目录不正确：%+v", plan.Shells[0])
	}
	if len(plan.Annotations) != 1 || plan.Annotations[0].File != "annotation_n1.xml" {
		t.Fatalf("annotation 任务不正确：%+v", plan.Annotations)
	}
	if Total(plan) != 3 {
		t.Fatalf("期望 3 个任务，实际 %d", Total(plan))
	}
}

func TestPlanExternal_DeduplicatesFiles(t *testing.T) {
	idx := domain.Index{
		Shells: []domain.Shell{
			{External: &domain.ExternalShell{ID: "a", Href: "shared.json"}},
			{External: &domain.ExternalShell{ID: "b", Href: "shared.json"}},
		},
	}

	plan := PlanExternal(".", idx)
	if len(plan.Shells) != 1 {
		t.Fatalf("同一文件只应派发一次：%+v", plan.Shells)
	}
	if plan.Annotations == nil {
		t.Fatalf("annotations 不应为 nil")
	}
}

func TestPlanExternal_Empty(t *testing.T) {
	plan := PlanExternal(".", domain.Index{})
	if Total(plan) != 0 {
		t.Fatalf("期望没有任务：%+v", plan)
	}
}
