// Package batch 把 shell 按三角形数量装箱成若干批次文件，供客户端分批下载。
package batch

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"

	"github.com/John-Robertt/stepjson/internal/domain"
)

// Store 是批次打包需要的输出目录能力（见 infra/store）。
type Store interface {
	ReadShell(id string) ([]byte, error)
	WriteBatch(name string, data []byte) error
}

// Count 返回实际批次数：shell 数少于期望值时只打一批，否则就是期望值。
func Count(shells, desired int) int {
	if shells < desired {
		return 1
	}
	return desired
}

// Name 返回第 i 个批次（从 0 开始）的文件名。
func Name(i int) string {
	return fmt.Sprintf("batch%d.json", i)
}

// Pack 用贪心 LPT 把 shells 分到 n 个批次：
// 先按 size 降序稳定排序，再逐个放入当前累计 size 最小的批次（并列取下标最小）。
//
// 每个 shell 恰好出现在一个批次中；n <= 0 时返回 nil。
func Pack(shells []domain.Shell, n int) []domain.BatchPlan {
	if n <= 0 {
		return nil
	}
	plans := make([]domain.BatchPlan, n)
	for i := range plans {
		plans[i].Shells = []string{}
	}

	order := make([]int, len(shells))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return shells[order[a]].Size() > shells[order[b]].Size()
	})

	for _, i := range order {
		k := smallest(plans)
		plans[k].Shells = append(plans[k].Shells, shells[i].ID())
		plans[k].Size += shells[i].Size()
	}
	return plans
}

func smallest(plans []domain.BatchPlan) int {
	k := 0
	for i := 1; i < len(plans); i++ {
		if plans[i].Size < plans[k].Size {
			k = i
		}
	}
	return k
}

type batchFile struct {
	Shells []json.RawMessage `json:"shells"`
}

// Write 依次写出 batch<N>.json，内容为 {"shells":[...]}，顺序与分配顺序一致。
//
// 外部 shell 从已写出的 shell_<id>.json 读回；inline shell 没有单独文件，直接用内存中的记录。
// 单个批次失败不影响其它批次，结果逐个返回。
func Write(st Store, plans []domain.BatchPlan, shells []domain.Shell) []domain.BatchResult {
	byID := make(map[string]domain.Shell, len(shells))
	for _, s := range shells {
		if _, ok := byID[s.ID()]; !ok {
			byID[s.ID()] = s
		}
	}

	results := make([]domain.BatchResult, 0, len(plans))
	for i, p := range plans {
		r := domain.BatchResult{
			Name:   Name(i),
			Shells: len(p.Shells),
			Size:   p.Size,
			Status: domain.StatusWritten,
		}
		if err := writeOne(st, r.Name, p, byID); err != nil {
			r.Status = domain.StatusFailed
			r.ErrorMsg = err.Error()
		}
		results = append(results, r)
	}
	return results
}

func writeOne(st Store, name string, p domain.BatchPlan, byID map[string]domain.Shell) error {
	out := batchFile{Shells: make([]json.RawMessage, 0, len(p.Shells))}
	for _, id := range p.Shells {
		raw, err := shellJSON(st, id, byID)
		if err != nil {
			return errors.Wrapf(err, "%s: shell %q", name, id)
		}
		out.Shells = append(out.Shells, raw)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return errors.Wrapf(err, "%s: 编码失败", name)
	}
	return st.WriteBatch(name, b)
}

func shellJSON(st Store, id string, byID map[string]domain.Shell) (json.RawMessage, error) {
	s, ok := byID[id]
	if !ok {
		return nil, errors.New("不在索引中")
	}
	if !s.IsExternal() {
		return json.Marshal(s)
	}

	raw, err := st.ReadShell(id)
	if err != nil {
		return nil, errors.Wrap(err, "读取外部 shell 失败")
	}
	got, err := jsonparser.GetString(raw, "id")
	if err != nil {
		return nil, errors.Wrap(err, "外部 shell 文件缺少 id")
	}
	if got != id {
		return nil, errors.Errorf("外部 shell 文件 id 不一致：%q", got)
	}
	return raw, nil
}
