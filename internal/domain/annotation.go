package domain

import "encoding/json"

// Annotation 是 annotation 记录的标签变体：Inline 与 External 恰好一个非空。
type Annotation struct {
	Inline   *InlineAnnotation
	External *ExternalAnnotation
}

// InlineAnnotation 的每条 line 是把折线上所有点坐标按文档顺序拼接得到的扁平数组。
type InlineAnnotation struct {
	ID    string      `json:"id"`
	Lines [][]float64 `json:"lines"`
}

type ExternalAnnotation struct {
	ID   string `json:"id"`
	Href string `json:"href"`
}

func (a Annotation) ID() string {
	switch {
	case a.External != nil:
		return a.External.ID
	case a.Inline != nil:
		return a.Inline.ID
	default:
		return ""
	}
}

func (a Annotation) IsExternal() bool { return a.External != nil }

func (a Annotation) MarshalJSON() ([]byte, error) {
	if a.External != nil {
		return json.Marshal(a.External)
	}
	if a.Inline != nil {
		return json.Marshal(a.Inline)
	}
	return []byte("null"), nil
}

func (a *Annotation) UnmarshalJSON(b []byte) error {
	var probe struct {
		Href *string `json:"href"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	if probe.Href != nil {
		*a = Annotation{External: &ExternalAnnotation{}}
		return json.Unmarshal(b, a.External)
	}
	*a = Annotation{Inline: &InlineAnnotation{}}
	return json.Unmarshal(b, a.Inline)
}
