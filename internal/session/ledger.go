package session

// ToolState 工具调用状态
type ToolState string

const (
	ToolLoading ToolState = "loading"
	ToolDone    ToolState = "done"
)

// ToolCallRecord 单次工具调用记录
type ToolCallRecord struct {
	Name   string    `json:"name"`
	Label  string    `json:"label"`
	State  ToolState `json:"state"`
	Result string    `json:"result,omitempty"`
}

// ToolLedger 一个会话内工具调用的有序台账。
// 同名工具的重复调用各记一条，记录只追加不删除，
// 单条记录只会从 loading 走到 done，不回退。
// 并发保护由所属 Session 的锁提供。
type ToolLedger struct {
	records []ToolCallRecord
}

// ObserveStart 记录一次工具调用开始
func (l *ToolLedger) ObserveStart(name, label string) {
	if label == "" {
		label = name
	}
	l.records = append(l.records, ToolCallRecord{
		Name:  name,
		Label: label,
		State: ToolLoading,
	})
}

// ObserveResult 记录工具调用结果：完成最近一条仍在 loading 的同名记录。
// 找不到时补一条已完成记录，容忍开始事件丢失或乱序。
func (l *ToolLedger) ObserveResult(name, summary string) {
	for i := len(l.records) - 1; i >= 0; i-- {
		if l.records[i].Name == name && l.records[i].State == ToolLoading {
			l.records[i].State = ToolDone
			l.records[i].Result = summary
			return
		}
	}
	l.records = append(l.records, ToolCallRecord{
		Name:   name,
		Label:  name,
		State:  ToolDone,
		Result: summary,
	})
}

// Records 返回台账副本，保持插入顺序
func (l *ToolLedger) Records() []ToolCallRecord {
	out := make([]ToolCallRecord, len(l.records))
	copy(out, l.records)
	return out
}
