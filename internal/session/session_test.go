package session

import (
	"strings"
	"testing"

	"github.com/run-bigpig/xuangu/internal/models"
)

// collectUpdates 收集快照回调
type collectUpdates struct {
	snaps []Snapshot
}

func (c *collectUpdates) fn(snap Snapshot) {
	c.snaps = append(c.snaps, snap)
}

func (c *collectUpdates) last() Snapshot {
	return c.snaps[len(c.snaps)-1]
}

// TestSessionLifecycle 测试会话状态机生命周期
func TestSessionLifecycle(t *testing.T) {
	t.Run("正常完成", func(t *testing.T) {
		var updates collectUpdates
		s := newSession("pick", "ai-pick-stream", updates.fn)

		s.Start()
		if s.Status() != StatusRunning {
			t.Fatalf("启动后应为运行态: %s", s.Status())
		}

		s.HandleEvent(models.StreamEvent{Type: models.EventThinking, Content: "先看大盘"})
		s.HandleEvent(models.StreamEvent{Type: models.EventContent, Content: "## 分析\n今日"})
		s.HandleEvent(models.StreamEvent{Type: models.EventContent, Content: "市场回暖。"})
		s.HandleEvent(models.StreamEvent{
			Type:    models.EventDone,
			Done:    true,
			Content: "## 分析\n今日市场回暖。\n<PICKS>[{\"code\":\"sh600519\",\"name\":\"贵州茅台\",\"reason\":\"龙头\",\"rating\":\"buy\"}]</PICKS>",
			Usage:   &models.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
		})

		snap := updates.last()
		if snap.Status != StatusCompleted {
			t.Fatalf("应为完成态: %s", snap.Status)
		}
		if len(snap.Recommendations) != 1 || snap.Recommendations[0].Code != "sh600519" {
			t.Errorf("推荐提取不符: %+v", snap.Recommendations)
		}
		if strings.Contains(snap.Content, "<PICKS>") {
			t.Error("展示正文不应包含标签块")
		}
		if !strings.Contains(snap.RawContent, "<PICKS>") {
			t.Error("原始全文应保留标签块")
		}
		if len(snap.Thinking) != 1 || snap.Thinking[0].Content != "先看大盘" {
			t.Errorf("思考记录不符: %+v", snap.Thinking)
		}
		if snap.Usage == nil || snap.Usage.TotalTokens != 150 {
			t.Errorf("用量不符: %+v", snap.Usage)
		}
	})

	t.Run("done事件全文为权威版本", func(t *testing.T) {
		var updates collectUpdates
		s := newSession("pick", "ai-pick-stream", updates.fn)
		s.Start()

		s.HandleEvent(models.StreamEvent{Type: models.EventContent, Content: "增量可能有缺口"})
		s.HandleEvent(models.StreamEvent{Type: models.EventDone, Done: true, Content: "完整版全文"})

		if updates.last().RawContent != "完整版全文" {
			t.Errorf("done 携带的全文应覆盖累积: %q", updates.last().RawContent)
		}
	})

	t.Run("done无全文时保留累积", func(t *testing.T) {
		var updates collectUpdates
		s := newSession("pick", "ai-pick-stream", updates.fn)
		s.Start()

		s.HandleEvent(models.StreamEvent{Type: models.EventContent, Content: "累积的内容"})
		s.HandleEvent(models.StreamEvent{Type: models.EventDone, Done: true})

		if updates.last().RawContent != "累积的内容" {
			t.Errorf("累积正文应保留: %q", updates.last().RawContent)
		}
	})

	t.Run("错误事件", func(t *testing.T) {
		var updates collectUpdates
		s := newSession("pick", "ai-pick-stream", updates.fn)
		s.Start()

		s.HandleEvent(models.StreamEvent{Type: models.EventError, Content: "模型超时"})

		snap := updates.last()
		if snap.Status != StatusFailed {
			t.Fatalf("应为失败态: %s", snap.Status)
		}
		if snap.Error != "模型超时" {
			t.Errorf("错误信息不符: %q", snap.Error)
		}
	})

	t.Run("终态吸收后续事件", func(t *testing.T) {
		var updates collectUpdates
		s := newSession("pick", "ai-pick-stream", updates.fn)
		s.Start()
		s.HandleEvent(models.StreamEvent{Type: models.EventDone, Done: true, Content: "最终版"})

		before := len(updates.snaps)
		s.HandleEvent(models.StreamEvent{Type: models.EventContent, Content: "迟到的增量"})
		s.HandleEvent(models.StreamEvent{Type: models.EventError, Content: "迟到的错误"})

		if len(updates.snaps) != before {
			t.Error("终态后的事件不应产生新快照")
		}
		if s.Snapshot().RawContent != "最终版" {
			t.Errorf("终态内容被篡改: %q", s.Snapshot().RawContent)
		}
	})
}

// TestSessionCancel 测试取消语义
func TestSessionCancel(t *testing.T) {
	t.Run("运行中取消", func(t *testing.T) {
		var updates collectUpdates
		s := newSession("similar:sh600519", "ai-similar-sh600519", updates.fn)
		s.Start()
		s.HandleEvent(models.StreamEvent{Type: models.EventContent, Content: "部分内容"})

		released := false
		s.setRelease(func() { released = true })
		s.Cancel()

		snap := updates.last()
		if snap.Status != StatusCancelled {
			t.Fatalf("应为取消态: %s", snap.Status)
		}
		if snap.RawContent != "部分内容" {
			t.Errorf("取消应保留已累积内容: %q", snap.RawContent)
		}
		if !released {
			t.Error("取消应释放订阅")
		}
	})

	t.Run("取消幂等", func(t *testing.T) {
		var updates collectUpdates
		s := newSession("pick", "ai-pick-stream", updates.fn)
		s.Start()
		s.Cancel()

		before := len(updates.snaps)
		s.Cancel()
		if len(updates.snaps) != before {
			t.Error("重复取消不应产生新快照")
		}
	})

	t.Run("完成后取消为空操作", func(t *testing.T) {
		var updates collectUpdates
		s := newSession("pick", "ai-pick-stream", updates.fn)
		s.Start()
		s.HandleEvent(models.StreamEvent{Type: models.EventDone, Done: true, Content: "自然完成"})

		s.Cancel()
		if s.Status() != StatusCompleted {
			t.Errorf("自然完成后取消不应改变状态: %s", s.Status())
		}
	})
}

// TestSessionToolEvents 测试工具事件进台账
func TestSessionToolEvents(t *testing.T) {
	var updates collectUpdates
	s := newSession("pick", "ai-pick-stream", updates.fn)
	s.Start()

	s.HandleEvent(models.StreamEvent{Type: models.EventToolCall, ToolName: "get_news", Content: "正在获取数据: 财经快讯"})
	s.HandleEvent(models.StreamEvent{Type: models.EventToolResult, ToolName: "get_news", Content: "10条"})
	s.HandleEvent(models.StreamEvent{Type: models.EventToolCall, ToolName: "get_kline_data", Content: "正在获取数据: K线数据"})

	snap := s.Snapshot()
	if len(snap.ToolCalls) != 2 {
		t.Fatalf("期望2条台账记录，实际 %d 条", len(snap.ToolCalls))
	}
	if snap.ToolCalls[0].State != ToolDone {
		t.Errorf("第一条应完成: %+v", snap.ToolCalls[0])
	}
	if snap.ToolCalls[1].State != ToolLoading {
		t.Errorf("第二条应进行中: %+v", snap.ToolCalls[1])
	}
}

// TestSessionParseWarning 测试解析告警
func TestSessionParseWarning(t *testing.T) {
	var updates collectUpdates
	s := newSession("pick", "ai-pick-stream", updates.fn)
	s.Start()

	s.HandleEvent(models.StreamEvent{
		Type:    models.EventDone,
		Done:    true,
		Content: "分析<PICKS>[{损坏的JSON</PICKS>",
	})

	snap := updates.last()
	if snap.Status != StatusCompleted {
		t.Fatalf("负载损坏不影响完成态: %s", snap.Status)
	}
	if !snap.ParseWarning {
		t.Error("应标记解析告警")
	}
	if len(snap.Recommendations) != 0 {
		t.Errorf("不应有推荐: %+v", snap.Recommendations)
	}
}

// TestSeedCompleted 测试缓存恢复的会话视图
func TestSeedCompleted(t *testing.T) {
	var updates collectUpdates
	s := newSession("pick", "ai-pick-stream", updates.fn)

	cached := "昨日报告\n<PICKS>[{\"code\":\"sz000001\",\"name\":\"平安银行\",\"reason\":\"修复\",\"rating\":\"watch\"}]</PICKS>"
	s.seedCompleted(cached)

	snap := updates.last()
	if snap.Status != StatusCompleted {
		t.Fatalf("恢复后应为完成态: %s", snap.Status)
	}
	if len(snap.Recommendations) != 1 || snap.Recommendations[0].Rating != "watch" {
		t.Errorf("恢复的推荐不符: %+v", snap.Recommendations)
	}
}
