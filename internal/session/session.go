// Package session 实现 AI 会话引擎：单会话状态机、工具调用台账，
// 以及管理主选股会话与若干找相似侧会话的协调器。
package session

import (
	"sync"
	"time"

	"github.com/run-bigpig/xuangu/internal/logger"
	"github.com/run-bigpig/xuangu/internal/models"
	"github.com/run-bigpig/xuangu/internal/picks"

	"github.com/google/uuid"
)

var log = logger.New("Session")

// Status 会话状态
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal 是否为终态
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ThinkingStep AI 思考片段
type ThinkingStep struct {
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Snapshot 会话的只读视图，每次状态变更后重新发布
type Snapshot struct {
	Key             string                  `json:"key"`
	Status          Status                  `json:"status"`
	Content         string                  `json:"content"`    // 可展示正文（剔除结构化块）
	RawContent      string                  `json:"rawContent"` // 累积全文
	Thinking        []ThinkingStep          `json:"thinking"`
	ToolCalls       []ToolCallRecord        `json:"toolCalls"`
	Recommendations []picks.Recommendation  `json:"recommendations"`
	ParseWarning    bool                    `json:"parseWarning"`
	Error           string                  `json:"error,omitempty"`
	Usage           *models.TokenUsage      `json:"usage,omitempty"`
}

// UpdateFunc 快照发布回调
type UpdateFunc func(snap Snapshot)

// Session 单个 AI 会话的状态机。
// 事件处理经 mu 串行化；文本只追加，状态单调推进，终态吸收后续事件。
type Session struct {
	id      string
	key     string
	channel string

	mu           sync.Mutex
	status       Status
	text         string
	thinking     []ThinkingStep
	ledger       ToolLedger
	recs         []picks.Recommendation
	parseWarning bool
	usage        *models.TokenUsage
	errMsg       string

	release  func() // 释放事件订阅，幂等
	onUpdate UpdateFunc
}

// newSession 创建空闲会话
func newSession(key, channel string, onUpdate UpdateFunc) *Session {
	return &Session{
		id:       uuid.NewString(),
		key:      key,
		channel:  channel,
		status:   StatusIdle,
		onUpdate: onUpdate,
	}
}

// Key 返回会话标识
func (s *Session) Key() string { return s.key }

// Channel 返回会话事件频道名
func (s *Session) Channel() string { return s.channel }

// Status 返回当前状态
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// setRelease 绑定订阅释放函数，由协调器在订阅成功后调用
func (s *Session) setRelease(release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release = release
}

// Start 进入运行态并发布首帧快照
func (s *Session) Start() {
	s.mu.Lock()
	if s.status != StatusIdle {
		s.mu.Unlock()
		log.Warn("session %s start ignored, status=%s", s.key, s.status)
		return
	}
	s.status = StatusRunning
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// HandleEvent 处理一条流式事件。终态后的事件只记日志不生效
func (s *Session) HandleEvent(ev models.StreamEvent) {
	s.mu.Lock()
	if s.status != StatusRunning {
		s.mu.Unlock()
		log.Debug("session %s event %s ignored, status=%s", s.key, ev.Type, s.status)
		return
	}

	terminal := false
	switch ev.Type {
	case models.EventThinking:
		s.thinking = append(s.thinking, ThinkingStep{
			Content:   ev.Content,
			Timestamp: time.Now().UnixMilli(),
		})
	case models.EventContent:
		s.text += ev.Content
		s.extractLocked(s.text)
	case models.EventToolCall:
		s.ledger.ObserveStart(ev.ToolName, ev.Content)
	case models.EventToolResult:
		s.ledger.ObserveResult(ev.ToolName, ev.Content)
	case models.EventDone:
		// 终态事件携带的全文是权威版本，覆盖本地累积
		if ev.Content != "" {
			s.text = ev.Content
		}
		s.extractLocked(s.text)
		if ev.Usage != nil {
			s.usage = ev.Usage
		}
		s.status = StatusCompleted
		terminal = true
	case models.EventError:
		s.errMsg = ev.Content
		s.status = StatusFailed
		terminal = true
	default:
		log.Warn("session %s unknown event type: %s", s.key, ev.Type)
		s.mu.Unlock()
		return
	}

	snap := s.snapshotLocked()
	release := s.release
	s.mu.Unlock()

	if terminal && release != nil {
		// 事件在订阅投递栈内到达，同步退订会自锁，放到独立 goroutine
		go release()
	}
	s.publish(snap)
}

// Cancel 外部取消。幂等，自然完成后调用为空操作
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.status = StatusCancelled
	snap := s.snapshotLocked()
	release := s.release
	s.mu.Unlock()

	if release != nil {
		release()
	}
	s.publish(snap)
}

// Fail 订阅建立失败等场景下直接落入失败态，不经过运行态
func (s *Session) Fail(msg string) {
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.errMsg = msg
	s.status = StatusFailed
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// seedCompleted 以缓存文本直接生成已完成会话（无订阅，用于启动恢复）
func (s *Session) seedCompleted(content string) {
	s.mu.Lock()
	s.text = content
	s.extractLocked(content)
	s.status = StatusCompleted
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// extractLocked 对当前全文重跑一次推荐提取，需持有 mu
func (s *Session) extractLocked(text string) {
	result := picks.Extract(text)
	s.recs = result.Records
	s.parseWarning = result.HadMarker && !result.ParseOK
}

// Snapshot 返回当前只读视图
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// snapshotLocked 组装只读快照，需持有 mu
func (s *Session) snapshotLocked() Snapshot {
	thinking := make([]ThinkingStep, len(s.thinking))
	copy(thinking, s.thinking)
	recs := make([]picks.Recommendation, len(s.recs))
	copy(recs, s.recs)

	var usage *models.TokenUsage
	if s.usage != nil {
		u := *s.usage
		usage = &u
	}

	return Snapshot{
		Key:             s.key,
		Status:          s.status,
		Content:         picks.DisplayText(s.text),
		RawContent:      s.text,
		Thinking:        thinking,
		ToolCalls:       s.ledger.Records(),
		Recommendations: recs,
		ParseWarning:    s.parseWarning,
		Error:           s.errMsg,
		Usage:           usage,
	}
}

// publish 发布快照
func (s *Session) publish(snap Snapshot) {
	if s.onUpdate != nil {
		s.onUpdate(snap)
	}
}
