package models

// AI 提供商类型
const (
	AIProviderOpenAI = "openai"
	AIProviderGemini = "gemini"
)

// AIConfig AI 模型配置
type AIConfig struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Provider  string  `json:"provider"` // openai / gemini
	BaseURL   string  `json:"baseUrl"`
	APIKey    string  `json:"apiKey"`
	ModelName string  `json:"modelName"`
	MaxTokens int     `json:"maxTokens"`
	// 分析默认 temperature（精确场景）
	Temperature float64 `json:"temperature"`
	// 选股 temperature（发散场景）
	PickTemperature float64 `json:"pickTemperature"`
	TimeoutSecs     int     `json:"timeoutSecs"`
	Enabled         bool    `json:"enabled"`
}

// TokenUsage token 用量统计
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add 累加另一份用量
func (u *TokenUsage) Add(other *TokenUsage) {
	if other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// 流式事件类型
const (
	EventContent    = "content"
	EventThinking   = "thinking"
	EventToolCall   = "tool_call"
	EventToolResult = "tool_result"
	EventDone       = "done"
	EventError      = "error"
)

// StreamEvent AI 会话流式事件，按会话频道投递
type StreamEvent struct {
	Type     string      `json:"eventType"` // content/thinking/tool_call/tool_result/done/error
	Content  string      `json:"content,omitempty"`
	ToolName string      `json:"toolName,omitempty"`
	Done     bool        `json:"done"`
	Usage    *TokenUsage `json:"usage,omitempty"`
}
