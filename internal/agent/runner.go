// Package agent 驱动 AI 选股会话：构建 Agent、消费 adk 事件流，
// 并把流式产出翻译成频道事件发布到事件总线。
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	adkagent "google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	adksession "google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/run-bigpig/xuangu/internal/adk"
	"github.com/run-bigpig/xuangu/internal/adk/mcp"
	"github.com/run-bigpig/xuangu/internal/adk/openai"
	"github.com/run-bigpig/xuangu/internal/adk/tools"
	"github.com/run-bigpig/xuangu/internal/eventbus"
	"github.com/run-bigpig/xuangu/internal/logger"
	"github.com/run-bigpig/xuangu/internal/models"
	"github.com/run-bigpig/xuangu/internal/services"
)

var log = logger.New("AgentRunner")

const appName = "xuangu"

// Runner 选股会话生产方。每个频道对应一次运行，
// Stop 按频道名取消对应运行。
type Runner struct {
	bus           *eventbus.Bus
	configService *services.ConfigService
	toolRegistry  *tools.Registry
	mcpManager    *mcp.Manager
	modelFactory  *adk.ModelFactory

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewRunner 创建选股会话生产方
func NewRunner(bus *eventbus.Bus, configService *services.ConfigService, registry *tools.Registry, mcpMgr *mcp.Manager) *Runner {
	return &Runner{
		bus:           bus,
		configService: configService,
		toolRegistry:  registry,
		mcpManager:    mcpMgr,
		modelFactory:  adk.NewModelFactory(),
		cancels:       make(map[string]context.CancelFunc),
	}
}

// RunPick 运行自主选股会话，事件发布到指定频道，阻塞直到结束
func (r *Runner) RunPick(ctx context.Context, channel string) {
	r.run(ctx, channel, func(builder *adk.AgentBuilder) (adkagent.Agent, error) {
		return builder.BuildPickAgent()
	}, "请开始分析当前A股市场，自主获取数据并给出你的选股推荐。")
}

// RunSimilar 运行找相似补涨会话，事件发布到指定频道，阻塞直到结束
func (r *Runner) RunSimilar(ctx context.Context, channel, code, name, sector string) {
	query := fmt.Sprintf("请帮我找出与 %s(%s) 相似但尚未大涨的补涨机会股票。该股所属板块：%s", name, code, sector)
	r.run(ctx, channel, func(builder *adk.AgentBuilder) (adkagent.Agent, error) {
		return builder.BuildSimilarAgent(code, name, sector)
	}, query)
}

// Stop 取消指定频道的运行，未在运行时为空操作
func (r *Runner) Stop(channel string) {
	r.mu.Lock()
	cancel, ok := r.cancels[channel]
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

// run 公共运行路径：解析模型配置、构建 Agent、消费事件流
func (r *Runner) run(ctx context.Context, channel string, build func(*adk.AgentBuilder) (adkagent.Agent, error), query string) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	r.cancels[channel] = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.cancels, channel)
		r.mu.Unlock()
	}()

	aiConfig := r.configService.ActiveAIConfig()
	if aiConfig == nil {
		r.publishError(channel, "未配置可用的 AI 模型，请先在设置中添加")
		return
	}

	llm, err := r.modelFactory.CreateModel(runCtx, aiConfig)
	if err != nil {
		r.publishError(channel, fmt.Sprintf("创建模型失败: %v", err))
		return
	}

	builder := adk.NewAgentBuilder(llm, r.toolRegistry, r.mcpManager)
	agentInstance, err := build(builder)
	if err != nil {
		r.publishError(channel, fmt.Sprintf("构建 Agent 失败: %v", err))
		return
	}

	if err := r.stream(runCtx, channel, agentInstance, query); err != nil {
		if runCtx.Err() != nil {
			// 用户主动停止，会话侧已进入取消态，不再发事件
			log.Info("channel %s cancelled", channel)
			return
		}
		r.publishError(channel, err.Error())
	}
}

// stream 消费 adk 事件流并翻译成频道事件，正常结束时发布 done
func (r *Runner) stream(ctx context.Context, channel string, agentInstance adkagent.Agent, query string) error {
	sessionService := adksession.InMemoryService()
	rn, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          agentInstance,
		SessionService: sessionService,
	})
	if err != nil {
		return fmt.Errorf("创建 runner 失败: %w", err)
	}

	sessionID := fmt.Sprintf("session-%s-%d", channel, time.Now().UnixNano())
	_, err = sessionService.Create(ctx, &adksession.CreateRequest{
		AppName:   appName,
		UserID:    "user",
		SessionID: sessionID,
	})
	if err != nil {
		return fmt.Errorf("创建会话失败: %w", err)
	}

	userMsg := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{genai.NewPartFromText(query)},
	}

	var content string
	var usage models.TokenUsage
	runCfg := adkagent.RunConfig{StreamingMode: adkagent.StreamingModeSSE}

	for event, err := range rn.Run(ctx, "user", sessionID, userMsg, runCfg) {
		if err != nil {
			return err
		}
		if event == nil || event.LLMResponse.Content == nil {
			continue
		}
		if meta := event.LLMResponse.UsageMetadata; meta != nil {
			usage.Add(&models.TokenUsage{
				PromptTokens:     int(meta.PromptTokenCount),
				CompletionTokens: int(meta.CandidatesTokenCount),
				TotalTokens:      int(meta.TotalTokenCount),
			})
		}

		for _, part := range event.LLMResponse.Content.Parts {
			switch {
			case part.FunctionCall != nil:
				r.bus.Publish(channel, models.StreamEvent{
					Type:     models.EventToolCall,
					Content:  "正在获取数据: " + tools.DisplayName(part.FunctionCall.Name),
					ToolName: part.FunctionCall.Name,
				})
			case part.FunctionResponse != nil:
				r.bus.Publish(channel, models.StreamEvent{
					Type:     models.EventToolResult,
					Content:  summarizeResponse(part.FunctionResponse.Response),
					ToolName: part.FunctionResponse.Name,
				})
			case part.Thought:
				if event.LLMResponse.Partial && part.Text != "" {
					r.bus.Publish(channel, models.StreamEvent{
						Type:    models.EventThinking,
						Content: part.Text,
					})
				}
			case part.Text != "":
				// 只累积流式片段，最终聚合响应的文本会重复
				if event.LLMResponse.Partial {
					content += part.Text
					r.bus.Publish(channel, models.StreamEvent{
						Type:    models.EventContent,
						Content: part.Text,
					})
				}
			}
		}
	}

	final := openai.FilterVendorToolCallMarkers(content)
	done := models.StreamEvent{
		Type:    models.EventDone,
		Content: final,
		Done:    true,
	}
	if usage.TotalTokens > 0 {
		done.Usage = &usage
	}
	r.bus.Publish(channel, done)
	log.Info("channel %s done, content len=%d, tokens=%d", channel, len(final), usage.TotalTokens)
	return nil
}

// publishError 发布错误事件
func (r *Runner) publishError(channel, msg string) {
	log.Error("channel %s: %s", channel, msg)
	r.bus.Publish(channel, models.StreamEvent{
		Type:    models.EventError,
		Content: msg,
		Done:    true,
	})
}

// summarizeResponse 压缩工具响应用于前端提示，避免整包数据刷屏
func summarizeResponse(resp map[string]any) string {
	if len(resp) == 0 {
		return "数据获取完成"
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return "数据获取完成"
	}
	runes := []rune(string(raw))
	if len(runes) > 200 {
		return string(runes[:200]) + "..."
	}
	return string(raw)
}
