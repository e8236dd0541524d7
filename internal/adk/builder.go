package adk

import (
	"fmt"
	"time"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/tool"

	"github.com/run-bigpig/xuangu/internal/adk/mcp"
	"github.com/run-bigpig/xuangu/internal/adk/tools"
)

// AgentBuilder 选股 Agent 构建器
type AgentBuilder struct {
	llm          model.LLM
	toolRegistry *tools.Registry
	mcpManager   *mcp.Manager
}

// NewAgentBuilder 创建选股 Agent 构建器
func NewAgentBuilder(llm model.LLM, registry *tools.Registry, mcpMgr *mcp.Manager) *AgentBuilder {
	return &AgentBuilder{llm: llm, toolRegistry: registry, mcpManager: mcpMgr}
}

// BuildPickAgent 构建自主选股 Agent
func (b *AgentBuilder) BuildPickAgent() (agent.Agent, error) {
	agentTools, toolsets, err := b.collectTools()
	if err != nil {
		return nil, err
	}

	return llmagent.New(llmagent.Config{
		Name:        "picker",
		Model:       b.llm,
		Description: "A股自主选股分析师",
		Instruction: b.buildPickInstruction(),
		Tools:       agentTools,
		Toolsets:    toolsets,
	})
}

// BuildSimilarAgent 构建找相似补涨 Agent
func (b *AgentBuilder) BuildSimilarAgent(code, name, sector string) (agent.Agent, error) {
	agentTools, toolsets, err := b.collectTools()
	if err != nil {
		return nil, err
	}

	return llmagent.New(llmagent.Config{
		Name:        "similar-finder",
		Model:       b.llm,
		Description: "A股板块补涨机会挖掘分析师",
		Instruction: b.buildSimilarInstruction(code, name, sector),
		Tools:       agentTools,
		Toolsets:    toolsets,
	})
}

// collectTools 收集内置工具和 MCP toolsets
func (b *AgentBuilder) collectTools() ([]tool.Tool, []tool.Toolset, error) {
	var agentTools []tool.Tool
	if b.toolRegistry != nil {
		var err error
		agentTools, err = b.toolRegistry.All()
		if err != nil {
			return nil, nil, fmt.Errorf("create tools error: %w", err)
		}
	}

	var toolsets []tool.Toolset
	if b.mcpManager != nil {
		toolsets = b.mcpManager.AllToolsets()
	}
	return agentTools, toolsets, nil
}

// marketStatus 判断 A 股盘面状态（交易时间 9:30-11:30, 13:00-15:00，周一至周五）
func marketStatus(now time.Time) string {
	weekday := now.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return "休市（周末）"
	}
	minutes := now.Hour()*60 + now.Minute()
	switch {
	case minutes >= 9*60+30 && minutes <= 11*60+30:
		return "盘中（上午交易时段）"
	case minutes >= 13*60 && minutes <= 15*60:
		return "盘中（下午交易时段）"
	case minutes < 9*60+30:
		return "盘前"
	case minutes > 15*60:
		return "盘后"
	default:
		return "午间休市"
	}
}

// buildPickInstruction 构建自主选股指令
func (b *AgentBuilder) buildPickInstruction() string {
	now := time.Now()
	return fmt.Sprintf(`# 角色
你是一位拥有20年实战经验的独立投研分析师（A股方向）。你的核心能力是自主决策，根据数据和逻辑独立判断下一步该做什么，而不是机械执行固定流程。

当前时间：%s
市场状态：%s

# 核心目标
自主分析当前市场环境，推荐3-8只值得关注的A股股票。你需要自行决定获取哪些数据、如何解读、如何形成投资逻辑。

# 决策原则
1. 先全局后局部：先通过快讯和研报建立宏观认知，再聚焦行业方向和个股
2. 每轮工具调用不超过3个，调用前用1-2句话说明意图
3. 个股深入分析只针对最终候选的3-5只，不要逐一遍历
4. 独立思考，不要因为某概念热门就推荐，要有自己的分析逻辑链条
5. 工具报错时判断是参数问题还是服务异常，参数问题修正重试，服务异常跳过

# 选股硬约束
- 严禁推荐当日涨停（涨幅>=9.5%%）或连板股票
- 优先选择涨幅在-2%%~5%%之间、尚处于低位但有逻辑支撑的个股
- 避免推荐近5日涨幅超过15%%的标的，寻找同板块补涨机会
- 关注基本面质量（ROE、营收增速）和合理估值

# 输出格式
最终报告用 Markdown 格式输出，包含：
1. 宏观环境判断（政策方向 + 市场情绪）
2. 投资逻辑（你的独立思考过程和看好方向）
3. 推荐股票列表，用以下格式包裹在 <PICKS> 标签中：

<PICKS>
[
  {
    "code": "sh600519",
    "name": "贵州茅台",
    "reason": "推荐理由（需包含分析逻辑）",
    "rating": "buy",
    "sector": "所属概念板块",
    "highlights": ["ROE 30%%", "营收增速 15%%"]
  }
]
</PICKS>

rating 取值：strong_buy（强烈推荐）、buy（推荐买入）、watch（建议关注）

4. 风险提示

重要：只能通过提供的工具获取数据，禁止编造。`, now.Format("2006年01月02日 15:04"), marketStatus(now))
}

// buildSimilarInstruction 构建找相似补涨指令
func (b *AgentBuilder) buildSimilarInstruction(code, name, sector string) string {
	now := time.Now()
	return fmt.Sprintf(`# 角色
你是一位资深A股投研分析师，擅长挖掘板块内补涨机会。

当前时间：%s

# 任务
用户正在关注 %s（%s），所属概念板块：%s。
该股可能已涨幅较大或涨停，追高风险大。请帮用户在同概念或相关板块中，找出3-6只尚未大涨、有补涨潜力的个股。

# 决策原则
1. 先了解目标股特征（行情、涨幅、估值），再寻找同板块低位标的
2. 每轮调用前说明意图（1-2句话），每轮工具调用不超过3个
3. 找不到合适标的时，分析是条件太严还是板块本身偏弱，然后调整重试

# 选股标准
- 与目标股同概念或相近板块
- 今日涨幅远低于目标股（优先<5%%）
- 严禁推荐涨停股（涨幅>=9.5%%）
- 基本面不低于目标股，市值级别相近

# 输出格式
先说明目标股特征和选股逻辑，然后用 <PICKS> 标签给出推荐：

<PICKS>
[
  {
    "code": "sh600519",
    "name": "示例股票",
    "reason": "与目标股同属XX概念，但今日仅涨1.5%%...",
    "rating": "buy",
    "sector": "所属板块",
    "highlights": ["补涨空间大", "ROE 20%%"]
  }
]
</PICKS>

rating 取值：strong_buy、buy、watch

重要：禁止编造数据。用 Markdown 输出分析。`, now.Format("2006年01月02日 15:04"), name, code, sector)
}
